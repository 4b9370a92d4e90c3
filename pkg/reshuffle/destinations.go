package reshuffle

import (
	"reshard/pkg/topology"
	"reshard/pkg/types"
)

// DestinationSet is the ordered list of added segments one old segment must
// seed when copying a replicated table, plus a round-robin cursor over it.
//
// Segment i (i < oldCount) owns destinations i+O, i+2O, ... below newCount.
// Across all old segments these lists cover [O, N) exactly once. A segment
// added by the expansion, or one whose first candidate i+O already falls
// outside the cluster, owns nothing.
type DestinationSet struct {
	list []types.SegmentID
	next int
}

// NewDestinationSet computes the destination list for t.SelfIndex.
func NewDestinationSet(t topology.Topology) *DestinationSet {
	d := &DestinationSet{}
	if t.IsNewSegment() {
		return d
	}
	for s := t.SelfIndex + t.OldCount; s < t.NewCount; s += t.OldCount {
		d.list = append(d.list, types.SegmentID(s))
	}
	return d
}

// Len returns the number of destinations this segment seeds.
func (d *DestinationSet) Len() int { return len(d.list) }

// List returns a copy of the destination list in cursor order.
func (d *DestinationSet) List() []types.SegmentID {
	out := make([]types.SegmentID, len(d.list))
	copy(out, d.list)
	return out
}

// Next returns the cursor's current destination and advances it. The second
// result reports that the cursor wrapped back to the start, i.e. the caller
// has now seen every destination once since the last wrap. The cursor is
// shared across all rows handled by one operator instance.
func (d *DestinationSet) Next() (types.SegmentID, bool) {
	seg := d.list[d.next]
	d.next++
	if d.next >= len(d.list) {
		d.next = 0
		return seg, true
	}
	return seg, false
}
