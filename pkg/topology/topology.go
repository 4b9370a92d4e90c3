package topology

import (
	"fmt"

	"reshard/pkg/reserrors"
	"reshard/pkg/types"
)

// Topology is an immutable snapshot of segment membership around a cluster
// expansion: the segment count before the expansion, the count after it, and
// the index of the segment this process runs on. It is captured once at
// operator construction so the resolvers stay pure.
type Topology struct {
	OldCount  int
	NewCount  int
	SelfIndex int
}

// New validates and builds a snapshot. The expansion must be real
// (0 < oldCount < newCount) and selfIndex must name a segment of the new
// cluster.
func New(oldCount, newCount, selfIndex int) (Topology, error) {
	if oldCount <= 0 {
		return Topology{}, fmt.Errorf("%w: old segment count %d", reserrors.ErrInvalidTopology, oldCount)
	}
	if newCount <= oldCount {
		return Topology{}, fmt.Errorf("%w: new segment count %d must exceed old count %d",
			reserrors.ErrInvalidTopology, newCount, oldCount)
	}
	if selfIndex < 0 || selfIndex >= newCount {
		return Topology{}, fmt.Errorf("%w: self index %d outside [0, %d)",
			reserrors.ErrInvalidTopology, selfIndex, newCount)
	}
	return Topology{OldCount: oldCount, NewCount: newCount, SelfIndex: selfIndex}, nil
}

// IsNewSegment reports whether this segment was added by the expansion and
// therefore holds no legacy data.
func (t Topology) IsNewSegment() bool { return t.SelfIndex >= t.OldCount }

// Self returns this segment's id.
func (t Topology) Self() types.SegmentID { return types.SegmentID(t.SelfIndex) }

func (t Topology) String() string {
	return fmt.Sprintf("topology{old=%d new=%d self=%d}", t.OldCount, t.NewCount, t.SelfIndex)
}
