package reshuffle

import (
	"reflect"
	"testing"

	"reshard/pkg/topology"
	"reshard/pkg/types"
)

func mustTopology(t *testing.T, oldCount, newCount, selfIndex int) topology.Topology {
	t.Helper()
	topo, err := topology.New(oldCount, newCount, selfIndex)
	if err != nil {
		t.Fatalf("topology: %v", err)
	}
	return topo
}

func TestDestinationSet_ThreeToSeven(t *testing.T) {
	want := map[int][]types.SegmentID{
		0: {3, 6},
		1: {4},
		2: {5},
		3: nil,
		4: nil,
		5: nil,
		6: nil,
	}
	for self, list := range want {
		d := NewDestinationSet(mustTopology(t, 3, 7, self))
		if got := d.List(); !reflect.DeepEqual(got, append([]types.SegmentID{}, list...)) {
			t.Fatalf("self=%d: got %v, want %v", self, got, list)
		}
	}
}

// Every added segment is seeded by exactly one old segment.
func TestDestinationSet_CoversAddedSegmentsOnce(t *testing.T) {
	cases := []struct{ oldCount, newCount int }{
		{3, 7}, {3, 5}, {1, 2}, {2, 9}, {5, 6}, {4, 16},
	}
	for _, tc := range cases {
		seen := map[types.SegmentID]int{}
		for self := 0; self < tc.oldCount; self++ {
			d := NewDestinationSet(mustTopology(t, tc.oldCount, tc.newCount, self))
			for _, seg := range d.List() {
				seen[seg]++
			}
		}
		for seg := tc.oldCount; seg < tc.newCount; seg++ {
			if seen[types.SegmentID(seg)] != 1 {
				t.Fatalf("O=%d N=%d: segment %d seeded %d times",
					tc.oldCount, tc.newCount, seg, seen[types.SegmentID(seg)])
			}
		}
		if len(seen) != tc.newCount-tc.oldCount {
			t.Fatalf("O=%d N=%d: %d segments seeded, want %d",
				tc.oldCount, tc.newCount, len(seen), tc.newCount-tc.oldCount)
		}
	}
}

func TestDestinationSet_EmptyWhenFirstCandidateOutside(t *testing.T) {
	// self + O >= N: segment 2 of a 3->5 expansion owns nothing.
	d := NewDestinationSet(mustTopology(t, 3, 5, 2))
	if d.Len() != 0 {
		t.Fatalf("got %v, want empty", d.List())
	}
}

func TestDestinationSet_CursorRotatesAndWraps(t *testing.T) {
	d := NewDestinationSet(mustTopology(t, 3, 7, 0)) // [3, 6]

	wantSeq := []struct {
		seg     types.SegmentID
		wrapped bool
	}{
		{3, false}, {6, true}, {3, false}, {6, true}, {3, false},
	}
	for i, want := range wantSeq {
		seg, wrapped := d.Next()
		if seg != want.seg || wrapped != want.wrapped {
			t.Fatalf("call %d: got (%d, %v), want (%d, %v)", i, seg, wrapped, want.seg, want.wrapped)
		}
	}
}

func TestDestinationSet_SingleEntryAlwaysWraps(t *testing.T) {
	d := NewDestinationSet(mustTopology(t, 3, 7, 1)) // [4]
	for i := 0; i < 3; i++ {
		seg, wrapped := d.Next()
		if seg != 4 || !wrapped {
			t.Fatalf("call %d: got (%d, %v), want (4, true)", i, seg, wrapped)
		}
	}
}
