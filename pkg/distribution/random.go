package distribution

import (
	"github.com/zhangyunhao116/fastrand"

	"reshard/pkg/types"
)

// PickAdded returns a uniformly distributed segment id in [oldCount,
// newCount), i.e. one of the segments added by the expansion. Randomly
// distributed rows carry no key to derive a placement from, so any added
// segment is as good as any other.
func PickAdded(oldCount, newCount int) types.SegmentID {
	return types.SegmentID(oldCount + int(fastrand.Uint32n(uint32(newCount-oldCount))))
}
