package distribution

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"reshard/pkg/reserrors"
	"reshard/pkg/types"
)

// Hasher maps a row's key columns onto a segment in [0, segments). It is the
// same placement function the ordinary write path uses, so a row resolved
// here lands exactly where a fresh insert of the same row would land; any
// divergence makes redistributed rows unreachable by normal queries.
//
// A Hasher carries its accumulator across calls and is not safe for
// concurrent use.
type Hasher struct {
	digest   *xxhash.Digest
	segments int
}

// NewHasher returns a Hasher configured for a cluster of segments segments.
func NewHasher(segments int) *Hasher {
	return &Hasher{
		digest:   xxhash.New(),
		segments: segments,
	}
}

// Segments returns the segment count this Hasher reduces into.
func (h *Hasher) Segments() int { return h.segments }

// Resolve mixes each key column, in order, into the accumulator and reduces
// the result to a segment id. Column positions are numbered from 1 and mixed
// together with the null flag, so ("a", null) and (null, "a") hash apart.
func (h *Hasher) Resolve(values []types.Datum, nulls []bool, keyColumns []int) (types.SegmentID, error) {
	if len(keyColumns) == 0 {
		return 0, fmt.Errorf("%w: no key columns", reserrors.ErrInvalidPolicy)
	}

	h.digest.Reset()
	var hdr [5]byte
	for i, col := range keyColumns {
		if col < 0 || col >= len(values) {
			return 0, fmt.Errorf("%w: key column %d of %d", reserrors.ErrBadDatum, col, len(values))
		}
		binary.BigEndian.PutUint32(hdr[:4], uint32(i+1))
		if nulls[col] {
			hdr[4] = 1
			h.digest.Write(hdr[:])
			continue
		}
		hdr[4] = 0
		h.digest.Write(hdr[:])
		h.digest.Write(values[col])
	}

	return types.SegmentID(jump(h.digest.Sum64(), h.segments)), nil
}

// jump is the jump consistent hash of Lamping and Ringenburg. When the
// segment count grows from O to N, a key either keeps its bucket or moves to
// one of the added buckets [O, N), which is what lets the reshuffle leave
// unmoved rows untouched.
func jump(key uint64, n int) int {
	b, j := int64(-1), int64(0)
	for j < int64(n) {
		b = j
		key = key*uint64(2862933555777941757) + 1
		j = int64(float64(b+1) * (float64(int64(1)<<31) / float64((key>>33)+1)))
	}
	return int(b)
}
