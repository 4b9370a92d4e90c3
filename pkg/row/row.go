package row

import (
	"encoding/binary"
	"fmt"

	"reshard/pkg/reserrors"
	"reshard/pkg/types"
)

// Row is an ordered sequence of column values with parallel null flags.
// Two reserved columns are interpreted by the reshuffle operator: the action
// slot, written by the upstream split step, and the destination slot, which
// the operator fills with the resolved segment id. Both hold an int32 datum.
type Row struct {
	Values []types.Datum
	Nulls  []bool
}

// New returns a row with the given number of columns, all null.
func New(columns int) Row {
	return Row{
		Values: make([]types.Datum, columns),
		Nulls:  make([]bool, columns),
	}
}

// Columns returns the number of column slots.
func (r Row) Columns() int { return len(r.Values) }

// Clone copies the slice headers so the clone's columns can be reassigned
// without touching the original. Datum bytes are shared.
func (r Row) Clone() Row {
	c := New(len(r.Values))
	copy(c.Values, r.Values)
	copy(c.Nulls, r.Nulls)
	return c
}

// Int32At decodes the int32 datum in column i.
func (r Row) Int32At(i int) (int32, error) {
	if i < 0 || i >= len(r.Values) {
		return 0, fmt.Errorf("%w: column %d of %d", reserrors.ErrBadDatum, i, len(r.Values))
	}
	if r.Nulls[i] || len(r.Values[i]) != 4 {
		return 0, fmt.Errorf("%w: column %d is not an int32 datum", reserrors.ErrBadDatum, i)
	}
	return int32(binary.BigEndian.Uint32(r.Values[i])), nil
}

// SetInt32At stores v as a fresh int32 datum in column i. The previous datum
// bytes are left intact so clones that still reference them are unaffected.
func (r Row) SetInt32At(i int, v int32) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(v))
	r.Values[i] = buf
	r.Nulls[i] = false
}

// ActionAt reads the action tag from column i.
func (r Row) ActionAt(i int) (types.Action, error) {
	v, err := r.Int32At(i)
	if err != nil {
		return 0, err
	}
	return types.Action(v), nil
}

// SegmentAt reads the destination segment id from column i.
func (r Row) SegmentAt(i int) (types.SegmentID, error) {
	v, err := r.Int32At(i)
	if err != nil {
		return 0, err
	}
	return types.SegmentID(v), nil
}

// SetSegmentAt writes the destination segment id into column i.
func (r Row) SetSegmentAt(i int, seg types.SegmentID) {
	r.SetInt32At(i, int32(seg))
}
