package types

// Datum is a single column value in its raw byte encoding. A nil Datum is
// meaningful only together with the row's null flag for the same column.
type Datum = []byte

// SegmentID identifies one shard of a shared-nothing distributed table.
type SegmentID int32

// Action marks what the upstream split step wants done with a row.
type Action int32

const (
	ActionInsert Action = 1
	ActionDelete Action = 2
)

// Valid reports whether a is a known action tag.
func (a Action) Valid() bool {
	return a == ActionInsert || a == ActionDelete
}

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}
