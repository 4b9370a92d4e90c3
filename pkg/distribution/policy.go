package distribution

import (
	"fmt"

	"reshard/pkg/reserrors"
)

// Kind enumerates the distribution strategies a table can use.
type Kind int

const (
	// KindHash places each row by hashing its key columns.
	KindHash Kind = iota
	// KindRandom places each row on a uniformly picked segment.
	KindRandom
	// KindReplicated keeps a full copy of the table on every segment.
	KindReplicated
)

func (k Kind) String() string {
	switch k {
	case KindHash:
		return "hash"
	case KindRandom:
		return "random"
	case KindReplicated:
		return "replicated"
	default:
		return "unknown"
	}
}

// ParseKind maps a config string onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "hash":
		return KindHash, nil
	case "random":
		return KindRandom, nil
	case "replicated":
		return KindReplicated, nil
	default:
		return 0, fmt.Errorf("%w: %q", reserrors.ErrInvalidPolicy, s)
	}
}

// Policy is the tagged variant describing how one table distributes its
// rows. Exactly one kind applies per table; KeyColumns is meaningful only
// for KindHash. Immutable for the lifetime of a reshuffle.
type Policy struct {
	Kind       Kind
	KeyColumns []int
}

// Hash returns a key-hash policy over the given column indices, in order.
func Hash(keyColumns ...int) Policy {
	return Policy{Kind: KindHash, KeyColumns: keyColumns}
}

// Random returns a uniform-random policy.
func Random() Policy { return Policy{Kind: KindRandom} }

// Replicated returns a full-replication policy.
func Replicated() Policy { return Policy{Kind: KindReplicated} }

// Validate checks internal consistency of the variant.
func (p Policy) Validate() error {
	switch p.Kind {
	case KindHash:
		if len(p.KeyColumns) == 0 {
			return fmt.Errorf("%w: hash policy without key columns", reserrors.ErrInvalidPolicy)
		}
		for _, c := range p.KeyColumns {
			if c < 0 {
				return fmt.Errorf("%w: negative key column %d", reserrors.ErrInvalidPolicy, c)
			}
		}
	case KindRandom, KindReplicated:
		if len(p.KeyColumns) != 0 {
			return fmt.Errorf("%w: %s policy carries key columns", reserrors.ErrInvalidPolicy, p.Kind)
		}
	default:
		return fmt.Errorf("%w: kind %d", reserrors.ErrInvalidPolicy, int(p.Kind))
	}
	return nil
}
