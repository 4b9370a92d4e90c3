package reserrors

import "errors"

var (
	ErrClosed            = errors.New("reshard: closed")
	ErrInvalidTopology   = errors.New("reshard: invalid topology")
	ErrInvalidPolicy     = errors.New("reshard: invalid distribution policy")
	ErrBadAction         = errors.New("reshard: unknown action tag")
	ErrBadDatum          = errors.New("reshard: malformed datum")
	ErrSegmentOutOfRange = errors.New("reshard: segment id out of range")
	ErrPlacementMismatch = errors.New("reshard: old-topology placement mismatch")
)

// Internal wraps an error that indicates a bug in topology or policy setup
// rather than a user-correctable condition. It is never retried; the
// statement executor aborts the whole reshuffle on it.
type Internal struct {
	Err error
}

func (e *Internal) Error() string { return "reshard: internal: " + e.Err.Error() }

func (e *Internal) Unwrap() error { return e.Err }

// MarkInternal tags err as an internal invariant violation. A nil err stays nil.
func MarkInternal(err error) error {
	if err == nil {
		return nil
	}
	return &Internal{Err: err}
}

// IsInternal reports whether err carries an internal invariant violation.
func IsInternal(err error) bool {
	var ie *Internal
	return errors.As(err, &ie)
}
