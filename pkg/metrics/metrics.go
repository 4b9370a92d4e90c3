package metrics

// Collector captures counters emitted on the row hot path. Implementations
// must be safe for concurrent use: the status API reads while the operator
// writes.
type Collector interface {
	IncCounter(name string, labels map[string]string, delta float64)
	Snapshot() map[string]float64
}

// Nop discards every observation.
type Nop struct{}

func (Nop) IncCounter(string, map[string]string, float64) {}

func (Nop) Snapshot() map[string]float64 { return nil }
