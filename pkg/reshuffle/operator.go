package reshuffle

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"reshard/pkg/distribution"
	"reshard/pkg/metrics"
	"reshard/pkg/reserrors"
	"reshard/pkg/row"
	"reshard/pkg/topology"
	"reshard/pkg/types"
)

// RowSource is the upstream iterator the operator pulls from: the
// delete/insert pairs produced by the split step, already filtered down to
// rows that need to move. Next reports ok=false at end of stream.
type RowSource interface {
	Next() (row.Row, bool, error)
	Close() error
}

// Options fixes an operator's behavior for the lifetime of one reshuffle
// statement.
type Options struct {
	Policy   distribution.Policy
	Topology topology.Topology

	// ActionCol and SegmentCol are the row slots holding the split step's
	// action tag and the destination segment id this operator writes.
	ActionCol  int
	SegmentCol int

	// Verify enables the recomputation checks: a delete row's old-topology
	// placement must equal this segment, and emitted destination slots must
	// stay inside the new cluster. Violations abort the statement.
	Verify bool

	Logger  *slog.Logger
	Metrics metrics.Collector
}

// Operator decides, row by row, which segment of the expanded cluster each
// row moves to. Hash and random tables map one input row to one output row;
// replicated tables fan one insert row out to every destination this segment
// seeds and swallow delete rows entirely.
//
// The operator is one stage in a synchronous pull tree: single-threaded, no
// internal concurrency. Each segment runs its own instance over local data.
type Operator struct {
	id   uuid.UUID
	src  RowSource
	pol  distribution.Policy
	topo topology.Topology

	actionCol  int
	segmentCol int
	verify     bool

	hasher    *distribution.Hasher // target = new count, insert placement
	oldHasher *distribution.Hasher // target = old count, delete verification

	dests *DestinationSet
	saved *row.Row // buffered replicated row mid-fanout

	done   bool
	closed bool

	log   *slog.Logger
	stats metrics.Collector
}

// NewOperator validates opts and builds the operator. Policy dispatch
// happens here, once, not per row.
func NewOperator(src RowSource, opts Options) (*Operator, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	t := opts.Topology
	if _, err := topology.New(t.OldCount, t.NewCount, t.SelfIndex); err != nil {
		return nil, err
	}
	if opts.ActionCol < 0 || opts.SegmentCol < 0 || opts.ActionCol == opts.SegmentCol {
		return nil, fmt.Errorf("%w: action slot %d, destination slot %d",
			reserrors.ErrInvalidPolicy, opts.ActionCol, opts.SegmentCol)
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	stats := opts.Metrics
	if stats == nil {
		stats = metrics.Nop{}
	}

	o := &Operator{
		id:         uuid.New(),
		src:        src,
		pol:        opts.Policy,
		topo:       t,
		actionCol:  opts.ActionCol,
		segmentCol: opts.SegmentCol,
		verify:     opts.Verify,
		log:        log,
		stats:      stats,
	}

	switch opts.Policy.Kind {
	case distribution.KindHash:
		o.hasher = distribution.NewHasher(t.NewCount)
		if opts.Verify {
			o.oldHasher = distribution.NewHasher(t.OldCount)
		}
	case distribution.KindReplicated:
		o.dests = NewDestinationSet(t)
	}

	o.log.Info("reshuffle operator ready",
		"op", o.id, "topology", t.String(), "policy", opts.Policy.Kind.String())
	return o, nil
}

// ID returns the operation id assigned to this run.
func (o *Operator) ID() uuid.UUID { return o.id }

// Destinations returns the replicated destination list, nil for other
// policies.
func (o *Operator) Destinations() []types.SegmentID {
	if o.dests == nil {
		return nil
	}
	return o.dests.List()
}

// Next produces the next routed row. ok=false means the operator is
// exhausted. Any returned error aborts the statement; errors satisfying
// reserrors.IsInternal indicate a bug in topology or policy setup.
func (o *Operator) Next() (row.Row, bool, error) {
	if o.closed {
		return row.Row{}, false, reserrors.ErrClosed
	}
	if o.done {
		return row.Row{}, false, nil
	}

	// A segment added by the expansion holds no legacy data; it finishes
	// without pulling upstream at all.
	if o.topo.IsNewSegment() {
		o.done = true
		return row.Row{}, false, nil
	}

	if o.pol.Kind == distribution.KindReplicated {
		return o.nextReplicated()
	}
	return o.nextSingle()
}

// nextSingle handles the hash and random policies: one row in, one row out.
func (o *Operator) nextSingle() (row.Row, bool, error) {
	r, ok, err := o.src.Next()
	if err != nil {
		return row.Row{}, false, err
	}
	if !ok {
		o.done = true
		return row.Row{}, false, nil
	}
	o.stats.IncCounter("rows_pulled", nil, 1)

	act, err := o.actionOf(r)
	if err != nil {
		return row.Row{}, false, err
	}

	switch act {
	case types.ActionInsert:
		var seg types.SegmentID
		if o.pol.Kind == distribution.KindHash {
			seg, err = o.hasher.Resolve(r.Values, r.Nulls, o.pol.KeyColumns)
			if err != nil {
				return row.Row{}, false, reserrors.MarkInternal(err)
			}
		} else {
			seg = distribution.PickAdded(o.topo.OldCount, o.topo.NewCount)
		}
		if seg < 0 || int(seg) >= o.topo.NewCount {
			return row.Row{}, false, reserrors.MarkInternal(fmt.Errorf(
				"%w: resolved %d for %d segments", reserrors.ErrSegmentOutOfRange, seg, o.topo.NewCount))
		}
		r.SetSegmentAt(o.segmentCol, seg)
		o.countEmitted(act, seg)

	case types.ActionDelete:
		// Delete rows pass through unchanged; the exchange layer routes them
		// by the placement already in the slot. Under Verify the placement
		// is recomputed against the old topology as a consistency check.
		if o.verify {
			if err := o.verifyDelete(r); err != nil {
				return row.Row{}, false, err
			}
		}
		o.countEmitted(act, o.topo.Self())
	}

	return r, true, nil
}

// verifyDelete recomputes a delete row's old-topology placement. A row being
// deleted here must have belonged here under the old segment count.
func (o *Operator) verifyDelete(r row.Row) error {
	if o.pol.Kind == distribution.KindHash {
		old, err := o.oldHasher.Resolve(r.Values, r.Nulls, o.pol.KeyColumns)
		if err != nil {
			return reserrors.MarkInternal(err)
		}
		if old != o.topo.Self() {
			return reserrors.MarkInternal(fmt.Errorf(
				"%w: delete row hashes to %d under %d segments, running on %d",
				reserrors.ErrPlacementMismatch, old, o.topo.OldCount, o.topo.SelfIndex))
		}
	}
	seg, err := r.SegmentAt(o.segmentCol)
	if err != nil {
		return reserrors.MarkInternal(err)
	}
	if seg < 0 || int(seg) >= o.topo.NewCount {
		return reserrors.MarkInternal(fmt.Errorf(
			"%w: delete row carries %d for %d segments", reserrors.ErrSegmentOutOfRange, seg, o.topo.NewCount))
	}
	return nil
}

// nextReplicated fans one buffered insert row out to every destination this
// segment seeds, one row per call, then pulls again. Delete rows are
// discarded: replicated copies are simply absent from new segments, never
// present to remove.
func (o *Operator) nextReplicated() (row.Row, bool, error) {
	if o.dests.Len() == 0 {
		o.done = true
		return row.Row{}, false, nil
	}

	for {
		if o.saved == nil {
			r, ok, err := o.src.Next()
			if err != nil {
				return row.Row{}, false, err
			}
			if !ok {
				o.done = true
				return row.Row{}, false, nil
			}
			o.stats.IncCounter("rows_pulled", nil, 1)
			o.saved = &r
		}

		act, err := o.actionOf(*o.saved)
		if err != nil {
			return row.Row{}, false, err
		}
		if act == types.ActionDelete {
			o.saved = nil
			o.stats.IncCounter("rows_discarded", nil, 1)
			continue
		}

		out := o.saved.Clone()
		seg, wrapped := o.dests.Next()
		out.SetSegmentAt(o.segmentCol, seg)
		if wrapped {
			o.saved = nil
		}
		o.countEmitted(act, seg)
		return out, true, nil
	}
}

func (o *Operator) actionOf(r row.Row) (types.Action, error) {
	act, err := r.ActionAt(o.actionCol)
	if err != nil {
		return 0, reserrors.MarkInternal(err)
	}
	if !act.Valid() {
		return 0, reserrors.MarkInternal(fmt.Errorf("%w: %d", reserrors.ErrBadAction, int32(act)))
	}
	return act, nil
}

func (o *Operator) countEmitted(act types.Action, seg types.SegmentID) {
	o.stats.IncCounter("rows_emitted", map[string]string{
		"action":  act.String(),
		"segment": strconv.Itoa(int(seg)),
	}, 1)
}

// Close releases the hash accumulators and closes the upstream source.
// It is idempotent and safe to call mid-stream; no partial-row effects
// remain observable afterwards.
func (o *Operator) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true
	o.hasher = nil
	o.oldHasher = nil
	o.saved = nil
	o.log.Info("reshuffle operator closed", "op", o.id)
	return o.src.Close()
}
