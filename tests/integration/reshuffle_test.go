package integration

import (
	"fmt"
	"path/filepath"
	"testing"

	"reshard/internal/metrics"
	"reshard/internal/sink"
	"reshard/internal/source"
	"reshard/pkg/distribution"
	"reshard/pkg/reshuffle"
	"reshard/pkg/row"
	"reshard/pkg/topology"
	"reshard/pkg/types"
)

const (
	keyCol     = 0
	payloadCol = 1
	actionCol  = 2
	segmentCol = 3
)

func makeRow(key string, act types.Action, current types.SegmentID) row.Row {
	r := row.New(4)
	r.Values[keyCol] = []byte(key)
	r.Values[payloadCol] = []byte("payload-" + key)
	r.SetInt32At(actionCol, int32(act))
	r.SetSegmentAt(segmentCol, current)
	return r
}

// Full pipeline for a hash-distributed table: avro source -> operator ->
// zstd spool sink, run once per old segment, then checked against the
// write-path placement of every key.
func TestReshuffle_HashEndToEnd(t *testing.T) {
	const oldCount, newCount, pairs = 2, 4, 300
	dir := t.TempDir()

	oldHasher := distribution.NewHasher(oldCount)
	newHasher := distribution.NewHasher(newCount)

	// Split-update pairs bucketed by the segment they currently live on,
	// keeping only rows the predicate would move (old placement != new).
	perSegment := make(map[int][]row.Row)
	wantPerDest := make(map[types.SegmentID]int)
	for i := 0; i < pairs; i++ {
		key := fmt.Sprintf("key-%d", i)
		probe := makeRow(key, types.ActionInsert, 0)
		oldSeg, err := oldHasher.Resolve(probe.Values, probe.Nulls, []int{keyCol})
		if err != nil {
			t.Fatalf("old placement: %v", err)
		}
		newSeg, err := newHasher.Resolve(probe.Values, probe.Nulls, []int{keyCol})
		if err != nil {
			t.Fatalf("new placement: %v", err)
		}
		if oldSeg == newSeg {
			continue
		}
		perSegment[int(oldSeg)] = append(perSegment[int(oldSeg)],
			makeRow(key, types.ActionDelete, oldSeg),
			makeRow(key, types.ActionInsert, oldSeg),
		)
		wantPerDest[newSeg]++
	}
	if len(wantPerDest) == 0 {
		t.Fatal("no keys moved; test data degenerate")
	}

	gotPerDest := make(map[types.SegmentID]int)
	for self := 0; self < oldCount; self++ {
		srcPath := filepath.Join(dir, fmt.Sprintf("src-%d.avro", self))
		if err := source.WriteFile(srcPath, perSegment[self]); err != nil {
			t.Fatalf("write source: %v", err)
		}
		src, err := source.Open(srcPath)
		if err != nil {
			t.Fatalf("open source: %v", err)
		}

		topo, err := topology.New(oldCount, newCount, self)
		if err != nil {
			t.Fatalf("topology: %v", err)
		}
		stats := metrics.New()
		op, err := reshuffle.NewOperator(src, reshuffle.Options{
			Policy:     distribution.Hash(keyCol),
			Topology:   topo,
			ActionCol:  actionCol,
			SegmentCol: segmentCol,
			Verify:     true,
			Metrics:    stats,
		})
		if err != nil {
			t.Fatalf("operator: %v", err)
		}

		spoolDir := filepath.Join(dir, fmt.Sprintf("spool-%d", self))
		out, err := sink.New(spoolDir, segmentCol, 3)
		if err != nil {
			t.Fatalf("sink: %v", err)
		}

		for {
			r, ok, err := op.Next()
			if err != nil {
				t.Fatalf("segment %d: %v", self, err)
			}
			if !ok {
				break
			}
			if err := out.Write(r); err != nil {
				t.Fatalf("spool write: %v", err)
			}
		}
		spooled := out.Segments()
		if err := op.Close(); err != nil {
			t.Fatalf("close operator: %v", err)
		}
		if err := out.Close(); err != nil {
			t.Fatalf("close sink: %v", err)
		}

		// Count insert rows per destination spool; verify routing matched the
		// write path for every spooled row.
		for _, seg := range spooled {
			rows, err := sink.ReadSpool(sink.SpoolPath(spoolDir, seg))
			if err != nil {
				t.Fatalf("read spool: %v", err)
			}
			for _, r := range rows {
				act, err := r.ActionAt(actionCol)
				if err != nil {
					t.Fatalf("spooled action: %v", err)
				}
				if act != types.ActionInsert {
					continue
				}
				want, err := newHasher.Resolve(r.Values, r.Nulls, []int{keyCol})
				if err != nil {
					t.Fatalf("write-path placement: %v", err)
				}
				if want != seg {
					t.Fatalf("row %q spooled to %d, write path places at %d", r.Values[keyCol], seg, want)
				}
				gotPerDest[seg]++
			}
		}
	}

	for seg, want := range wantPerDest {
		if gotPerDest[seg] != want {
			t.Fatalf("destination %d received %d inserts, want %d", seg, gotPerDest[seg], want)
		}
	}
}

// Replicated table, 3 -> 7 segments: every added segment ends up with every
// row exactly once, and old segments keep no spool for each other.
func TestReshuffle_ReplicatedEndToEnd(t *testing.T) {
	const oldCount, newCount, tableRows = 3, 7, 50
	dir := t.TempDir()

	copiesPerDest := make(map[types.SegmentID]int)
	for self := 0; self < newCount; self++ {
		// Replicated tables hold the full table on every old segment; the
		// split step still produces delete/insert pairs.
		var rows []row.Row
		for i := 0; i < tableRows; i++ {
			key := fmt.Sprintf("key-%d", i)
			rows = append(rows,
				makeRow(key, types.ActionDelete, types.SegmentID(self)),
				makeRow(key, types.ActionInsert, types.SegmentID(self)),
			)
		}
		srcPath := filepath.Join(dir, fmt.Sprintf("src-%d.avro", self))
		if err := source.WriteFile(srcPath, rows); err != nil {
			t.Fatalf("write source: %v", err)
		}
		src, err := source.Open(srcPath)
		if err != nil {
			t.Fatalf("open source: %v", err)
		}

		topo, err := topology.New(oldCount, newCount, self)
		if err != nil {
			t.Fatalf("topology: %v", err)
		}
		op, err := reshuffle.NewOperator(src, reshuffle.Options{
			Policy:     distribution.Replicated(),
			Topology:   topo,
			ActionCol:  actionCol,
			SegmentCol: segmentCol,
			Verify:     true,
		})
		if err != nil {
			t.Fatalf("operator: %v", err)
		}

		emitted := 0
		for {
			r, ok, err := op.Next()
			if err != nil {
				t.Fatalf("segment %d: %v", self, err)
			}
			if !ok {
				break
			}
			seg, err := r.SegmentAt(segmentCol)
			if err != nil {
				t.Fatalf("destination: %v", err)
			}
			copiesPerDest[seg]++
			emitted++
		}
		if err := op.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}

		wantEmitted := tableRows * len(op.Destinations())
		if emitted != wantEmitted {
			t.Fatalf("segment %d emitted %d rows, want %d", self, emitted, wantEmitted)
		}
	}

	for seg := oldCount; seg < newCount; seg++ {
		if got := copiesPerDest[types.SegmentID(seg)]; got != tableRows {
			t.Fatalf("added segment %d received %d rows, want %d", seg, got, tableRows)
		}
	}
	for seg := 0; seg < oldCount; seg++ {
		if got := copiesPerDest[types.SegmentID(seg)]; got != 0 {
			t.Fatalf("old segment %d received %d rows, want none", seg, got)
		}
	}
}
