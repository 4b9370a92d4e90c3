// rowgen writes a demo Avro row file for the reshuffle worker: split-update
// pairs of (delete, insert) rows with a key column, a payload column, the
// action slot and an empty destination slot.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"reshard/internal/source"
	"reshard/pkg/row"
	"reshard/pkg/types"
)

func main() {
	out := flag.String("out", "rows.avro", "output file")
	pairs := flag.Int("pairs", 1000, "number of delete/insert pairs")
	self := flag.Int("self", 0, "segment the rows currently live on")
	flag.Parse()

	rows := make([]row.Row, 0, *pairs*2)
	for i := 0; i < *pairs; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		payload := []byte(fmt.Sprintf("payload-%d", i))
		rows = append(rows,
			makeRow(key, payload, types.ActionDelete, *self),
			makeRow(key, payload, types.ActionInsert, *self),
		)
	}

	if err := source.WriteFile(*out, rows); err != nil {
		slog.Error("write rows", "err", err)
		os.Exit(1)
	}
	slog.Info("rows written", "path", *out, "rows", len(rows))
}

func makeRow(key, payload []byte, act types.Action, self int) row.Row {
	r := row.New(4)
	r.Values[0], r.Nulls[0] = key, false
	r.Values[1], r.Nulls[1] = payload, false
	r.SetInt32At(2, int32(act))
	r.SetSegmentAt(3, types.SegmentID(self))
	return r
}
