package source

import (
	"bufio"
	"fmt"
	"os"

	"github.com/linkedin/goavro/v2"

	"reshard/internal/rowcodec"
	"reshard/pkg/row"
)

// Source streams rows out of an Avro object container file. It is the local
// stand-in for the reshuffle operator's upstream: each record is a row the
// split/filter stages already decided must move, action tag included.
type Source struct {
	f   *os.File
	ocf *goavro.OCFReader
}

func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open row source: %w", err)
	}
	ocf, err := goavro.NewOCFReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open row source: %w", err)
	}
	return &Source{f: f, ocf: ocf}, nil
}

// Next returns the next row, or ok=false at end of file.
func (s *Source) Next() (row.Row, bool, error) {
	if !s.ocf.Scan() {
		return row.Row{}, false, s.ocf.Err()
	}
	native, err := s.ocf.Read()
	if err != nil {
		return row.Row{}, false, fmt.Errorf("read row: %w", err)
	}
	r, err := rowcodec.FromNative(native)
	if err != nil {
		return row.Row{}, false, err
	}
	return r, true, nil
}

func (s *Source) Close() error {
	return s.f.Close()
}

// WriteFile writes rows into a fresh container file. Used by tests and the
// demo data generator.
func WriteFile(path string, rows []row.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:      f,
		Schema: rowcodec.Schema,
	})
	if err != nil {
		f.Close()
		return err
	}
	native := make([]interface{}, 0, len(rows))
	for _, r := range rows {
		native = append(native, rowcodec.ToNative(r))
	}
	if err := w.Append(native); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
