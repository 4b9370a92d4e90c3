package sink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"reshard/internal/rowcodec"
	"reshard/pkg/row"
	"reshard/pkg/types"
)

// Sink spools routed rows into one zstd-compressed file per destination
// segment. It stands in for the exchange layer in local runs: routing uses
// only the value the operator wrote into the destination slot, never a
// recomputation.
//
// Spool format per file: a zstd stream of length-prefixed (uint32 BE)
// Avro-binary rows.
type Sink struct {
	dir        string
	segmentCol int
	level      zstd.EncoderLevel
	codec      *rowcodec.Codec

	files map[types.SegmentID]*os.File
	encs  map[types.SegmentID]*zstd.Encoder
	buf   []byte
}

func New(dir string, segmentCol int, level int) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("spool dir: %w", err)
	}
	codec, err := rowcodec.New()
	if err != nil {
		return nil, err
	}
	return &Sink{
		dir:        dir,
		segmentCol: segmentCol,
		level:      zstd.EncoderLevelFromZstd(level),
		codec:      codec,
		files:      make(map[types.SegmentID]*os.File),
		encs:       make(map[types.SegmentID]*zstd.Encoder),
	}, nil
}

// SpoolPath returns the spool file for one destination segment.
func SpoolPath(dir string, seg types.SegmentID) string {
	return filepath.Join(dir, fmt.Sprintf("seg-%04d.avro.zst", seg))
}

// Write routes r by its destination slot.
func (s *Sink) Write(r row.Row) error {
	seg, err := r.SegmentAt(s.segmentCol)
	if err != nil {
		return err
	}

	enc, ok := s.encs[seg]
	if !ok {
		f, err := os.Create(SpoolPath(s.dir, seg))
		if err != nil {
			return fmt.Errorf("spool file: %w", err)
		}
		enc, err = zstd.NewWriter(f, zstd.WithEncoderLevel(s.level))
		if err != nil {
			f.Close()
			return err
		}
		s.files[seg] = f
		s.encs[seg] = enc
	}

	s.buf, err = s.codec.Encode(s.buf[:0], r)
	if err != nil {
		return err
	}
	var sz [4]byte
	binary.BigEndian.PutUint32(sz[:], uint32(len(s.buf)))
	if _, err := enc.Write(sz[:]); err != nil {
		return err
	}
	if _, err := enc.Write(s.buf); err != nil {
		return err
	}
	return nil
}

// Segments returns the destination segments written so far.
func (s *Sink) Segments() []types.SegmentID {
	out := make([]types.SegmentID, 0, len(s.files))
	for seg := range s.files {
		out = append(out, seg)
	}
	return out
}

// Close flushes and closes every spool file.
func (s *Sink) Close() error {
	var firstErr error
	for seg, enc := range s.encs {
		if err := enc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := s.files[seg].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.encs = nil
	s.files = nil
	return firstErr
}

// ReadSpool decodes every row from one spool file. Test and tooling helper.
func ReadSpool(path string) ([]row.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	codec, err := rowcodec.New()
	if err != nil {
		return nil, err
	}

	var rows []row.Row
	var sz [4]byte
	for {
		if _, err := io.ReadFull(dec, sz[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return rows, nil
			}
			return nil, err
		}
		payload := make([]byte, binary.BigEndian.Uint32(sz[:]))
		if _, err := io.ReadFull(dec, payload); err != nil {
			return nil, err
		}
		r, err := codec.Decode(payload)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
}
