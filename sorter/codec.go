package sorter

import (
	"fmt"
	"io"

	"github.com/grailbio/basefq/fastq"
)

// Codec produces symmetric encoder/decoder pairs for bundles. Encoders and
// decoders returned by one Codec are independent of each other, so multiple
// partitions can be written and read concurrently, one pair per partition.
type Codec interface {
	NewEncoder(w io.Writer) Encoder
	NewDecoder(r io.Reader) Decoder
}

// Encoder writes bundles to a stream.
type Encoder interface {
	Encode(b *Bundle) error
}

// Decoder reads bundles from a stream. It returns io.EOF when the stream
// ends cleanly at a bundle boundary.
type Decoder interface {
	Decode(b *Bundle) error
}

// NewRecordCodec returns the Codec that stores bundles as FASTQ text with a
// fixed number of records per bundle. The encoding is the same four-line
// form the final output uses, so bundles round-trip bit for bit. A bundle
// whose record count disagrees with the codec is a fatal error.
func NewRecordCodec(recordsPerBundle int) Codec {
	return recordCodec{n: recordsPerBundle}
}

type recordCodec struct {
	n int
}

func (c recordCodec) NewEncoder(w io.Writer) Encoder {
	return &recordEncoder{n: c.n, w: fastq.NewWriter(w)}
}

func (c recordCodec) NewDecoder(r io.Reader) Decoder {
	return &recordDecoder{n: c.n, s: fastq.NewScanner(r)}
}

type recordEncoder struct {
	n int
	w *fastq.Writer
}

func (e *recordEncoder) Encode(b *Bundle) error {
	if len(b.Recs) != e.n {
		return fmt.Errorf("bundle has %d records, codec expects %d", len(b.Recs), e.n)
	}
	for i := range b.Recs {
		if err := e.w.Write(&b.Recs[i]); err != nil {
			return err
		}
	}
	return nil
}

type recordDecoder struct {
	n int
	s *fastq.Scanner
}

func (d *recordDecoder) Decode(b *Bundle) error {
	if cap(b.Recs) >= d.n {
		b.Recs = b.Recs[:d.n]
	} else {
		b.Recs = make([]fastq.Record, d.n)
	}
	for i := 0; i < d.n; i++ {
		if d.s.Scan(&b.Recs[i]) {
			continue
		}
		if err := d.s.Err(); err != nil {
			return err
		}
		if i == 0 {
			return io.EOF
		}
		return fmt.Errorf("stream ends mid-bundle after %d of %d records", i, d.n)
	}
	return nil
}
