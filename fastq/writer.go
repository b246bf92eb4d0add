package fastq

import "io"

var (
	nameMarker = []byte{'@'}
	sepLine    = []byte{'+', '\n'}
	newline    = []byte{'\n'}
)

// Writer is a FASTQ writer.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter constructs a new FASTQ writer that writes records to the
// underlying writer w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes the record rec in four-line FASTQ format, adding the "@" name
// marker and the bare "+" separator line. An error is returned if the write
// failed; after a failure the writer keeps reporting the first error.
func (w *Writer) Write(rec *Record) error {
	w.write(nameMarker)
	w.writeln(rec.Name)
	w.writeln(rec.Seq)
	w.write(sepLine)
	w.writeln(rec.Qual)
	return w.err
}

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(b)
}

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, line)
	if w.err == nil {
		_, w.err = w.w.Write(newline)
	}
}
