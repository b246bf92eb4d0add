package fastq

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

var (
	// ErrShort is returned when a truncated FASTQ stream is encountered.
	ErrShort = errors.New("short FASTQ stream")
	// ErrInvalid is returned when an invalid FASTQ stream is encountered.
	ErrInvalid = errors.New("invalid FASTQ stream")
)

var errEOF = errors.New("eof")

// Scanner provides a convenient interface for reading FASTQ records. The
// Scan method reads the next record, returning a boolean indicating whether
// the read succeeded. Scanners are not threadsafe.
//
// Scanner requires name lines to begin with "@" and separator lines to begin
// with "+", strips both markers, and requires the sequence and quality lines
// of a record to have equal length.
type Scanner struct {
	b   *bufio.Scanner
	err error
}

// NewScanner constructs a new Scanner that reads raw FASTQ data from the
// provided reader.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{b: bufio.NewScanner(r)}
}

// Scan the next record into the provided rec. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it never
// returns true again. Upon completion, the user should check the Err method
// to determine whether scanning stopped because of an error or because the
// end of the stream was reached.
func (s *Scanner) Scan(rec *Record) bool {
	if s.err != nil {
		return false
	}
	if !s.b.Scan() {
		if s.err = s.b.Err(); s.err == nil {
			s.err = errEOF
		}
		return false
	}
	name := s.b.Bytes()
	if len(name) == 0 || name[0] != '@' {
		s.err = ErrInvalid
		return false
	}
	rec.Name = string(name[1:])
	if !s.scan() {
		return false
	}
	rec.Seq = s.b.Text()
	if !s.scan() {
		return false
	}
	sep := s.b.Bytes()
	if len(sep) == 0 || sep[0] != '+' {
		s.err = ErrInvalid
		return false
	}
	if !s.scan() {
		return false
	}
	rec.Qual = s.b.Text()
	if len(rec.Qual) != len(rec.Seq) {
		s.err = errors.Wrapf(ErrInvalid, "%s: sequence and quality lengths differ", rec.Name)
		return false
	}
	return true
}

func (s *Scanner) scan() bool {
	ok := s.b.Scan()
	if !ok {
		if s.err = s.b.Err(); s.err == nil {
			s.err = ErrShort
		}
	}
	return ok
}

// Err returns the scanning error, if any.
func (s *Scanner) Err() error {
	if s.err == errEOF {
		return nil
	}
	return s.err
}
