package fastq

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

const fq = `@HWUSI-EAS1814:1:1101:1003:1220 1:N:0:ACTGAT
ATACAGGCCTGANCCACTGTGCCCAGNCTANNTNATTANTGAAN
+
AAAAAEEEEEEE#EEAEEEEEEEEEE#EEE##E#EEEE#EEEE#
@HWUSI-EAS1814:1:1101:1004:1220 1:N:0:ACTGAT
CTCAACTCTGAGNCAGACAGAAATACNTTTNNTNTGAGTTACAN
+
AAAAAEEEEEEE#EEEEEEEEEEEEE#EEE##E#EEEEEEEEE#
@HWUSI-EAS1814:1:1101:1005:1221 1:N:0:ACTGAT
GAGTAACCACGTNCCCATGGCCACAGNTGANNGNGTCACACCTN
+
AAAAAEEEEEEE#EEEEEEEEEAEEE#EEA##E#EEEEEEEE<#
`

func stringScanner(s string) *Scanner {
	return NewScanner(strings.NewReader(s))
}

func scanErr(s string) error {
	scan := stringScanner(s)
	var rec Record
	for scan.Scan(&rec) {
	}
	return scan.Err()
}

func TestScanner(t *testing.T) {
	s := stringScanner(fq)
	var rec Record
	if !s.Scan(&rec) {
		t.Fatal(s.Err())
	}
	expect := Record{
		Name: "HWUSI-EAS1814:1:1101:1003:1220 1:N:0:ACTGAT",
		Seq:  "ATACAGGCCTGANCCACTGTGCCCAGNCTANNTNATTANTGAAN",
		Qual: "AAAAAEEEEEEE#EEAEEEEEEEEEE#EEE##E#EEEE#EEEE#",
	}
	if got, want := rec, expect; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	var n int
	for s.Scan(&rec) {
		n++
	}
	if got, want := n, 2; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if err := s.Err(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestBadInput(t *testing.T) {
	if got, want := scanErr("12312#"), ErrInvalid; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := scanErr("@1234\n123"), ErrShort; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := scanErr("@1234\nACGT\nACGT\n!!!!"), ErrInvalid; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	err := scanErr("@1234\nACGT\n+\n!!!")
	if got, want := errors.Cause(err), ErrInvalid; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	var (
		s   = stringScanner(fq)
		b   = new(bytes.Buffer)
		w   = NewWriter(b)
		rec Record
	)
	for s.Scan(&rec) {
		if err := w.Write(&rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
	if got, want := b.String(), fq; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCompareNames(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"run1:1:1101:5:10", "run1:1:1101:5:10", 0},
		{"run1:1:1101:5:10", "run1:1:1101:5:11", -1},
		{"run1:1:1101:5:11", "run1:1:1101:5:10", 1},
		// Queryname order is lexicographic, not numeric.
		{"run1:1:1101:10:1", "run1:1:1101:9:1", -1},
		{"run1:1:1101:5:10/1", "run1:1:1101:5:10/2", -1},
		{"", "a", -1},
	}
	for _, test := range tests {
		if got, want := CompareNames(test.a, test.b), test.want; got != want {
			t.Errorf("CompareNames(%q, %q): got %v, want %v", test.a, test.b, got, want)
		}
	}
}
