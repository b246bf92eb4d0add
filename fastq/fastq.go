// Package fastq provides four-line FASTQ record I/O and the read-name
// ordering used for queryname-sorted output.
package fastq

import "strings"

// A Record is a single FASTQ record. Name holds the header line without its
// leading "@" marker; Seq and Qual are the called bases and their printable
// quality string.
type Record struct {
	Name, Seq, Qual string
}

// CompareNames compares two read names in queryname order, which is plain
// byte-lexicographic comparison of the full name. It returns an integer
// comparing the two names lexically: 0 if a == b, -1 if a < b, and +1 if
// a > b. Records of one cluster share a name prefix and keep their segment
// order, so no further tie convention is needed here.
func CompareNames(a, b string) int {
	return strings.Compare(a, b)
}
