// Package illumina models run-level sequencer output: the read-structure
// descriptor, per-cluster base and quality calls, read-name generation, and
// the quality policy applied when transcoding calls to FASTQ.
package illumina

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// SegmentType identifies the role of one read-structure segment.
type SegmentType byte

const (
	// Template segments carry sequence destined for per-sample template
	// output.
	Template SegmentType = 'T'
	// Barcode segments carry sample-index sequence used for
	// demultiplexing.
	Barcode SegmentType = 'B'
	// Skip segments are cycles consumed upstream that produce no output.
	Skip SegmentType = 'S'
)

// A Segment is one run of consecutive cycles sharing a type.
type Segment struct {
	Cycles int
	Type   SegmentType
}

// A SegmentSet is a view over all segments of one type, in structure order.
type SegmentSet struct {
	// Indices are the positions of the set's segments within
	// ReadStructure.Segments.
	Indices []int
	// Cycles are the absolute 1-based cycle numbers covered by the set's
	// segments, in order.
	Cycles []int
}

// Len returns the number of segments in the set.
func (s SegmentSet) Len() int { return len(s.Indices) }

// A ReadStructure describes how one run's cycles are laid out as ordered,
// typed segments. It is parsed from a compact descriptor such as "76T8B76T":
// 76 template cycles, then 8 barcode cycles, then 76 more template cycles.
type ReadStructure struct {
	Segments  []Segment
	Templates SegmentSet
	Barcodes  SegmentSet
	Skips     SegmentSet

	totalCycles int
}

// ParseReadStructure parses a read-structure descriptor. A descriptor is a
// concatenation of "<cycles><type>" groups where cycles is a positive
// integer and type is one of 'T', 'B', or 'S'.
func ParseReadStructure(descriptor string) (*ReadStructure, error) {
	if descriptor == "" {
		return nil, errors.New("empty read structure")
	}
	var (
		rs     = &ReadStructure{}
		count  int
		digits int
	)
	for i := 0; i < len(descriptor); i++ {
		c := descriptor[i]
		if c >= '0' && c <= '9' {
			count = count*10 + int(c-'0')
			digits++
			continue
		}
		if digits == 0 {
			return nil, errors.Errorf("read structure %q: no cycle count before %q", descriptor, string(c))
		}
		if count == 0 {
			return nil, errors.Errorf("read structure %q: zero-length segment", descriptor)
		}
		var set *SegmentSet
		switch SegmentType(c) {
		case Template:
			set = &rs.Templates
		case Barcode:
			set = &rs.Barcodes
		case Skip:
			set = &rs.Skips
		default:
			return nil, errors.Errorf("read structure %q: unknown segment type %q", descriptor, string(c))
		}
		set.Indices = append(set.Indices, len(rs.Segments))
		for cyc := 1; cyc <= count; cyc++ {
			set.Cycles = append(set.Cycles, rs.totalCycles+cyc)
		}
		rs.Segments = append(rs.Segments, Segment{Cycles: count, Type: SegmentType(c)})
		rs.totalCycles += count
		count, digits = 0, 0
	}
	if digits > 0 {
		return nil, errors.Errorf("read structure %q: trailing cycle count with no segment type", descriptor)
	}
	return rs, nil
}

// TotalCycles returns the number of cycles covered by all segments.
func (r *ReadStructure) TotalCycles() int { return r.totalCycles }

// RecordsPerCluster returns the number of FASTQ records one cluster yields
// under this structure: one per template segment plus one per barcode
// segment.
func (r *ReadStructure) RecordsPerCluster() int {
	return r.Templates.Len() + r.Barcodes.Len()
}

// String renders the structure in descriptor form.
func (r *ReadStructure) String() string {
	var b strings.Builder
	for _, s := range r.Segments {
		fmt.Fprintf(&b, "%d%c", s.Cycles, s.Type)
	}
	return b.String()
}
