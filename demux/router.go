package demux

import (
	"strings"

	"github.com/pkg/errors"
)

// A Group is one demultiplexed output destination.
type Group struct {
	// Prefix is the output path prefix for the group's FASTQ files.
	Prefix string
	// Barcodes holds the expected barcode segment values, nil for the
	// fallback group and in single-group mode.
	Barcodes []string
}

// BarcodeString renders the group's expected barcode for read names and
// diagnostics: the segment values joined with "-", or "" when the group has
// no expectation.
func (g *Group) BarcodeString() string {
	return strings.Join(g.Barcodes, "-")
}

// Router maps a cluster's decoded barcode values to its output group.
// Matching is exact; unmatched clusters resolve to the fallback group, which
// always exists by construction.
type Router struct {
	groups   []*Group
	byKey    map[string]*Group
	fallback *Group
}

// NewSingleRouter builds the router used when the run is not demultiplexed:
// every cluster routes to the one group writing to prefix.
func NewSingleRouter(prefix string) *Router {
	g := &Group{Prefix: prefix}
	return &Router{groups: []*Group{g}, fallback: g}
}

// NewTableRouter builds a router from sample-sheet rows, one group per row
// in sheet order. Exactly one fallback row is required so that unmatched
// clusters always have a destination; duplicate barcode combinations and
// duplicate prefixes are configuration errors.
func NewTableRouter(rows []Row) (*Router, error) {
	r := &Router{byKey: make(map[string]*Group, len(rows))}
	prefixes := make(map[string]bool, len(rows))
	for _, row := range rows {
		if prefixes[row.Prefix] {
			return nil, errors.Errorf("duplicate output prefix %s", row.Prefix)
		}
		prefixes[row.Prefix] = true
		g := &Group{Prefix: row.Prefix, Barcodes: row.Barcodes}
		r.groups = append(r.groups, g)
		if row.Barcodes == nil {
			if r.fallback != nil {
				return nil, errors.Errorf("more than one fallback row (%s, %s)", r.fallback.Prefix, g.Prefix)
			}
			r.fallback = g
			continue
		}
		key := strings.Join(row.Barcodes, "")
		if dup, ok := r.byKey[key]; ok {
			return nil, errors.Errorf("barcode %s assigned to both %s and %s", g.BarcodeString(), dup.Prefix, g.Prefix)
		}
		r.byKey[key] = g
	}
	if r.fallback == nil {
		return nil, errors.Errorf("no fallback row: one row must set %s1=%s to catch unmatched clusters", barcodeColumn, NoCallValue)
	}
	return r, nil
}

// Groups returns all output groups in stable (sheet) order.
func (r *Router) Groups() []*Group { return r.groups }

// Route returns the group for a routing key, the cluster's decoded barcode
// values concatenated in segment order. The byte-slice key keeps the hot
// path allocation-free; callers reuse one key buffer across clusters.
func (r *Router) Route(key []byte) *Group {
	if g, ok := r.byKey[string(key)]; ok {
		return g
	}
	return r.fallback
}
