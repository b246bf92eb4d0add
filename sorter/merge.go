package sorter

import (
	"github.com/biogo/store/llrb"
	"v.io/x/lib/vlog"
)

// mergeSource is one sorted run of bundles, either a partition file or the
// in-memory tail of the sorter.
type mergeSource interface {
	// scan advances to the next bundle. It returns false at the end of the
	// run or on error.
	scan() bool
	// bundle returns the current bundle. Valid until the next scan.
	bundle() *Bundle
	// drain releases the source's resources. Must be called exactly once,
	// whether or not the run was read to the end.
	drain()
}

// memSource iterates over a sorted in-memory run.
type memSource struct {
	bundles []Bundle
	n       int
}

func (m *memSource) scan() bool {
	if m.n >= len(m.bundles) {
		return false
	}
	m.n++
	return true
}

func (m *memSource) bundle() *Bundle { return &m.bundles[m.n-1] }
func (m *memSource) drain()          {}

type mergeLeaf struct {
	seq  int
	src  mergeSource
	done bool
}

func newMergeLeaf(seq int, src mergeSource) *mergeLeaf {
	leaf := mergeLeaf{seq: seq, src: src}
	if !leaf.src.scan() {
		return nil
	}
	return &leaf
}

func (l *mergeLeaf) Compare(c1 llrb.Comparable) int {
	l1 := c1.(*mergeLeaf)
	if c := compareBundles(l.src.bundle(), l1.src.bundle()); c != 0 {
		return c
	}
	return l.seq - l1.seq
}

// mergeSources merges sorted runs, calling emit for each bundle in
// nondecreasing key order. If emit returns false, the merge stops early.
// All sources are drained before returning.
func mergeSources(sources []mergeSource, emit func(b *Bundle) bool) {
	// Sort the sources using a binary tree. This should be faster than a
	// binary heap or tournament tree. The hope is that the child at the top
	// of the tree will stay at the top for many bundles. If that hope
	// holds, the tree maintains the sorted order in amortized O(1) time,
	// whereas a heap always costs O(log(len(sources))).
	leafs := llrb.Tree{}

	// Create a one-level tree.
	for i, src := range sources {
		if c := newMergeLeaf(i, src); c != nil {
			leafs.Insert(c)
		}
	}
	vlog.VI(1).Infof("Merging %d sources, %d leafs active", len(sources), leafs.Len())

	// Do N-way merge. emit will be called with an increasing list of
	// bundles.
	done := false
	for !done && leafs.Len() > 0 {
		nthiter := 0
		// top is the smallest child. We read from top.
		// next is the 2nd smallest child, or nil if top is the only
		// child in the tree.
		var top, next *mergeLeaf
		leafs.Do(func(item llrb.Comparable) bool {
			nthiter++
			switch nthiter {
			case 1:
				top = item.(*mergeLeaf)
				return false
			case 2:
				next = item.(*mergeLeaf)
				return true
			default:
				vlog.Fatal(nthiter)
				return false
			}
		})
		// Read bundles from top, until it becomes larger than next.
		for {
			if !emit(top.src.bundle()) {
				done = true
				break
			}
			top.done = !top.src.scan()
			if top.done || (next != nil && compareBundles(next.src.bundle(), top.src.bundle()) < 0) {
				break
			}
		}
		// Move top into the proper place in the tree.
		lenBefore := leafs.Len()
		leafs.DeleteMin()
		if !top.done {
			leafs.Insert(top)
			if lenAfter := leafs.Len(); lenBefore != lenAfter {
				vlog.Fatalf("Leaf size decreased from %d -> %d", lenBefore, lenAfter)
			}
		}
	}
	for _, src := range sources {
		src.drain()
	}
}
