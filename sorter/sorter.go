// Package sorter implements the external sort behind per-sample FASTQ
// output: record bundles buffer in memory, spill to compressed partition
// files as sorted runs, and drain through a k-way merge that yields the
// global queryname order.
package sorter

import (
	"fmt"
	"io/ioutil"
	"os"
	"sort"
	"strings"
	"sync"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/unsafe"
	"github.com/grailbio/basefq/fastq"
	"v.io/x/lib/vlog"
)

// DefaultMaxBufferedBundles is the default number of bundles to keep in
// memory before spilling to disk.
const DefaultMaxBufferedBundles = 1 << 18

// DefaultParallelism is the default value for Options.Parallelism.
const DefaultParallelism = 2

// Options controls a Sorter.
type Options struct {
	// MaxBufferedBundles is the number of bundles to buffer in memory
	// before spilling a sorted partition to disk. If <= 0,
	// DefaultMaxBufferedBundles is used.
	MaxBufferedBundles int

	// Parallelism limits the number of background spill workers. Memory
	// consumption of the sorter grows linearly with this value. If <= 0,
	// DefaultParallelism is used.
	Parallelism int

	// NoCompressPartitions, if false (default), compresses partition
	// blocks with snappy.
	NoCompressPartitions bool

	// TempDir is the directory for partition files. "" means the system
	// default, usually /tmp.
	TempDir string

	// Label names the sorter's output group in logs and errors.
	Label string
}

// A Bundle is the ordered set of FASTQ records derived from one cluster:
// template records in segment order, then barcode records. Bundles are the
// atomic unit of sorting; all records of a bundle stay together through
// spill and merge.
type Bundle struct {
	Recs []fastq.Record
}

// Key returns the bundle's sort key, the first record's name.
func (b *Bundle) Key() string { return b.Recs[0].Name }

// compareBundles returns -1, 0, or 1 ordering a before, equal to, or after
// b. The primary key is queryname order of the first record's name; ties
// fall through to the remaining record content, so the merged order is
// reproducible no matter how bundles were spread over partitions.
func compareBundles(a, b *Bundle) int {
	for i := range a.Recs {
		if i >= len(b.Recs) {
			return 1
		}
		ra, rb := &a.Recs[i], &b.Recs[i]
		if c := fastq.CompareNames(ra.Name, rb.Name); c != 0 {
			return c
		}
		if c := strings.Compare(ra.Seq, rb.Seq); c != 0 {
			return c
		}
		if c := strings.Compare(ra.Qual, rb.Qual); c != 0 {
			return c
		}
	}
	if len(a.Recs) < len(b.Recs) {
		return -1
	}
	return 0
}

const signatureMix = 0x9e3779b97f4a7c15

// bundleSignature hashes a bundle's full content. Per-bundle signatures are
// summed across a stream, so the same multiset of bundles produces the same
// total in any order; Drain uses this to verify that the merge emitted
// exactly what Add accepted.
func bundleSignature(b *Bundle) uint64 {
	var sig uint64
	for i := range b.Recs {
		r := &b.Recs[i]
		sig = sig*signatureMix + seahash.Sum64(unsafe.StringToBytes(r.Name))
		sig = sig*signatureMix + seahash.Sum64(unsafe.StringToBytes(r.Seq))
		sig = sig*signatureMix + seahash.Sum64(unsafe.StringToBytes(r.Qual))
	}
	return sig
}

// Sorter accepts bundles in arbitrary order and yields them in queryname
// order. Bundles buffer in memory; full buffers are handed to background
// workers that sort them and write one partition file each. Drain merges
// the partitions with whatever remains buffered.
//
// Example:
//	s := sorter.New(sorter.NewRecordCodec(3), sorter.Options{Label: "sample1"})
//	for _, b := range bundles {
//		s.Add(b)
//	}
//	err := s.Drain(emit)
//	err = s.Close()
//
// Add may be called concurrently from multiple goroutines. Drain and Close
// are single-threaded and must follow all Adds.
type Sorter struct {
	opts  Options
	codec Codec
	pool  *blockPool

	mu     sync.Mutex
	sealed bool
	buf    []Bundle
	nAdded int64
	addSig uint64

	spillCh chan []Bundle
	wg      sync.WaitGroup
	err     errors.Once

	partMu     sync.Mutex
	partitions []string
}

// New creates a Sorter. The codec's record count must match every bundle
// subsequently added.
func New(codec Codec, opts Options) *Sorter {
	if opts.MaxBufferedBundles <= 0 {
		opts.MaxBufferedBundles = DefaultMaxBufferedBundles
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	s := &Sorter{
		opts:    opts,
		codec:   codec,
		pool:    newBlockPool(),
		spillCh: make(chan []Bundle, opts.Parallelism),
	}
	for i := 0; i < opts.Parallelism; i++ {
		s.wg.Add(1)
		go func() {
			for batch := range s.spillCh {
				s.spill(batch)
			}
			s.wg.Done()
		}()
	}
	return s
}

// Add hands one bundle to the sorter, which takes ownership of it. Add
// blocks when the buffer is full and all spill workers are busy.
func (s *Sorter) Add(b Bundle) {
	sig := bundleSignature(&b)
	s.mu.Lock()
	if s.sealed {
		s.mu.Unlock()
		vlog.Fatalf("%s: Add after Drain/Close", s.opts.Label)
	}
	s.nAdded++
	s.addSig += sig
	s.buf = append(s.buf, b)
	if len(s.buf) < s.opts.MaxBufferedBundles {
		s.mu.Unlock()
		return
	}
	batch := s.buf
	s.buf = nil
	s.mu.Unlock()
	s.spillCh <- batch
}

// spill sorts one batch and writes it as a partition file.
func (s *Sorter) spill(batch []Bundle) {
	sort.Slice(batch, func(i, j int) bool {
		return compareBundles(&batch[i], &batch[j]) < 0
	})
	temp, err := ioutil.TempFile(s.opts.TempDir, "basefqsort")
	if err != nil {
		s.err.Set(err)
		return
	}
	vlog.VI(1).Infof("%s: spilling %d bundles to %s", s.opts.Label, len(batch), temp.Name())
	w := newPartitionWriter(temp, s.codec, !s.opts.NoCompressPartitions, s.pool, &s.err)
	for i := range batch {
		w.add(&batch[i])
	}
	w.finish()
	s.err.Set(temp.Close())
	s.partMu.Lock()
	s.partitions = append(s.partitions, temp.Name())
	s.partMu.Unlock()
}

// Drain seals the sorter, waits for in-flight spills, then merges all
// partitions together with the remaining in-memory bundles, calling emit
// once per bundle in queryname order. The bundle passed to emit is only
// valid during the call. If emit returns an error the merge stops and Drain
// returns that error. Drain must be called at most once, after all Adds.
func (s *Sorter) Drain(emit func(b *Bundle) error) error {
	s.mu.Lock()
	if s.sealed {
		s.mu.Unlock()
		return fmt.Errorf("%s: sorter already drained or closed", s.opts.Label)
	}
	s.sealed = true
	last := s.buf
	s.buf = nil
	s.mu.Unlock()

	close(s.spillCh)
	s.wg.Wait()
	if err := s.err.Err(); err != nil {
		return err
	}

	sort.Slice(last, func(i, j int) bool {
		return compareBundles(&last[i], &last[j]) < 0
	})
	s.partMu.Lock()
	partitions := s.partitions
	s.partMu.Unlock()
	sources := make([]mergeSource, 0, len(partitions)+1)
	for _, path := range partitions {
		sources = append(sources, newPartitionReader(path, s.codec, s.pool, &s.err))
	}
	if len(last) > 0 {
		sources = append(sources, &memSource{bundles: last})
	}
	vlog.VI(1).Infof("%s: merging %d partitions and %d buffered bundles",
		s.opts.Label, len(partitions), len(last))

	var (
		nEmitted int64
		emitSig  uint64
		emitErr  error
	)
	mergeSources(sources, func(b *Bundle) bool {
		if err := emit(b); err != nil {
			emitErr = err
			return false
		}
		emitSig += bundleSignature(b)
		nEmitted++
		return true
	})
	if emitErr != nil {
		return emitErr
	}
	if err := s.err.Err(); err != nil {
		return err
	}
	if nEmitted != s.nAdded || emitSig != s.addSig {
		return fmt.Errorf("%s: merge emitted %d bundles (signature %x), but %d were added (signature %x)",
			s.opts.Label, nEmitted, emitSig, s.nAdded, s.addSig)
	}
	return nil
}

// Close removes the sorter's partition files and releases its workers. It
// is safe to call whether or not Drain ran, and after errors; it must be
// called exactly once eventually.
func (s *Sorter) Close() error {
	s.mu.Lock()
	sealed := s.sealed
	s.sealed = true
	s.buf = nil
	s.mu.Unlock()
	if !sealed {
		close(s.spillCh)
		s.wg.Wait()
	}
	s.partMu.Lock()
	partitions := s.partitions
	s.partitions = nil
	s.partMu.Unlock()
	for _, path := range partitions {
		if err := os.Remove(path); err != nil {
			vlog.Errorf("%s: failed to remove sorter temp file %v: %v", s.opts.Label, path, err)
		}
	}
	return s.err.Err()
}
