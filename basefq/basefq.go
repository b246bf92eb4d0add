// Package basefq converts raw sequencer clusters into demultiplexed,
// queryname-ordered FASTQ files, one file set per sample group. Tiles are
// processed by a bounded worker pool; each group's records pass through an
// external sorter so memory stays bounded regardless of run size.
package basefq

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/basefq/demux"
	"github.com/grailbio/basefq/illumina"
	"github.com/grailbio/basefq/sorter"
)

// runState carries the per-run plumbing shared by tile workers.
type runState struct {
	opts      Opts
	structure *illumina.ReadStructure
	router    *demux.Router
	enc       illumina.NameEncoder
	qual      illumina.QualityPolicy
	src       illumina.TileSource

	groupIdx    map[*demux.Group]int
	barcodeStrs []string
	writers     []*groupWriter
	sorters     []*sorter.Sorter
	err         errors.Once
}

func parallelism(n int) int {
	if n > 0 {
		return n
	}
	n += runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}

// selectTiles sorts the source's tiles ascending and applies the
// first-tile/limit window.
func selectTiles(all []int, firstTile, limit int) ([]int, error) {
	if len(all) == 0 {
		return nil, fmt.Errorf("source lists no tiles")
	}
	tiles := append([]int{}, all...)
	sort.Ints(tiles)
	if firstTile != 0 {
		i := sort.SearchInts(tiles, firstTile)
		if i == len(tiles) || tiles[i] != firstTile {
			return nil, fmt.Errorf("first tile %d not present in run (tiles %v)", firstTile, tiles)
		}
		tiles = tiles[i:]
	}
	if limit > 0 && len(tiles) > limit {
		tiles = tiles[:limit]
	}
	return tiles, nil
}

func validateAdapters(pairs []AdapterPair) error {
	for _, p := range pairs {
		for _, seq := range []string{p.Forward, p.Reverse} {
			if seq == "" {
				return fmt.Errorf("adapter pair %s,%s has an empty sequence", p.Forward, p.Reverse)
			}
			for i := 0; i < len(seq); i++ {
				switch seq[i] {
				case 'A', 'C', 'G', 'T', 'N':
				default:
					return fmt.Errorf("adapter sequence %s: invalid base %q", seq, seq[i])
				}
			}
		}
	}
	return nil
}

func newRouter(ctx context.Context, structure *illumina.ReadStructure, opts *Opts) (*demux.Router, error) {
	switch {
	case opts.OutputPrefix != "" && opts.SampleSheetPath != "":
		return nil, fmt.Errorf("set exactly one of an output prefix and a sample sheet")
	case opts.OutputPrefix != "":
		return demux.NewSingleRouter(opts.OutputPrefix), nil
	case opts.SampleSheetPath != "":
		if structure.Barcodes.Len() == 0 {
			return nil, fmt.Errorf("demultiplexing requires barcode segments in read structure %s", structure)
		}
		rows, err := demux.ReadSampleSheet(ctx, opts.SampleSheetPath, structure.Barcodes.Len())
		if err != nil {
			return nil, err
		}
		return demux.NewTableRouter(rows)
	}
	return nil, fmt.Errorf("an output prefix or a sample sheet is required")
}

// Run converts all clusters of src per opts. All configuration errors
// surface before the first tile is read.
func Run(ctx context.Context, src illumina.TileSource, opts Opts) error {
	structure, err := illumina.ParseReadStructure(opts.ReadStructure)
	if err != nil {
		return err
	}
	if structure.Templates.Len() == 0 {
		return fmt.Errorf("read structure %s has no template segment", opts.ReadStructure)
	}
	router, err := newRouter(ctx, structure, &opts)
	if err != nil {
		return err
	}
	enc, err := illumina.NewNameEncoder(opts.NameFormat, opts.RunBarcode, opts.Machine, opts.FlowcellBarcode)
	if err != nil {
		return err
	}
	if err := validateAdapters(opts.AdapterPairs); err != nil {
		return err
	}
	if opts.MaxRecordsInRAM <= 0 {
		opts.MaxRecordsInRAM = DefaultOpts.MaxRecordsInRAM
	}

	r := &runState{
		opts:      opts,
		structure: structure,
		router:    router,
		enc:       enc,
		qual:      illumina.QualityPolicy{Min: opts.MinimumQuality},
		src:       src,
	}
	groups := router.Groups()
	r.groupIdx = make(map[*demux.Group]int, len(groups))
	r.barcodeStrs = make([]string, len(groups))
	r.writers = make([]*groupWriter, len(groups))
	r.sorters = make([]*sorter.Sorter, len(groups))
	for i, g := range groups {
		r.groupIdx[g] = i
		r.barcodeStrs[i] = g.BarcodeString()
		if r.writers[i], err = newGroupWriter(ctx, g, structure, &opts); err != nil {
			for j := 0; j < i; j++ {
				r.err.Set(r.writers[j].close(ctx))
			}
			return err
		}
	}

	tiles, err := selectTiles(src.Tiles(), opts.FirstTile, opts.TileLimit)
	if err != nil {
		r.err.Set(err)
		r.release(ctx)
		return err
	}

	recsPerBundle := structure.RecordsPerCluster()
	maxBuffered := opts.MaxRecordsInRAM / recsPerBundle / len(groups)
	if maxBuffered < 1 {
		maxBuffered = 1
	}
	for i, g := range groups {
		r.sorters[i] = sorter.New(sorter.NewRecordCodec(recsPerBundle), sorter.Options{
			MaxBufferedBundles:   maxBuffered,
			NoCompressPartitions: opts.NoCompressSpills,
			TempDir:              opts.TempDir,
			Label:                g.Prefix,
		})
	}

	nWorkers := parallelism(opts.Parallelism)
	log.Printf("basefq: %d tiles, %d groups, %d workers, %d bundles in RAM per group",
		len(tiles), len(groups), nWorkers, maxBuffered)
	tileCh := make(chan int, len(tiles))
	for _, tile := range tiles {
		tileCh <- tile
	}
	close(tileCh)
	r.err.Set(traverse.Each(nWorkers, func(_ int) error {
		conv := newConverter(r.structure, r.enc, r.qual)
		for tile := range tileCh {
			if err := r.err.Err(); err != nil {
				return err
			}
			if err := r.processTile(tile, conv); err != nil {
				r.err.Set(err)
				return err
			}
			if r.opts.ForceGC {
				runtime.GC()
			}
		}
		return nil
	}))
	if err := r.err.Err(); err != nil {
		r.release(ctx)
		return err
	}

	log.Printf("basefq: all tiles read, draining %d groups", len(groups))
	r.err.Set(traverse.Each(len(groups), func(gi int) error {
		errs := errors.Once{}
		errs.Set(r.sorters[gi].Drain(func(b *sorter.Bundle) error {
			return r.writers[gi].write(b)
		}))
		errs.Set(r.writers[gi].close(ctx))
		errs.Set(r.sorters[gi].Close())
		return errs.Err()
	}))
	if err := r.err.Err(); err != nil {
		return err
	}
	log.Printf("basefq: done")
	return nil
}

// release closes writers and sorters after a failure. Partition files are
// removed; partial outputs remain on disk.
func (r *runState) release(ctx context.Context) {
	for _, w := range r.writers {
		if w != nil {
			r.err.Set(w.close(ctx))
		}
	}
	for _, s := range r.sorters {
		if s != nil {
			r.err.Set(s.Close())
		}
	}
}

// processTile feeds one tile's clusters through routing and conversion into
// the group sorters. Clusters of a tile are handled by one worker, in
// order.
func (r *runState) processTile(tile int, conv *converter) (err error) {
	it, err := r.src.Open(tile)
	if err != nil {
		return err
	}
	defer func() {
		if e := it.Close(); e != nil && err == nil {
			err = e
		}
	}()
	var (
		key       = make([]byte, 0, 64)
		nClusters = 0
		nSkipped  = 0
	)
	for it.Scan() {
		c := it.Cluster()
		nClusters++
		if !c.PF && !r.opts.IncludeNonPF {
			nSkipped++
			continue
		}
		key = key[:0]
		for _, segIdx := range r.structure.Barcodes.Indices {
			key = illumina.AppendBaseText(key, c.Segments[segIdx].Bases)
		}
		g := r.router.Route(key)
		gi := r.groupIdx[g]
		c.MatchedBarcode = r.barcodeStrs[gi]
		b, err := conv.bundle(c)
		if err != nil {
			return err
		}
		r.sorters[gi].Add(b)
	}
	if err := it.Err(); err != nil {
		return err
	}
	log.Printf("basefq: tile %d: %d clusters, %d filtered out", tile, nClusters, nSkipped)
	return nil
}
