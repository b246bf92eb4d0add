package illumina

import "github.com/pkg/errors"

// A ClusterIter iterates over one tile's clusters:
//
//	iter, err := src.Open(tile)
//	for iter.Scan() {
//		process(iter.Cluster())
//	}
//	err = firstErr(iter.Err(), iter.Close())
//
// The cluster returned by Cluster is valid only until the next Scan;
// implementations may reuse its storage.
type ClusterIter interface {
	// Scan advances to the next cluster. It returns false at end of tile
	// or on error.
	Scan() bool
	// Cluster returns the cluster read by the last successful Scan.
	Cluster() *Cluster
	// Err returns the first error encountered, or nil.
	Err() error
	// Close releases the iterator's resources.
	Close() error
}

// A TileSource yields the tiles of one sequencing lane. Tiles returns the
// available tile numbers in no particular order. Open creates an iterator
// over one tile's clusters; it may be called from multiple goroutines, with
// at most one live iterator per tile.
type TileSource interface {
	Tiles() []int
	Open(tile int) (ClusterIter, error)
}

// SliceSource is a TileSource serving clusters held in memory, used by
// tests and simulations.
type SliceSource struct {
	// TileClusters maps tile number to that tile's clusters, in order.
	TileClusters map[int][]*Cluster
}

// Tiles implements TileSource.
func (s *SliceSource) Tiles() []int {
	tiles := make([]int, 0, len(s.TileClusters))
	for tile := range s.TileClusters {
		tiles = append(tiles, tile)
	}
	return tiles
}

// Open implements TileSource.
func (s *SliceSource) Open(tile int) (ClusterIter, error) {
	clusters, ok := s.TileClusters[tile]
	if !ok {
		return nil, errors.Errorf("tile %d not present in source", tile)
	}
	return &sliceIter{clusters: clusters}, nil
}

type sliceIter struct {
	clusters []*Cluster
	n        int
}

func (it *sliceIter) Scan() bool {
	if it.n >= len(it.clusters) {
		return false
	}
	it.n++
	return true
}

func (it *sliceIter) Cluster() *Cluster { return it.clusters[it.n-1] }
func (it *sliceIter) Err() error        { return nil }
func (it *sliceIter) Close() error      { return nil }
