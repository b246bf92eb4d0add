package illumina

// This file defines RioTileWriter and RioDirSource, the on-disk interchange
// form of the abstract cluster model. Each tile is one recordio file of
// gob-encoded clusters, so a converted run can move between the basecall
// parser and the FASTQ pipeline without either side knowing the other's
// internals.

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/base/vcontext"
	"github.com/pkg/errors"
)

const (
	// <rioVersionHeader, rioVersion> is stored in a recordio header.
	rioVersionHeader = "basefqversion"
	rioVersion       = "BASEFQ_C1"
)

// rioTileTrailer is stored in the trailer section of a tile file.
type rioTileTrailer struct {
	Lane, Tile  int
	NumClusters int64
}

// RioTilePath returns the interchange path for one tile under dir.
func RioTilePath(dir string, lane, tile int) string {
	return filepath.Join(dir, fmt.Sprintf("s_%d_%d.rio", lane, tile))
}

var rioTileRE = regexp.MustCompile(`^s_(\d+)_(\d+)\.rio$`)

// RioTileWriter writes one tile's clusters to an interchange file.
type RioTileWriter struct {
	out        file.File
	w          recordio.Writer
	lane, tile int
	n          int64
}

// NewRioTileWriter creates the interchange file for (lane, tile) under dir.
func NewRioTileWriter(ctx context.Context, dir string, lane, tile int) (*RioTileWriter, error) {
	recordiozstd.Init()
	path := RioTilePath(dir, lane, tile)
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(rioVersionHeader, rioVersion)
	w.AddHeader(recordio.KeyTrailer, true)
	return &RioTileWriter{out: out, w: w, lane: lane, tile: tile}, nil
}

// Write appends one cluster.
func (w *RioTileWriter) Write(c *Cluster) error {
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(c); err != nil {
		return errors.Wrap(err, "encode cluster")
	}
	w.w.Append(b.Bytes())
	w.n++
	return nil
}

// Close seals the file, recording the cluster count in the trailer. It must
// be called exactly once.
func (w *RioTileWriter) Close(ctx context.Context) (err error) {
	defer file.CloseAndReport(ctx, w.out, &err)
	var b bytes.Buffer
	trailer := rioTileTrailer{Lane: w.lane, Tile: w.tile, NumClusters: w.n}
	if err := gob.NewEncoder(&b).Encode(trailer); err != nil {
		return errors.Wrap(err, "encode trailer")
	}
	w.w.SetTrailer(b.Bytes())
	return w.w.Finish()
}

// RioDirSource is a TileSource over a directory of interchange files
// belonging to one lane.
type RioDirSource struct {
	dir   string
	lane  int
	tiles []int
}

// NewRioDirSource lists dir and indexes the interchange files found for
// lane. The directory must be on a local filesystem.
func NewRioDirSource(dir string, lane int) (*RioDirSource, error) {
	infos, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	src := &RioDirSource{dir: dir, lane: lane}
	for _, info := range infos {
		m := rioTileRE.FindStringSubmatch(info.Name())
		if m == nil {
			continue
		}
		l, _ := strconv.Atoi(m[1])
		if l != lane {
			continue
		}
		tile, _ := strconv.Atoi(m[2])
		src.tiles = append(src.tiles, tile)
	}
	if len(src.tiles) == 0 {
		return nil, errors.Errorf("%s: no cluster files for lane %d", dir, lane)
	}
	return src, nil
}

// Tiles implements TileSource.
func (s *RioDirSource) Tiles() []int {
	tiles := make([]int, len(s.tiles))
	copy(tiles, s.tiles)
	return tiles
}

// Open implements TileSource.
func (s *RioDirSource) Open(tile int) (ClusterIter, error) {
	recordiozstd.Init()
	ctx := vcontext.Background()
	path := RioTilePath(s.dir, s.lane, tile)
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	r := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	ok := false
	for _, kv := range r.Header() {
		if kv.Key == rioVersionHeader {
			if kv.Value.(string) != rioVersion {
				_ = in.Close(ctx)
				return nil, errors.Errorf("%s: version %v, want %v", path, kv.Value, rioVersion)
			}
			ok = true
			break
		}
	}
	if !ok {
		_ = in.Close(ctx)
		return nil, errors.Errorf("%s: missing %s header", path, rioVersionHeader)
	}
	return &rioTileIter{path: path, in: in, r: r}, nil
}

type rioTileIter struct {
	path string
	in   file.File
	r    recordio.Scanner
	c    Cluster
	n    int64
	err  error
}

func (it *rioTileIter) Scan() bool {
	if it.err != nil {
		return false
	}
	if !it.r.Scan() {
		it.err = it.r.Err()
		if it.err == nil {
			it.err = it.verifyTrailer()
		}
		return false
	}
	it.c = Cluster{}
	if err := gob.NewDecoder(bytes.NewReader(it.r.Get().([]byte))).Decode(&it.c); err != nil {
		it.err = errors.Wrapf(err, "%s: decode cluster", it.path)
		return false
	}
	it.n++
	return true
}

// verifyTrailer checks the recorded cluster count after a clean scan to the
// end of the file.
func (it *rioTileIter) verifyTrailer() error {
	var trailer rioTileTrailer
	if err := gob.NewDecoder(bytes.NewReader(it.r.Trailer())).Decode(&trailer); err != nil {
		return errors.Wrapf(err, "%s: decode trailer", it.path)
	}
	if trailer.NumClusters != it.n {
		return errors.Errorf("%s: read %d clusters, trailer records %d", it.path, it.n, trailer.NumClusters)
	}
	return nil
}

func (it *rioTileIter) Cluster() *Cluster { return &it.c }

func (it *rioTileIter) Err() error { return it.err }

func (it *rioTileIter) Close() error {
	return it.in.Close(vcontext.Background())
}
