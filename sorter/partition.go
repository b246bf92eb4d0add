package sorter

// Partition files hold one sorted run of bundles each. A partition is a
// recordio file in which every item is one block of codec-encoded bundles,
// about partitionBlockSize bytes before compression, snappy-compressed
// unless disabled. Bundles never span blocks, so a block parses with a
// fresh decoder. The recordio trailer stores a gob partitionTrailer, which
// tells whether blocks are compressed and how many bundles and blocks the
// file holds.

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/vlog"
)

const partitionBlockSize = 1 << 20

// partitionTrailer describes a finished partition file.
type partitionTrailer struct {
	Snappy     bool
	NumBundles int64
	NumBlocks  int64
}

// partitionBlock accumulates encoded bundles for one recordio item.
type partitionBlock struct {
	buf      []byte
	nBundles int
}

func (b *partitionBlock) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// partitionWriter writes one partition file.
//
// Example:
//	err := errors.Once{}
//	w := newPartitionWriter(out, codec, true, pool, &err)
//	for each bundle in sorted order {
//		w.add(bundle)
//	}
//	w.finish()
type partitionWriter struct {
	rio    recordio.Writer
	codec  Codec
	snappy bool
	pool   *blockPool
	err    *errors.Once

	cur     *partitionBlock
	enc     Encoder
	trailer partitionTrailer
}

func newPartitionWriter(out io.Writer, codec Codec, compress bool, pool *blockPool, errReporter *errors.Once) *partitionWriter {
	w := &partitionWriter{
		codec:   codec,
		snappy:  compress,
		pool:    pool,
		err:     errReporter,
		trailer: partitionTrailer{Snappy: compress},
	}
	w.newBlock()
	w.rio = recordio.NewWriter(out, recordio.WriterOpts{
		Marshal: func(scratch []byte, v interface{}) ([]byte, error) {
			return v.(*partitionBlock).buf, nil
		},
		Index: func(loc recordio.ItemLocation, v interface{}) error {
			if loc.Item != 0 { // one block per recordio item
				vlog.Fatal(loc)
			}
			w.pool.putBuf(v.(*partitionBlock).buf)
			return nil
		},
	})
	w.rio.AddHeader(recordio.KeyTrailer, true)
	return w
}

func (w *partitionWriter) newBlock() {
	w.cur = &partitionBlock{buf: w.pool.getBuf()}
	w.enc = w.codec.NewEncoder(w.cur)
}

// add encodes one bundle into the current block, sealing the block once it
// reaches the target size. A bundle is never split across blocks.
func (w *partitionWriter) add(b *Bundle) {
	if err := w.enc.Encode(b); err != nil {
		w.err.Set(err)
		return
	}
	w.cur.nBundles++
	w.trailer.NumBundles++
	if len(w.cur.buf) >= partitionBlockSize {
		w.flush()
	}
}

func (w *partitionWriter) flush() {
	if w.cur.nBundles == 0 {
		return
	}
	b := w.cur
	w.newBlock()
	if w.snappy {
		compressBuf := w.pool.getBuf()
		out := snappy.Encode(compressBuf[:cap(compressBuf)], b.buf)
		w.pool.putBuf(b.buf)
		b.buf = out
	}
	w.trailer.NumBlocks++
	w.rio.Append(b)
	w.rio.Flush()
}

// finish flushes pending data and writes the trailer. Any error is reported
// through w.err. The writer becomes invalid after the call.
func (w *partitionWriter) finish() {
	w.flush()
	w.pool.putBuf(w.cur.buf)
	w.cur = nil
	w.rio.Wait()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w.trailer); err != nil {
		w.err.Set(err)
		return
	}
	w.rio.SetTrailer(buf.Bytes())
	w.err.Set(w.rio.Finish())
}

// partitionReader reads back one partition file. Raw blocks are prefetched
// and decompressed on a background goroutine; scan parses them into
// bundles.
//
// Example:
//	r := newPartitionReader(path, codec, pool, &err)
//	for r.scan() {
//		use r.bundle()
//	}
//	r.drain()
type partitionReader struct {
	path    string
	rawIn   file.File
	rio     recordio.Scanner
	trailer partitionTrailer
	codec   Codec
	pool    *blockPool
	err     *errors.Once

	cur Bundle
	dec Decoder
	buf []byte
	ch  chan []byte
	// draining becomes 1 on drain(). It tells the prefetch goroutine to
	// finish asap. Accessed via atomic loads and stores.
	draining int32
}

func readPartitionTrailer(rio recordio.Scanner) (partitionTrailer, error) {
	trailer := partitionTrailer{}
	header := rio.Header()
	if !header.HasTrailer() {
		return trailer, fmt.Errorf("no trailer found in partition file (header: %+v)", header)
	}
	if err := gob.NewDecoder(bytes.NewReader(rio.Trailer())).Decode(&trailer); err != nil {
		return trailer, err
	}
	return trailer, nil
}

// newPartitionReader creates a reader for the partition file at path. Any
// error is reported through errReporter; a failed reader acts as an empty
// source.
func newPartitionReader(path string, codec Codec, pool *blockPool, errReporter *errors.Once) *partitionReader {
	r := &partitionReader{
		path:  path,
		codec: codec,
		pool:  pool,
		err:   errReporter,
		ch:    make(chan []byte),
	}
	ctx := vcontext.Background()
	cleanupOnError := func(err error) *partitionReader {
		r.err.Set(err)
		close(r.ch)
		if r.rawIn != nil {
			r.err.Set(r.rawIn.Close(ctx))
		}
		return r
	}
	var err error
	r.rawIn, err = file.Open(ctx, path)
	if err != nil {
		return cleanupOnError(err)
	}
	r.rio = recordio.NewScanner(r.rawIn.Reader(ctx), recordio.ScannerOpts{})
	if r.trailer, err = readPartitionTrailer(r.rio); err != nil {
		return cleanupOnError(err)
	}
	go func() {
		r.asyncRead()
		r.err.Set(r.rawIn.Close(ctx))
		close(r.ch)
	}()
	return r
}

// scan advances to the next bundle, returning false at the end of the
// partition or on error.
func (r *partitionReader) scan() bool {
	for {
		if r.dec != nil {
			err := r.dec.Decode(&r.cur)
			if err == nil {
				return true
			}
			r.dec = nil
			r.pool.putBuf(r.buf)
			r.buf = nil
			if err != io.EOF {
				r.err.Set(fmt.Errorf("%s: corrupt partition block: %v", r.path, err))
				return false
			}
		}
		buf, ok := <-r.ch
		if !ok {
			return false
		}
		r.buf = buf
		r.dec = r.codec.NewDecoder(bytes.NewReader(buf))
	}
}

// bundle returns the current bundle. The value is valid until the next
// scan.
//
// REQUIRES: scan() returned true.
func (r *partitionReader) bundle() *Bundle { return &r.cur }

// drain should be called when quitting reads before reaching the end of
// the partition. It is also ok to call drain after a successful end of
// reads.
func (r *partitionReader) drain() {
	go func() {
		n := 0
		atomic.StoreInt32(&r.draining, 1)
		for range r.ch {
			n++
		}
		vlog.VI(1).Infof("drain %v: dropped %d blocks", r.path, n)
	}()
}

// asyncRead reads raw blocks, decompresses them, and sends them to r.ch.
func (r *partitionReader) asyncRead() {
	if r.rio == nil {
		// Failed already.
		return
	}
	for r.rio.Scan() && atomic.LoadInt32(&r.draining) == 0 {
		data := r.rio.Get().([]byte)
		buf := r.pool.getBuf()
		if r.trailer.Snappy {
			out, err := snappy.Decode(buf[:cap(buf)], data)
			if err != nil {
				r.err.Set(fmt.Errorf("%s: %v", r.path, err))
				r.pool.putBuf(buf)
				break
			}
			buf = out
		} else {
			buf = append(buf, data...)
		}
		r.ch <- buf // This may block.
	}
	r.err.Set(r.rio.Err())
}

// blockPool recycles partition block buffers.
type blockPool struct {
	sync.Pool
}

// getBuf returns an empty buffer with at least partitionBlockSize capacity.
// The caller should call putBuf after use.
func (p *blockPool) getBuf() []byte {
	b := p.Get().([]byte)
	if cap(b) < partitionBlockSize {
		b = make([]byte, 0, partitionBlockSize)
	}
	return b[:0]
}

func (p *blockPool) putBuf(b []byte) {
	p.Put(b)
}

func newBlockPool() *blockPool {
	return &blockPool{sync.Pool{New: func() interface{} { return []byte{} }}}
}
