package basefq

import (
	"bufio"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/basefq/demux"
	"github.com/grailbio/basefq/fastq"
	"github.com/grailbio/basefq/illumina"
	"github.com/grailbio/basefq/sorter"
	"github.com/klauspost/compress/gzip"
)

// outputPaths lists a group's output files: one per template segment, named
// <prefix>.<n>.fastq with n 1-based, then one per barcode segment, named
// <prefix>.barcode_<n>.fastq. Gzip appends ".gz".
func outputPaths(prefix string, structure *illumina.ReadStructure, gz bool) []string {
	suffix := ".fastq"
	if gz {
		suffix += ".gz"
	}
	paths := make([]string, 0, structure.RecordsPerCluster())
	for i := 0; i < structure.Templates.Len(); i++ {
		paths = append(paths, fmt.Sprintf("%s.%d%s", prefix, i+1, suffix))
	}
	for i := 0; i < structure.Barcodes.Len(); i++ {
		paths = append(paths, fmt.Sprintf("%s.barcode_%d%s", prefix, i+1, suffix))
	}
	return paths
}

// outFile is one output FASTQ file with its writer stack. Bytes flow
// fastq -> gzip (optional) -> bufio -> md5 tee (optional) -> file, so the
// digest covers exactly the bytes written to the file.
type outFile struct {
	path string
	f    file.File
	md5  hash.Hash
	bw   *bufio.Writer
	gz   *gzip.Writer
	fq   *fastq.Writer
}

func createOutFile(ctx context.Context, path string, compress, digest bool) (*outFile, error) {
	o := &outFile{path: path}
	var err error
	if o.f, err = file.Create(ctx, path); err != nil {
		return nil, err
	}
	w := o.f.Writer(ctx)
	if digest {
		o.md5 = md5.New()
		w = io.MultiWriter(o.md5, w)
	}
	o.bw = bufio.NewWriterSize(w, 1<<20)
	w = o.bw
	if compress {
		o.gz = gzip.NewWriter(w)
		w = o.gz
	}
	o.fq = fastq.NewWriter(w)
	return o, nil
}

// close flushes and closes the stack bottom-up, reporting the first error
// through errs. The digest sidecar is written only on a clean close.
func (o *outFile) close(ctx context.Context, errs *errors.Once) {
	if o.gz != nil {
		errs.Set(o.gz.Close())
	}
	errs.Set(o.bw.Flush())
	errs.Set(o.f.Close(ctx))
	if o.md5 != nil && errs.Err() == nil {
		writeDigest(ctx, o.path+".md5", o.md5, errs)
	}
}

func writeDigest(ctx context.Context, path string, sum hash.Hash, errs *errors.Once) {
	f, err := file.Create(ctx, path)
	if err != nil {
		errs.Set(err)
		return
	}
	_, err = io.WriteString(f.Writer(ctx), hex.EncodeToString(sum.Sum(nil))+"\n")
	errs.Set(err)
	errs.Set(f.Close(ctx))
}

// groupWriter owns the output files of one sample group. Records of a
// bundle land one per file, in segment order.
type groupWriter struct {
	group *demux.Group
	files []*outFile
}

func newGroupWriter(ctx context.Context, group *demux.Group, structure *illumina.ReadStructure, opts *Opts) (*groupWriter, error) {
	gw := &groupWriter{group: group}
	for _, path := range outputPaths(group.Prefix, structure, opts.Gzip) {
		o, err := createOutFile(ctx, path, opts.Gzip, opts.CreateMD5)
		if err != nil {
			errs := errors.Once{}
			errs.Set(err)
			for _, open := range gw.files {
				open.close(ctx, &errs)
			}
			return nil, errs.Err()
		}
		gw.files = append(gw.files, o)
	}
	return gw, nil
}

func (g *groupWriter) write(b *sorter.Bundle) error {
	for i := range b.Recs {
		if err := g.files[i].fq.Write(&b.Recs[i]); err != nil {
			return fmt.Errorf("%s: %v", g.files[i].path, err)
		}
	}
	return nil
}

// close closes every file exactly once and returns the first error.
func (g *groupWriter) close(ctx context.Context) error {
	errs := errors.Once{}
	for _, o := range g.files {
		o.close(ctx, &errs)
	}
	return errs.Err()
}
