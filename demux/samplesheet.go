// Package demux loads sample sheets and routes clusters to their output
// groups by exact sample-barcode match.
package demux

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// NoCallValue is the sentinel barcode value whose presence in the first
// barcode column marks a sheet row as the fallback for unmatched clusters.
const NoCallValue = "N"

const (
	prefixColumn  = "OUTPUT_PREFIX"
	barcodeColumn = "BARCODE_"
)

// A Row is one sample-sheet entry: the sample's output prefix plus the
// barcode values expected for it, one per barcode segment of the run's read
// structure. Barcodes is nil for the fallback row.
type Row struct {
	Prefix   string
	Barcodes []string
}

// ReadSampleSheet loads a tab-separated sample sheet with a header row. The
// sheet must carry an OUTPUT_PREFIX column and BARCODE_1..BARCODE_n columns
// for n barcode segments; lines starting with '#' are comments, and a
// gzipped sheet is decompressed by path suffix. Shape problems (missing
// columns, ragged rows, empty table, fallback rows carrying barcode values)
// are reported here; cross-row checks happen when the router is built.
func ReadSampleSheet(ctx context.Context, path string, numBarcodes int) (rows []Row, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "sample sheet %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var inr io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(inr, in.Name()); u != nil {
		inr = u
	}
	rows, err = readSampleSheet(inr, numBarcodes)
	if err != nil {
		return nil, errors.Wrapf(err, "sample sheet %s", path)
	}
	return rows, nil
}

func readSampleSheet(in io.Reader, numBarcodes int) ([]Row, error) {
	r := tsv.NewReader(bufio.NewReaderSize(in, 64<<10))
	r.Comment = '#'

	header, err := r.Reader.Read()
	if err == io.EOF {
		return nil, errors.New("empty sample sheet")
	}
	if err != nil {
		return nil, err
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	var missing []string
	prefixIdx, ok := columns[prefixColumn]
	if !ok {
		missing = append(missing, prefixColumn)
	}
	barcodeIdx := make([]int, numBarcodes)
	for i := range barcodeIdx {
		name := fmt.Sprintf("%s%d", barcodeColumn, i+1)
		idx, ok := columns[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		barcodeIdx[i] = idx
	}
	if len(missing) > 0 {
		return nil, errors.Errorf("missing required columns %v", missing)
	}

	var rows []Row
	for line := 2; ; line++ {
		fields, err := r.Reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := Row{Prefix: fields[prefixIdx]}
		if row.Prefix == "" {
			return nil, errors.Errorf("line %d: empty %s", line, prefixColumn)
		}
		if fields[barcodeIdx[0]] == NoCallValue {
			for _, idx := range barcodeIdx[1:] {
				if v := fields[idx]; v != "" && v != NoCallValue {
					return nil, errors.Errorf("line %d: fallback row must not expect barcode %q", line, v)
				}
			}
			rows = append(rows, row)
			continue
		}
		row.Barcodes = make([]string, numBarcodes)
		for i, idx := range barcodeIdx {
			v := fields[idx]
			if v == "" {
				return nil, errors.Errorf("line %d: empty %s%d", line, barcodeColumn, i+1)
			}
			row.Barcodes[i] = v
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, errors.New("no sample rows")
	}
	return rows, nil
}
