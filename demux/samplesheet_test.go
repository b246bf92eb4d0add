package demux

import (
	"compress/gzip"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sheet = `# Samples for lane 1.
OUTPUT_PREFIX	BARCODE_1	BARCODE_2
out/sample1	ACGTACGT	TTGGCCAA
out/sample2	TTGGCCAA	ACGTACGT
out/unmatched	N	N
`

func TestReadSampleSheet(t *testing.T) {
	rows, err := readSampleSheet(strings.NewReader(sheet), 2)
	require.NoError(t, err)
	require.Equal(t, 3, len(rows))
	assert.Equal(t, Row{Prefix: "out/sample1", Barcodes: []string{"ACGTACGT", "TTGGCCAA"}}, rows[0])
	assert.Equal(t, Row{Prefix: "out/sample2", Barcodes: []string{"TTGGCCAA", "ACGTACGT"}}, rows[1])
	assert.Equal(t, Row{Prefix: "out/unmatched"}, rows[2])
}

func TestReadSampleSheetErrors(t *testing.T) {
	for _, test := range []struct {
		name, sheet string
		numBarcodes int
		want        string
	}{
		{"empty", "", 1, "empty sample sheet"},
		{"headerOnly", "OUTPUT_PREFIX\tBARCODE_1\n", 1, "no sample rows"},
		{"missingColumns", "SAMPLE\tBARCODE_1\nx\tACGT\n", 2,
			"missing required columns [OUTPUT_PREFIX BARCODE_2]"},
		{"emptyPrefix", "OUTPUT_PREFIX\tBARCODE_1\n\tACGT\n", 1, "empty OUTPUT_PREFIX"},
		{"emptyBarcode", "OUTPUT_PREFIX\tBARCODE_1\tBARCODE_2\nx\tACGT\t\n", 2, "empty BARCODE_2"},
		{"fallbackWithBarcode", "OUTPUT_PREFIX\tBARCODE_1\tBARCODE_2\nx\tN\tACGT\n", 2,
			"fallback row must not expect barcode"},
	} {
		_, err := readSampleSheet(strings.NewReader(test.sheet), test.numBarcodes)
		require.Error(t, err, test.name)
		assert.Contains(t, err.Error(), test.want, test.name)
	}
}

func TestReadSampleSheetFile(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	path := filepath.Join(tmpdir, "sheet.tsv")
	require.NoError(t, ioutil.WriteFile(path, []byte(sheet), 0644))
	rows, err := ReadSampleSheet(ctx, path, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, len(rows))

	// Decompression is driven by the path suffix.
	gzPath := filepath.Join(tmpdir, "sheet.tsv.gz")
	out, err := os.Create(gzPath)
	require.NoError(t, err)
	zw := gzip.NewWriter(out)
	_, err = zw.Write([]byte(sheet))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
	rows, err = ReadSampleSheet(ctx, gzPath, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, len(rows))

	_, err = ReadSampleSheet(ctx, filepath.Join(tmpdir, "absent.tsv"), 2)
	require.Error(t, err)
}
