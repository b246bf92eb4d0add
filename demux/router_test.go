package demux

import (
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRouter(t *testing.T) {
	rows := []Row{
		{Prefix: "s1", Barcodes: []string{"ACGT", "TTTT"}},
		{Prefix: "s2", Barcodes: []string{"GGGG", "CCCC"}},
		{Prefix: "other"},
	}
	r, err := NewTableRouter(rows)
	require.NoError(t, err)
	groups := r.Groups()
	require.Equal(t, 3, len(groups))
	expect.EQ(t, groups[0].Prefix, "s1")
	expect.EQ(t, groups[0].BarcodeString(), "ACGT-TTTT")
	expect.EQ(t, groups[2].Prefix, "other")
	expect.EQ(t, groups[2].BarcodeString(), "")

	// Every configured combination routes to its group; anything else
	// lands on the fallback.
	expect.EQ(t, r.Route([]byte("ACGTTTTT")), groups[0])
	expect.EQ(t, r.Route([]byte("GGGGCCCC")), groups[1])
	expect.EQ(t, r.Route([]byte("ACGTTTTA")), groups[2])
	expect.EQ(t, r.Route(nil), groups[2])
}

func TestSingleRouter(t *testing.T) {
	r := NewSingleRouter("out/run1")
	groups := r.Groups()
	require.Equal(t, 1, len(groups))
	expect.EQ(t, groups[0].Prefix, "out/run1")
	expect.EQ(t, r.Route([]byte("ACGT")), groups[0])
	expect.EQ(t, r.Route(nil), groups[0])
}

func TestTableRouterErrors(t *testing.T) {
	fallback := Row{Prefix: "other"}

	_, err := NewTableRouter([]Row{
		{Prefix: "s1", Barcodes: []string{"ACGT"}},
		{Prefix: "s2", Barcodes: []string{"ACGT"}},
		fallback,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "barcode ACGT assigned to both s1 and s2")

	_, err = NewTableRouter([]Row{
		{Prefix: "s1", Barcodes: []string{"ACGT"}},
		{Prefix: "s1", Barcodes: []string{"TTTT"}},
		fallback,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate output prefix")

	_, err = NewTableRouter([]Row{{Prefix: "s1", Barcodes: []string{"ACGT"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fallback row")

	_, err = NewTableRouter([]Row{fallback, {Prefix: "other2"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than one fallback row")
}
