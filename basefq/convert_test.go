package basefq

import (
	"testing"

	"github.com/grailbio/basefq/illumina"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverter(t *testing.T) {
	structure, err := illumina.ParseReadStructure("4T3B4T")
	require.NoError(t, err)
	enc, err := illumina.NewNameEncoder(illumina.NameFormatIllumina, "run1", "", "")
	require.NoError(t, err)
	conv := newConverter(structure, enc, illumina.QualityPolicy{Min: 2})

	c := &illumina.Cluster{
		Lane: 1, Tile: 1101, X: 15, Y: 1294, PF: true,
		Segments: []illumina.SegmentCalls{
			{Bases: []byte("ACG."), Quals: []byte{30, 31, 32, 33}},
			{Bases: []byte("TTA"), Quals: []byte{35, 35, 35}},
			{Bases: []byte("GGCC"), Quals: []byte{40, 2, 2, 40}},
		},
	}
	b, err := conv.bundle(c)
	require.NoError(t, err)
	require.Equal(t, 3, len(b.Recs))

	// Templates in structure order, numbered; then the unnumbered barcode.
	assert.Equal(t, "run1:1:1101:15:1294/1", b.Recs[0].Name)
	assert.Equal(t, "ACGN", b.Recs[0].Seq)
	assert.Equal(t, "?@AB", b.Recs[0].Qual)
	assert.Equal(t, "run1:1:1101:15:1294/2", b.Recs[1].Name)
	assert.Equal(t, "GGCC", b.Recs[1].Seq)
	assert.Equal(t, "I##I", b.Recs[1].Qual)
	assert.Equal(t, "run1:1:1101:15:1294", b.Recs[2].Name)
	assert.Equal(t, "TTA", b.Recs[2].Seq)
	assert.Equal(t, "DDD", b.Recs[2].Qual)

	// Identical cluster and config give an identical bundle.
	b2, err := conv.bundle(c)
	require.NoError(t, err)
	assert.Equal(t, b, b2)
}

func TestConverterSingleTemplate(t *testing.T) {
	structure, err := illumina.ParseReadStructure("4T3B")
	require.NoError(t, err)
	enc, err := illumina.NewNameEncoder(illumina.NameFormatCasava18, "run1", "M00001", "FCX")
	require.NoError(t, err)
	conv := newConverter(structure, enc, illumina.QualityPolicy{Min: 2})

	c := &illumina.Cluster{
		Lane: 2, Tile: 1102, X: 7, Y: 9, PF: true,
		MatchedBarcode: "TTA",
		Segments: []illumina.SegmentCalls{
			{Bases: []byte("ACGT"), Quals: []byte{30, 30, 30, 30}},
			{Bases: []byte("TTA"), Quals: []byte{30, 30, 30}},
		},
	}
	b, err := conv.bundle(c)
	require.NoError(t, err)
	require.Equal(t, 2, len(b.Recs))
	// A lone template record is unnumbered; the multi-field format still
	// writes read number 1 for it and for barcode records.
	assert.Equal(t, "M00001:run1:FCX:2:1102:7:9 1:N:0:TTA", b.Recs[0].Name)
	assert.Equal(t, "M00001:run1:FCX:2:1102:7:9 1:N:0:TTA", b.Recs[1].Name)

	c.PF = false
	b, err = conv.bundle(c)
	require.NoError(t, err)
	assert.Equal(t, "M00001:run1:FCX:2:1102:7:9 1:Y:0:TTA", b.Recs[0].Name)
}

func TestConverterQualityError(t *testing.T) {
	structure, err := illumina.ParseReadStructure("4T")
	require.NoError(t, err)
	enc, err := illumina.NewNameEncoder(illumina.NameFormatIllumina, "run1", "", "")
	require.NoError(t, err)
	conv := newConverter(structure, enc, illumina.QualityPolicy{Min: 2})

	// A raw 0 is revised to 1, which is below the floor of 2.
	c := &illumina.Cluster{
		Lane: 1, Tile: 2203, X: 1, Y: 1, PF: true,
		Segments: []illumina.SegmentCalls{
			{Bases: []byte("ACGT"), Quals: []byte{30, 0, 30, 30}},
		},
	}
	_, err = conv.bundle(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tile 2203")
}
