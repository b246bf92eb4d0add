package basefq

import (
	"github.com/grailbio/basefq/fastq"
	"github.com/grailbio/basefq/illumina"
	"github.com/grailbio/basefq/sorter"
)

// converter builds the record bundle of one cluster: template segments in
// structure order, then barcode segments. Scratch buffers are reused, so a
// converter serves one goroutine at a time.
type converter struct {
	structure     *illumina.ReadStructure
	enc           illumina.NameEncoder
	qual          illumina.QualityPolicy
	multiTemplate bool

	name []byte
	seq  []byte
	qbuf []byte
}

func newConverter(structure *illumina.ReadStructure, enc illumina.NameEncoder, qual illumina.QualityPolicy) *converter {
	return &converter{
		structure:     structure,
		enc:           enc,
		qual:          qual,
		multiTemplate: structure.Templates.Len() > 1,
	}
}

// bundle converts one cluster. The result owns its storage; the cluster may
// be reused by the caller afterwards.
func (c *converter) bundle(cl *illumina.Cluster) (sorter.Bundle, error) {
	recs := make([]fastq.Record, 0, c.structure.RecordsPerCluster())
	for i, segIdx := range c.structure.Templates.Indices {
		segment := 0
		if c.multiTemplate {
			segment = i + 1
		}
		rec, err := c.record(cl, segIdx, segment)
		if err != nil {
			return sorter.Bundle{}, err
		}
		recs = append(recs, rec)
	}
	for _, segIdx := range c.structure.Barcodes.Indices {
		rec, err := c.record(cl, segIdx, 0)
		if err != nil {
			return sorter.Bundle{}, err
		}
		recs = append(recs, rec)
	}
	return sorter.Bundle{Recs: recs}, nil
}

func (c *converter) record(cl *illumina.Cluster, segIdx, segment int) (fastq.Record, error) {
	calls := &cl.Segments[segIdx]
	c.name = c.enc.AppendName(c.name[:0], cl, segment)
	c.seq = illumina.AppendBaseText(c.seq[:0], calls.Bases)
	var err error
	c.qbuf, err = c.qual.AppendFastq(c.qbuf[:0], calls.Quals, cl.Tile)
	if err != nil {
		return fastq.Record{}, err
	}
	return fastq.Record{
		Name: string(c.name),
		Seq:  string(c.seq),
		Qual: string(c.qbuf),
	}, nil
}
