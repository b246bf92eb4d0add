package illumina

import (
	"strconv"

	"github.com/pkg/errors"
)

// NameFormat selects the read-name layout written to FASTQ output.
type NameFormat string

const (
	// NameFormatIllumina is the legacy single-field layout,
	// "<run>:<lane>:<tile>:<x>:<y>", with "/<n>" appended to numbered
	// template records.
	NameFormatIllumina NameFormat = "illumina"
	// NameFormatCasava18 is the multi-field layout introduced with CASAVA
	// 1.8: "<instrument>:<run>:<flowcell>:<lane>:<tile>:<x>:<y>
	// <read>:<filtered Y|N>:0:<barcode>". The filtered field is N for
	// pass-filter clusters. The barcode field is the matched sample
	// barcode, empty when the cluster matched none.
	NameFormatCasava18 NameFormat = "casava_1_8"
)

// A NameEncoder generates read names for the records of a cluster. segment
// is the 1-based template segment number, or 0 for unnumbered records
// (barcode records, and the single template record of a one-template
// structure).
type NameEncoder interface {
	AppendName(dst []byte, c *Cluster, segment int) []byte
}

// NewNameEncoder returns the encoder for format. The multi-field format
// requires instrument and flowcell identity; runBarcode is required by both.
func NewNameEncoder(format NameFormat, runBarcode, instrument, flowcell string) (NameEncoder, error) {
	if runBarcode == "" {
		return nil, errors.New("read name generation requires a run barcode")
	}
	switch format {
	case NameFormatIllumina:
		return illuminaNameEncoder{run: runBarcode}, nil
	case NameFormatCasava18:
		if instrument == "" || flowcell == "" {
			return nil, errors.Errorf("name format %s requires instrument and flowcell identity", format)
		}
		return casava18NameEncoder{instrument: instrument, run: runBarcode, flowcell: flowcell}, nil
	}
	return nil, errors.Errorf("unknown read name format %q", format)
}

type illuminaNameEncoder struct {
	run string
}

func (e illuminaNameEncoder) AppendName(dst []byte, c *Cluster, segment int) []byte {
	dst = append(dst, e.run...)
	dst = appendColonInt(dst, c.Lane)
	dst = appendColonInt(dst, c.Tile)
	dst = appendColonInt(dst, c.X)
	dst = appendColonInt(dst, c.Y)
	if segment > 0 {
		dst = append(dst, '/')
		dst = strconv.AppendInt(dst, int64(segment), 10)
	}
	return dst
}

type casava18NameEncoder struct {
	instrument, run, flowcell string
}

func (e casava18NameEncoder) AppendName(dst []byte, c *Cluster, segment int) []byte {
	if segment == 0 {
		segment = 1
	}
	dst = append(dst, e.instrument...)
	dst = append(dst, ':')
	dst = append(dst, e.run...)
	dst = append(dst, ':')
	dst = append(dst, e.flowcell...)
	dst = appendColonInt(dst, c.Lane)
	dst = appendColonInt(dst, c.Tile)
	dst = appendColonInt(dst, c.X)
	dst = appendColonInt(dst, c.Y)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(segment), 10)
	if c.PF {
		dst = append(dst, ":N:0:"...)
	} else {
		dst = append(dst, ":Y:0:"...)
	}
	dst = append(dst, c.MatchedBarcode...)
	return dst
}

func appendColonInt(dst []byte, v int) []byte {
	dst = append(dst, ':')
	return strconv.AppendInt(dst, int64(v), 10)
}
