package illumina

import "github.com/pkg/errors"

const (
	// DefaultMinQuality is the default floor for raw qualities after zero
	// revision. Illumina basecallers nominally emit nothing below 2, so a
	// lower value usually indicates a corrupt cycle.
	DefaultMinQuality = 2

	// maxQuality is the largest phred score with a printable FASTQ form.
	maxQuality = 93

	// fastqQualityOffset converts a phred score to its printable form.
	fastqQualityOffset = 33
)

// QualityPolicy validates raw phred qualities and transcodes them to
// printable FASTQ form. Raw zeros are revised to 1 before the floor check.
// The policy aborts on a violation rather than clamping.
type QualityPolicy struct {
	// Min is the lowest revised quality accepted.
	Min int
}

// AppendFastq transcodes the raw qualities in src, appending one printable
// character per quality to dst. tile names the originating tile in errors.
func (p QualityPolicy) AppendFastq(dst, src []byte, tile int) ([]byte, error) {
	for _, q := range src {
		if q == 0 {
			q = 1
		}
		if int(q) < p.Min {
			return dst, errors.Errorf("tile %d: quality %d below minimum %d", tile, q, p.Min)
		}
		if q > maxQuality {
			return dst, errors.Errorf("tile %d: quality %d not representable in FASTQ", tile, q)
		}
		dst = append(dst, q+fastqQualityOffset)
	}
	return dst, nil
}
