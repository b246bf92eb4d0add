package illumina

// SegmentCalls holds one segment's raw calls: base codes and phred
// qualities, parallel slices of equal length.
type SegmentCalls struct {
	Bases []byte
	Quals []byte
}

// A Cluster is the complete called output of one well of a tile. Segments is
// indexed by read-structure segment index; entries for skip segments may be
// empty. PF is the pass-filter flag. MatchedBarcode is assigned during
// demultiplexing and names the sample-sheet barcode the cluster matched, if
// any.
//
// Tile iterators may reuse a cluster's storage between advances, so
// consumers must not retain the cluster or its slices after the next Scan.
type Cluster struct {
	Lane, Tile, X, Y int
	PF               bool
	MatchedBarcode   string
	Segments         []SegmentCalls
}

// NoCall is the raw base code emitted for a cycle with no call.
const NoCall = '.'

// baseText maps raw base codes to their textual form: the no-call code
// becomes 'N' and every other code passes through unchanged.
var baseText = func() (tbl [256]byte) {
	for i := range tbl {
		tbl[i] = byte(i)
	}
	tbl[NoCall] = 'N'
	return
}()

// AppendBaseText appends the textual form of the raw base codes in src to
// dst, returning the extended slice.
func AppendBaseText(dst, src []byte) []byte {
	for _, b := range src {
		dst = append(dst, baseText[b])
	}
	return dst
}
