package basefq

import "github.com/grailbio/basefq/illumina"

// AdapterPair is one forward/reverse adapter combination attached to the
// run configuration. Pairs are validated at startup but output bases are
// never trimmed; marking reads against adapters is left to downstream
// tools.
type AdapterPair struct {
	Forward string
	Reverse string
}

type Opts struct {
	// RunBarcode is the run identifier stamped into every read name.
	RunBarcode string

	// Machine and FlowcellBarcode identify the instrument and flowcell.
	// Required by NameFormatCasava18; the legacy format ignores them.
	Machine         string
	FlowcellBarcode string

	// ReadStructure is the per-cluster segment layout, e.g. "76T8B76T".
	ReadStructure string

	// OutputPrefix routes every cluster to a single sample written under
	// this path prefix. Exactly one of OutputPrefix and SampleSheetPath
	// must be set.
	OutputPrefix string
	// SampleSheetPath demultiplexes clusters per the given TSV sheet.
	SampleSheetPath string

	NameFormat illumina.NameFormat

	// Parallelism is the number of concurrent tile workers. 0 means all
	// cores; a negative value means cores+value, floored at one.
	Parallelism int

	// FirstTile, if nonzero, starts the run at that tile; it must name a
	// tile present in the source. TileLimit, if positive, caps the number
	// of tiles processed. Tiles are taken in ascending numeric order.
	FirstTile int
	TileLimit int

	// MaxRecordsInRAM bounds the records buffered in memory across all
	// output groups before sorters spill to disk.
	MaxRecordsInRAM int

	// MinimumQuality is the lowest base quality accepted after the 0->1
	// revision. Lower values abort the run.
	MinimumQuality int

	// IncludeNonPF also emits clusters that failed the chastity filter.
	IncludeNonPF bool

	// ForceGC runs the garbage collector after each tile. Advisory; helps
	// runs whose configured buffers exceed physical memory.
	ForceGC bool

	// Gzip compresses output FASTQ files. CreateMD5 writes an .md5 digest
	// sidecar next to each output file.
	Gzip      bool
	CreateMD5 bool

	// NoCompressSpills disables snappy compression of sorter spill files.
	NoCompressSpills bool

	// TempDir holds sorter spill files. "" means the system default.
	TempDir string

	AdapterPairs []AdapterPair
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	NameFormat:      illumina.NameFormatIllumina,
	Parallelism:     0, // all cores
	MaxRecordsInRAM: 1 << 20,
	MinimumQuality:  illumina.DefaultMinQuality,
	IncludeNonPF:    true,
	ForceGC:         true,
}
