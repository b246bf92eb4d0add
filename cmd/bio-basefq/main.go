package main

// bio-basefq converts raw sequencer cluster files into demultiplexed,
// queryname-ordered FASTQ files, one file set per sample.
//
// Usage: bio-basefq [flags] <clusterdir>

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/basefq/basefq"
	"github.com/grailbio/basefq/illumina"
)

var (
	runBarcodeFlag    = flag.String("run-barcode", "", "Run barcode stamped into every read name (required)")
	machineFlag       = flag.String("machine", "", "Instrument name; required by -name-format casava_1_8")
	flowcellFlag      = flag.String("flowcell", "", "Flowcell barcode; required by -name-format casava_1_8")
	readStructureFlag = flag.String("read-structure", "", "Read structure descriptor, e.g. 76T8B76T (required)")
	laneFlag          = flag.Int("lane", 1, "Lane to convert")
	outPrefixFlag     = flag.String("out", "", "Output path prefix for single-sample output; this xor -sample-sheet required")
	sampleSheetFlag   = flag.String("sample-sheet", "", "Demultiplexing sample sheet (TSV); this xor -out required")
	nameFormatFlag    = flag.String("name-format", string(basefq.DefaultOpts.NameFormat),
		"Read name format; 'illumina' or 'casava_1_8'")
	parallelismFlag = flag.Int("parallelism", basefq.DefaultOpts.Parallelism,
		"Number of concurrent tile workers; 0 = all cores, negative = cores+value")
	firstTileFlag = flag.Int("first-tile", 0, "Start at this tile instead of the lowest-numbered one")
	tileLimitFlag = flag.Int("tile-limit", 0, "Process at most this many tiles; 0 = no limit")
	maxRecordsFlag = flag.Int("max-records-in-ram", basefq.DefaultOpts.MaxRecordsInRAM,
		"Records buffered in memory across all output groups before sorters spill to disk")
	minQualityFlag = flag.Int("min-quality", basefq.DefaultOpts.MinimumQuality,
		"Lowest base quality accepted after the 0->1 revision; lower values abort the run")
	includeNonPFFlag = flag.Bool("include-non-pf", basefq.DefaultOpts.IncludeNonPF,
		"Also emit clusters that failed the chastity filter")
	forceGCFlag          = flag.Bool("force-gc", basefq.DefaultOpts.ForceGC, "Run the garbage collector after each tile")
	gzipFlag             = flag.Bool("gzip", false, "Compress output FASTQ files")
	md5Flag              = flag.Bool("md5", false, "Write an .md5 digest sidecar next to each output file")
	noCompressSpillsFlag = flag.Bool("no-compress-spills", false, "Disable snappy compression of sorter spill files")
	tempDirFlag          = flag.String("temp-dir", "", "Directory for sorter spill files (default os.TempDir())")

	adapterFlag adapterPairs
)

// adapterPairs collects repeated -adapter FORWARD,REVERSE flags.
type adapterPairs []basefq.AdapterPair

func (a *adapterPairs) String() string {
	pairs := make([]string, len(*a))
	for i, p := range *a {
		pairs[i] = p.Forward + "," + p.Reverse
	}
	return strings.Join(pairs, " ")
}

func (a *adapterPairs) Set(v string) error {
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return fmt.Errorf("adapter must be FORWARD,REVERSE, got %q", v)
	}
	*a = append(*a, basefq.AdapterPair{Forward: parts[0], Reverse: parts[1]})
	return nil
}

func init() {
	flag.Var(&adapterFlag, "adapter", "Adapter pair as FORWARD,REVERSE; may be repeated")
}

func usage() {
	os.Stderr.WriteString(`Usage: bio-basefq [flags] <clusterdir>

Converts the per-tile cluster files under <clusterdir> into demultiplexed,
queryname-ordered FASTQ. Output goes either to a single sample (-out) or to
the samples listed in a demultiplexing sheet (-sample-sheet).
`)
	flag.PrintDefaults()
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	args := flag.Args()
	if len(args) != 1 {
		flag.Usage()
		os.Exit(1)
	}
	ctx := vcontext.Background()
	src, err := illumina.NewRioDirSource(args[0], *laneFlag)
	if err != nil {
		log.Fatalf("open cluster dir %v: %v", args[0], err)
	}
	opts := basefq.Opts{
		RunBarcode:       *runBarcodeFlag,
		Machine:          *machineFlag,
		FlowcellBarcode:  *flowcellFlag,
		ReadStructure:    *readStructureFlag,
		OutputPrefix:     *outPrefixFlag,
		SampleSheetPath:  *sampleSheetFlag,
		NameFormat:       illumina.NameFormat(*nameFormatFlag),
		Parallelism:      *parallelismFlag,
		FirstTile:        *firstTileFlag,
		TileLimit:        *tileLimitFlag,
		MaxRecordsInRAM:  *maxRecordsFlag,
		MinimumQuality:   *minQualityFlag,
		IncludeNonPF:     *includeNonPFFlag,
		ForceGC:          *forceGCFlag,
		Gzip:             *gzipFlag,
		CreateMD5:        *md5Flag,
		NoCompressSpills: *noCompressSpillsFlag,
		TempDir:          *tempDirFlag,
		AdapterPairs:     adapterFlag,
	}
	if err := basefq.Run(ctx, src, opts); err != nil {
		log.Fatalf("bio-basefq: %v", err)
	}
}
