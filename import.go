package asaph

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
)

type importer struct {
	outputFile string
	encoding   string
	hashDims   int
	snpsOnly   bool
	passOnly   bool
	threads    int
}

func (cmd *importer) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.outputFile, "o", "-", "output `file`")
	flags.StringVar(&cmd.encoding, "encoding", "counts", "feature encoding (counts, categorical, or hashed)")
	flags.IntVar(&cmd.hashDims, "hash-dimensions", 4096, "number of columns for hashed encoding")
	flags.BoolVar(&cmd.snpsOnly, "snps-only", false, "skip records whose ref or alt is not a single base")
	flags.BoolVar(&cmd.passOnly, "pass-only", false, "skip records whose FILTER is not PASS")
	flags.IntVar(&cmd.threads, "threads", runtime.NumCPU(), "number of VCF files to read concurrently")
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	lvl, err := log.ParseLevel(*loglevel)
	if err != nil {
		return 2
	}
	log.SetLevel(lvl)

	encoding, err := parseEncoding(cmd.encoding)
	if err != nil {
		return 2
	}
	if encoding == EncodingHashed && cmd.hashDims < 1 {
		err = fmt.Errorf("-hash-dimensions must be positive, got %d", cmd.hashDims)
		return 2
	}

	infiles, err := listVCFInputs(flags.Args())
	if err != nil {
		return 1
	}

	m, err := cmd.importVCFs(encoding, infiles)
	if err != nil {
		return 1
	}

	var output io.WriteCloser
	if cmd.outputFile == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(cmd.outputFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
		if err != nil {
			return 1
		}
		defer output.Close()
	}
	bufw := bufio.NewWriter(output)
	var w io.Writer = bufw
	var gzw *pgzip.Writer
	if strings.HasSuffix(cmd.outputFile, ".gz") {
		gzw = pgzip.NewWriter(bufw)
		w = gzw
	}
	log.Printf("writing %d samples x %d columns", len(m.SampleIDs), m.NumColumns())
	err = m.WriteGob(w)
	if err != nil {
		return 1
	}
	if gzw != nil {
		err = gzw.Close()
		if err != nil {
			return 1
		}
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}

var vcfFilenameRe = regexp.MustCompile(`\.vcf(\.gz)?$`)

func listVCFInputs(paths []string) (files []string, err error) {
	for _, path := range paths {
		matched, err := allFiles(path, vcfFilenameRe)
		if err != nil {
			return nil, err
		}
		files = append(files, matched...)
	}
	for _, file := range files {
		if !vcfFilenameRe.MatchString(file) {
			return nil, fmt.Errorf("don't know how to handle filename %s", file)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .vcf or .vcf.gz input files found")
	}
	sort.Strings(files)
	return files, nil
}

// importVCFs encodes each input file into its own column block, then
// concatenates the blocks in sorted filename order.
func (cmd *importer) importVCFs(encoding Encoding, infiles []string) (*FeatureMatrix, error) {
	starttime := time.Now()
	opts := vcfReadOpts{snpsOnly: cmd.snpsOnly, passOnly: cmd.passOnly}
	blocks := make([]*FeatureMatrix, len(infiles))
	throttle := throttle{Max: cmd.threads}
	for idx, infile := range infiles {
		idx, infile := idx, infile
		throttle.Go(func() error {
			log.Printf("%s starting", infile)
			var b *matrixBuilder
			samples, err := streamVCF(infile, opts, func(samples []string) error {
				b = newMatrixBuilder(encoding, cmd.hashDims, samples)
				return nil
			}, func(rec snpRecord) error {
				return b.Add(rec)
			})
			if err != nil {
				return fmt.Errorf("%s: %w", infile, err)
			}
			blocks[idx] = b.Matrix()
			log.Printf("%s done, %d samples, %d snps, %d columns", infile, len(samples), b.snps, blocks[idx].NumColumns())
			return nil
		})
	}
	err := throttle.Wait()
	if err != nil {
		return nil, err
	}
	m, err := concatMatrices(blocks)
	if err != nil {
		return nil, err
	}
	log.Printf("imported %d files in %v", len(infiles), time.Since(starttime))
	return m, nil
}
