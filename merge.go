package asaph

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// merger combines matrices imported separately (e.g. one VCF per
// chromosome) into a single matrix over the shared sample set.
type merger struct{}

func (cmd *merger) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	outputFilename := flags.String("o", "-", "output `file`")
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

	blocks := make([]*FeatureMatrix, 0, flags.NArg())
	for _, infile := range flags.Args() {
		log.Printf("%s reading", infile)
		var input io.ReadCloser
		if infile == "-" {
			input = io.NopCloser(stdin)
		} else {
			input, err = os.Open(infile)
			if err != nil {
				return 1
			}
		}
		var m *FeatureMatrix
		m, err = ReadFeatureMatrix(input, strings.HasSuffix(infile, ".gz"))
		if err != nil {
			input.Close()
			err = fmt.Errorf("%s: %w", infile, err)
			return 1
		}
		err = input.Close()
		if err != nil {
			return 1
		}
		blocks = append(blocks, m)
	}

	m, err := concatMatrices(blocks)
	if err != nil {
		return 1
	}
	log.Printf("merged %d inputs: %d samples x %d columns", len(blocks), len(m.SampleIDs), m.NumColumns())

	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(*outputFilename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
		if err != nil {
			return 1
		}
		defer output.Close()
	}
	bufw := bufio.NewWriter(output)
	err = m.WriteGob(bufw)
	if err != nil {
		return 1
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
