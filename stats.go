package asaph

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"

	"github.com/montanaflynn/stats"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

type statscmd struct{}

func (cmd *statscmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	inputFilename := flags.String("i", "-", "input `file`")
	outputFilename := flags.String("o", "-", "output `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	var input io.ReadCloser
	if *inputFilename == "-" {
		input = io.NopCloser(stdin)
	} else {
		input, err = os.Open(*inputFilename)
		if err != nil {
			return 1
		}
		defer input.Close()
	}

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
	err = cmd.doStats(input, strings.HasSuffix(*inputFilename, ".gz"), bufw)
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

func (cmd *statscmd) doStats(input io.Reader, gz bool, output io.Writer) error {
	var ret struct {
		Samples                int
		SNPs                   int
		Columns                int
		Encoding               string
		GenotypeCounts         map[string]int64 `json:",omitempty"`
		MissingRate            float64
		DistinctColumnPatterns int       `json:",omitempty"`
		CallRateQuantiles      []float64 `json:",omitempty"`
	}

	m, err := ReadFeatureMatrix(input, gz)
	if err != nil {
		return err
	}
	ret.Samples = len(m.SampleIDs)
	ret.SNPs = m.NumSNPs()
	ret.Columns = m.NumColumns()
	ret.Encoding = m.Encoding.String()

	if m.Encoding.Labeled() {
		counts := map[string]int64{}
		var missing, calls int64
		callRates := make([]float64, len(m.Rows))
		for row := range m.Rows {
			var rowCalls int64
			for i := 0; i < ret.SNPs; i++ {
				switch m.genotypeClass(row, i) {
				case gtHomRef:
					counts["HomRef"]++
					rowCalls++
				case gtHet:
					counts["Het"]++
					rowCalls++
				case gtHomAlt:
					counts["HomAlt"]++
					rowCalls++
				default:
					counts["Missing"]++
					missing++
				}
			}
			calls += rowCalls
			if ret.SNPs > 0 {
				callRates[row] = float64(rowCalls) / float64(ret.SNPs)
			}
		}
		ret.GenotypeCounts = counts
		if total := calls + missing; total > 0 {
			ret.MissingRate = float64(missing) / float64(total)
		}
		ret.DistinctColumnPatterns = distinctColumnPatterns(m)
		for _, q := range []float64{5, 25, 50, 75, 95} {
			v, err := stats.Percentile(callRates, q)
			if err != nil {
				v = 0
			}
			ret.CallRateQuantiles = append(ret.CallRateQuantiles, v)
		}
	}

	return json.NewEncoder(output).Encode(ret)
}

// distinctColumnPatterns counts unique column value vectors, i.e. how
// many distinct genotype patterns the matrix actually contains.
func distinctColumnPatterns(m *FeatureMatrix) int {
	seen := map[[blake2b.Size256]byte]bool{}
	buf := make([]byte, 2*len(m.Rows))
	for c := 0; c < m.NumColumns(); c++ {
		for i, row := range m.Rows {
			v := row[c]
			buf[2*i] = byte(v)
			buf[2*i+1] = byte(uint16(v) >> 8)
		}
		seen[blake2b.Sum256(buf)] = true
	}
	return len(seen)
}
