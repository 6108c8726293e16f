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

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

type exportNumpy struct {
	filter filter
}

func (cmd *exportNumpy) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	columnsFilename := flags.String("columns-csv", "", "also write column labels to `file`")
	onehot := flags.Bool("one-hot", false, "recode a counts matrix as categorical 0/1 columns")
	cmd.filter.Flags(flags)
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
	m, err := ReadFeatureMatrix(input, strings.HasSuffix(*inputFilename, ".gz"))
	if err != nil {
		return 1
	}
	err = input.Close()
	if err != nil {
		return 1
	}

	err = cmd.filter.Apply(m)
	if err != nil {
		return 1
	}
	if *onehot {
		m, err = recodeOnehot(m)
		if err != nil {
			return 1
		}
	}

	if *columnsFilename != "" {
		err = writeColumnLabels(m, *columnsFilename)
		if err != nil {
			return 1
		}
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
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return 1
	}
	rows, cols := len(m.Rows), m.NumColumns()
	out := make([]int16, 0, rows*cols)
	for _, row := range m.Rows {
		out = append(out, row...)
	}
	npw.Shape = []int{rows, cols}
	log.Printf("writing numpy: %d rows, %d cols", rows, cols)
	err = npw.WriteInt16(out)
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

// recodeOnehot converts a counts matrix to categorical-style 0/1
// columns. Categorical input passes through unchanged.
func recodeOnehot(m *FeatureMatrix) (*FeatureMatrix, error) {
	switch m.Encoding {
	case EncodingCategorical:
		return m, nil
	case EncodingCounts:
	default:
		return nil, fmt.Errorf("cannot recode a %s matrix as one-hot", m.Encoding)
	}
	out := newMatrixBuilder(EncodingCategorical, 0, m.SampleIDs)
	nsnps := m.NumSNPs()
	for i := 0; i < nsnps; i++ {
		lo, _ := m.snpColumns(i)
		rec := snpRecord{
			Chrom:   m.Columns[lo].Chrom,
			Pos:     m.Columns[lo].Pos,
			Ref:     m.Columns[lo].Ref,
			Alt:     m.Columns[lo].Alt,
			Classes: make([]genotypeClass, len(m.Rows)),
		}
		for row := range m.Rows {
			rec.Classes[row] = m.genotypeClass(row, i)
		}
		err := out.Add(rec)
		if err != nil {
			return nil, err
		}
	}
	return out.Matrix(), nil
}

func writeColumnLabels(m *FeatureMatrix, fnm string) error {
	if !m.Encoding.Labeled() {
		return fmt.Errorf("cannot write column labels for a %s matrix", m.Encoding)
	}
	log.Infof("writing column labels to %s", fnm)
	f, err := os.Create(fnm)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprint(f, "Index,Chrom,Pos,Ref,Alt,Kind\n")
	if err != nil {
		return err
	}
	for i, col := range m.Columns {
		_, err = fmt.Fprintf(f, "%d,%s,%d,%s,%s,%s\n", i, col.Chrom, col.Pos, col.Ref, col.Alt, col.Kind)
		if err != nil {
			return fmt.Errorf("write %s: %w", fnm, err)
		}
	}
	return f.Close()
}
