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

// dumpMatrix prints a human-readable summary of a gob matrix stream,
// for debugging.
type dumpMatrix struct{}

func (cmd *dumpMatrix) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	inputFilename := flags.String("i", "-", "input `file` (matrix)")
	outputFilename := flags.String("o", "-", "output `file`")
	values := flags.Bool("values", false, "also print each row's feature values")
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
	bufw := bufio.NewWriterSize(output, 1<<20)

	var n, nCols, nRows int
	err = DecodeMatrix(input, strings.HasSuffix(*inputFilename, ".gz"), func(ent *MatrixEntry) error {
		n++
		if ent.Meta != nil {
			fmt.Fprintf(bufw, "ent %d: Meta, encoding %s, hash dimensions %d, %d samples\n", n, ent.Meta.Encoding, ent.Meta.HashDimensions, len(ent.Meta.SampleIDs))
		}
		for _, col := range ent.Columns {
			nCols++
			fmt.Fprintf(bufw, "ent %d: Column %d, %s:%d %s>%s %s\n", n, nCols-1, col.Chrom, col.Pos, col.Ref, col.Alt, col.Kind)
		}
		for _, row := range ent.Rows {
			nRows++
			fmt.Fprintf(bufw, "ent %d: Row, name %q, len(Values) %d\n", n, row.Name, len(row.Values))
			if *values {
				fmt.Fprintf(bufw, "%v\n", row.Values)
			}
		}
		return nil
	})
	if err != nil {
		return 1
	}
	fmt.Fprintf(bufw, "total: ents %d, columns %d, rows %d\n", n, nCols, nRows)
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
