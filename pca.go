package asaph

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"

	"github.com/james-bowman/nlp"
	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

type pcaCmd struct {
	filter filter
}

func (cmd *pcaCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	components := flags.Int("components", 4, "number of components")
	onehot := flags.Bool("one-hot", false, "recode a counts matrix as categorical 0/1 columns first")
	maxColumns := flags.Int("max-pca-columns", 0, "reduce matrix below `N` columns before decomposition by dropping every 2nd SNP until it fits")
	samplesFilename := flags.String("samples", "", "`samples.csv` file; fit on its training samples only (see 'asaph choose-samples')")
	samplesOutFilename := flags.String("samples-out", "", "write samples.csv with PCA component columns appended to `file`")
	cmd.filter.Flags(flags)
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *samplesOutFilename != "" && *samplesFilename == "" {
		err = errors.New("-samples-out requires -samples")
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
	log.Print("reading")
	m, err := ReadFeatureMatrix(input, strings.HasSuffix(*inputFilename, ".gz"))
	if err != nil {
		return 1
	}
	err = input.Close()
	if err != nil {
		return 1
	}

	log.Info("filtering")
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
	if *maxColumns > 0 {
		m = reduceColumns(m, *maxColumns)
	}

	var samples []sampleInfo
	if *samplesFilename != "" {
		samples, err = loadSampleInfo(*samplesFilename)
		if err != nil {
			return 1
		}
		samples, err = matchSamples(samples, m.SampleIDs)
		if err != nil {
			return 1
		}
	}

	rows, cols := len(m.Rows), m.NumColumns()
	if cols == 0 {
		err = errors.New("cannot do PCA: matrix is empty")
		return 1
	}
	log.Printf("creating matrix backed by array: %d rows, %d cols", rows, cols)
	mtxFull := m.Dense()
	mtxTrain := mtxFull
	if samples != nil {
		ntrain := 0
		for _, si := range samples {
			if si.isTraining {
				ntrain++
			}
		}
		if ntrain == 0 {
			err = fmt.Errorf("%s has no training samples", *samplesFilename)
			return 1
		}
		log.Printf("creating training matrix: %d rows", ntrain)
		mtxTrain = mat.NewDense(ntrain, cols, nil)
		trainRow := 0
		for i, si := range samples {
			if si.isTraining {
				mtxTrain.SetRow(trainRow, mtxFull.RawRowView(i))
				trainRow++
			}
		}
	}

	log.Print("fitting")
	transformer := nlp.NewPCA(*components)
	transformer.Fit(mtxTrain.T())
	log.Printf("transforming")
	pca, err := transformer.Transform(mtxFull.T())
	if err != nil {
		return 1
	}
	pca = pca.T()

	outrows, outcols := pca.Dims()
	log.Printf("copying result to numpy output array: %d rows, %d cols", outrows, outcols)
	out := make([]float64, outrows*outcols)
	for i := 0; i < outrows; i++ {
		for j := 0; j < outcols; j++ {
			out[i*outcols+j] = pca.At(i, j)
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
	npw.Shape = []int{outrows, outcols}
	log.Printf("writing numpy: %d rows, %d cols", outrows, outcols)
	err = npw.WriteFloat64(out)
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

	if *samplesOutFilename != "" {
		log.Print("copying pca components to sample metadata")
		for i := range samples {
			samples[i].pcaComponents = make([]float64, outcols)
			for c := 0; c < outcols; c++ {
				samples[i].pcaComponents[c] = pca.At(i, c)
			}
		}
		err = writeSampleInfo(samples, *samplesOutFilename)
		if err != nil {
			return 1
		}
	}
	log.Print("done")
	return 0
}

// reduceColumns drops every 2nd SNP block (or column pair, for
// hashed matrices) until the matrix has at most max columns.
func reduceColumns(m *FeatureMatrix, max int) *FeatureMatrix {
	blocksize := m.Encoding.columnsPerSNP()
	if blocksize == 0 {
		blocksize = 2
	}
	cols := m.NumColumns()
	stride := 1
	for cols > max && cols > blocksize {
		cols = (cols + blocksize) / 2 / blocksize * blocksize
		stride *= 2
	}
	if stride == 1 {
		return m
	}
	log.Printf("reducing to %d columns, stride %d", cols, stride)
	var keep []int
	for lo := 0; lo < m.NumColumns(); lo += blocksize {
		if (lo / blocksize % stride) == 0 {
			for c := lo; c < lo+blocksize && c < m.NumColumns(); c++ {
				keep = append(keep, c)
			}
		}
	}
	out := &FeatureMatrix{
		Encoding:       m.Encoding,
		HashDimensions: m.HashDimensions,
		SampleIDs:      m.SampleIDs,
		Rows:           make([][]int16, len(m.Rows)),
	}
	if m.Encoding.Labeled() {
		for _, c := range keep {
			out.Columns = append(out.Columns, m.Columns[c])
		}
	} else {
		out.HashDimensions = len(keep)
	}
	for i, row := range m.Rows {
		vals := make([]int16, 0, len(keep))
		for _, c := range keep {
			vals = append(vals, row[c])
		}
		out.Rows[i] = vals
	}
	return out
}
