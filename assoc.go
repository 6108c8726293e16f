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

	log "github.com/sirupsen/logrus"
)

// assocCmd tests each SNP for association with the case/control
// grouping from samples.csv: a Χ² test of alt-allele presence by
// default, or a likelihood ratio test via logistic regression with
// -glm.
type assocCmd struct {
	useGLM       bool
	minFrequency float64
}

func (cmd *assocCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	err := cmd.run(prog, args, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	return 0
}

func (cmd *assocCmd) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	inputFilename := flags.String("i", "-", "input matrix `file`")
	outputFilename := flags.String("o", "-", "output `file` (tsv: chrom, pos, p-value)")
	samplesFilename := flags.String("samples", "", "`samples.csv` file with case/control groups (see 'asaph choose-samples')")
	flags.BoolVar(&cmd.useGLM, "glm", false, "likelihood ratio test via logistic regression, using the training set and any PCA covariates in samples.csv")
	flags.Float64Var(&cmd.minFrequency, "min-frequency", 0.01, "skip SNPs whose alt allele frequency is below `P` in the tested samples")
	err := flags.Parse(args)
	if err == flag.ErrHelp {
		return nil
	} else if err != nil {
		return err
	}
	if *samplesFilename == "" {
		return errors.New("cannot test for association without -samples argument")
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
			return err
		}
		defer input.Close()
	}
	log.Print("reading")
	m, err := ReadFeatureMatrix(input, strings.HasSuffix(*inputFilename, ".gz"))
	if err != nil {
		return err
	}
	err = input.Close()
	if err != nil {
		return err
	}
	if !m.Encoding.Labeled() {
		return fmt.Errorf("cannot test a %s matrix: columns have no SNP labels", m.Encoding)
	}

	samples, err := loadSampleInfo(*samplesFilename)
	if err != nil {
		return err
	}
	samples, err = matchSamples(samples, m.SampleIDs)
	if err != nil {
		return err
	}

	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(*outputFilename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
		if err != nil {
			return err
		}
		defer output.Close()
	}
	bufw := bufio.NewWriter(output)
	err = cmd.testSNPs(m, samples, bufw)
	if err != nil {
		return err
	}
	err = bufw.Flush()
	if err != nil {
		return err
	}
	return output.Close()
}

func (cmd *assocCmd) testSNPs(m *FeatureMatrix, samples []sampleInfo, output io.Writer) error {
	// tested[i]: sample i participates in the test.
	tested := make([]bool, len(samples))
	ntested := 0
	for i, si := range samples {
		if si.isCase || si.isControl {
			if cmd.useGLM && !si.isTraining {
				continue
			}
			tested[i] = true
			ntested++
		}
	}
	if ntested == 0 {
		return errors.New("0 cases, 0 controls, nothing to test")
	}
	log.Printf("testing %d snps against %d samples", m.NumSNPs(), ntested)

	var glmPvalue func([][]float64) float64
	if cmd.useGLM {
		glmPvalue = glmPvalueFunc(samples, len(samples[0].pcaComponents))
	}

	nsnps := m.NumSNPs()
	skipped := 0
	nextOutput := 1
	for i := 0; i < nsnps; i++ {
		lo, hi := m.snpColumns(i)
		col := m.Columns[lo]
		if cmd.altFrequency(m, i, tested) < cmd.minFrequency {
			skipped++
			continue
		}
		var p float64
		if cmd.useGLM {
			snpCols := make([][]float64, 0, hi-lo)
			for c := lo; c < hi; c++ {
				series := make([]float64, len(samples))
				for row := range m.Rows {
					series[row] = float64(m.Rows[row][c])
				}
				snpCols = append(snpCols, series)
			}
			p = glmPvalue(snpCols)
		} else {
			x := make([]bool, 0, ntested)
			y := make([]bool, 0, ntested)
			for row, si := range samples {
				if !tested[row] {
					continue
				}
				class := m.genotypeClass(row, i)
				x = append(x, class == gtHet || class == gtHomAlt)
				y = append(y, si.isCase)
			}
			p = pvalue(x, y)
		}
		if i+1 == nextOutput {
			log.Printf("snp %d/%d %s:%d p-value %g", i+1, nsnps, col.Chrom, col.Pos, p)
			nextOutput *= 2
		}
		_, err := fmt.Fprintf(output, "%s\t%d\t%g\n", col.Chrom, col.Pos, p)
		if err != nil {
			return err
		}
	}
	if skipped > 0 {
		log.Printf("skipped %d snps below frequency %g", skipped, cmd.minFrequency)
	}
	return nil
}

// altFrequency returns the alt allele frequency of SNP i over the
// tested samples' non-missing calls.
func (cmd *assocCmd) altFrequency(m *FeatureMatrix, i int, tested []bool) float64 {
	var altCopies, copies int
	for row := range m.Rows {
		if !tested[row] {
			continue
		}
		switch m.genotypeClass(row, i) {
		case gtHomRef:
			copies += 2
		case gtHet:
			copies += 2
			altCopies++
		case gtHomAlt:
			copies += 2
			altCopies += 2
		}
	}
	if copies == 0 {
		return 0
	}
	return float64(altCopies) / float64(copies)
}
