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

type filter struct {
	MinMAF     float64
	MaxMissing float64
	MaxSNPs    int
}

func (f *filter) Flags(flags *flag.FlagSet) {
	flags.Float64Var(&f.MinMAF, "min-maf", 0, "zero out SNPs with minor allele frequency below `P` (0 ≤ P ≤ 0.5)")
	flags.Float64Var(&f.MaxMissing, "max-missing", 1, "zero out SNPs with missing-call fraction above `P`")
	flags.IntVar(&f.MaxSNPs, "max-snps", -1, "drop all but the first `N` SNPs")
}

func (f *filter) Args() []string {
	return []string{
		fmt.Sprintf("-min-maf=%f", f.MinMAF),
		fmt.Sprintf("-max-missing=%f", f.MaxMissing),
		fmt.Sprintf("-max-snps=%d", f.MaxSNPs),
	}
}

// Apply edits m in place. SNPs failing the frequency or missingness
// thresholds have their columns zeroed out, preserving column
// numbering; -max-snps truncates columns and labels.
func (f *filter) Apply(m *FeatureMatrix) error {
	if f.MinMAF == 0 && f.MaxMissing >= 1 && f.MaxSNPs < 0 {
		return nil
	}
	if !m.Encoding.Labeled() {
		return fmt.Errorf("cannot filter a %s matrix: columns have no SNP labels", m.Encoding)
	}
	nsnps := m.NumSNPs()
	zeroed := 0
	for i := 0; i < nsnps; i++ {
		maf, missing := m.snpFrequencies(i)
		if maf >= f.MinMAF && missing <= f.MaxMissing {
			continue
		}
		lo, hi := m.snpColumns(i)
		for _, row := range m.Rows {
			for c := lo; c < hi; c++ {
				row[c] = 0
			}
		}
		zeroed++
	}
	if zeroed > 0 {
		log.Printf("zeroed out %d of %d snps", zeroed, nsnps)
	}
	if f.MaxSNPs >= 0 && nsnps > f.MaxSNPs {
		hi := f.MaxSNPs * m.Encoding.columnsPerSNP()
		m.Columns = m.Columns[:hi]
		for i, row := range m.Rows {
			m.Rows[i] = row[:hi]
		}
		log.Printf("truncated to %d snps", f.MaxSNPs)
	}
	return nil
}

// snpFrequencies returns the minor allele frequency and the missing
// fraction of SNP i, both computed over all sample rows.
func (m *FeatureMatrix) snpFrequencies(i int) (maf, missing float64) {
	var refCopies, altCopies, nMissing int
	for row := range m.Rows {
		switch m.genotypeClass(row, i) {
		case gtHomRef:
			refCopies += 2
		case gtHet:
			refCopies++
			altCopies++
		case gtHomAlt:
			altCopies += 2
		default:
			nMissing++
		}
	}
	if n := refCopies + altCopies; n > 0 {
		maf = float64(refCopies) / float64(n)
		if maf > 0.5 {
			maf = 1 - maf
		}
	}
	missing = float64(nMissing) / float64(len(m.Rows))
	return
}

type filtercmd struct {
	filter
}

func (cmd *filtercmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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

	var infile io.ReadCloser
	if *inputFilename == "-" {
		infile = io.NopCloser(stdin)
	} else {
		infile, err = os.Open(*inputFilename)
		if err != nil {
			return 1
		}
		defer infile.Close()
	}
	log.Print("reading")
	m, err := ReadFeatureMatrix(infile, strings.HasSuffix(*inputFilename, ".gz"))
	if err != nil {
		return 1
	}
	err = infile.Close()
	if err != nil {
		return 1
	}
	log.Printf("reading done, %d samples x %d columns", len(m.SampleIDs), m.NumColumns())

	log.Print("filtering")
	err = cmd.filter.Apply(m)
	if err != nil {
		return 1
	}

	var outfile io.WriteCloser
	if *outputFilename == "-" {
		outfile = nopCloser{stdout}
	} else {
		outfile, err = os.OpenFile(*outputFilename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
		if err != nil {
			return 1
		}
		defer outfile.Close()
	}
	w := bufio.NewWriter(outfile)
	log.Print("writing")
	err = m.WriteGob(w)
	if err != nil {
		return 1
	}
	err = w.Flush()
	if err != nil {
		return 1
	}
	err = outfile.Close()
	if err != nil {
		return 1
	}
	return 0
}
