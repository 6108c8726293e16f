package asaph

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	_ "net/http/pprof"
	"os"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

type chooseSamples struct{}

func (cmd *chooseSamples) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	err := cmd.run(prog, args, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	return 0
}

func (cmd *chooseSamples) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	inputFilename := flags.String("i", "-", "input matrix `file`")
	outputFilename := flags.String("o", "samples.csv", "output `samples.csv` file")
	trainingSetSize := flags.Float64("training-set-size", 0.8, "number (or proportion, if <=1) of eligible samples to assign to the training set")
	caseControlFilename := flags.String("case-control-file", "", "tsv file or directory indicating cases and controls (if directory, all files will be read)")
	caseControlColumn := flags.String("case-control-column", "", "name of case/control column in case-control files (value must be 0 for control, 1 for case)")
	randSeed := flags.Int64("random-seed", 0, "PRNG seed")
	err := flags.Parse(args)
	if err == flag.ErrHelp {
		return nil
	} else if err != nil {
		return err
	} else if flags.NArg() > 0 {
		return fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())
	}
	if (*caseControlFilename == "") != (*caseControlColumn == "") {
		return errors.New("must provide both -case-control-file and -case-control-column, or neither")
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
	var sampleIDs []string
	err = DecodeMatrix(input, strings.HasSuffix(*inputFilename, ".gz"), func(ent *MatrixEntry) error {
		if ent.Meta != nil {
			sampleIDs = append(sampleIDs, ent.Meta.SampleIDs...)
		}
		return nil
	})
	if err != nil {
		return err
	}
	input.Close()

	if len(sampleIDs) == 0 {
		return fmt.Errorf("no samples found in %s", *inputFilename)
	}
	caseControl, err := cmd.loadCaseControlFiles(*caseControlFilename, *caseControlColumn, sampleIDs)
	if err != nil {
		return err
	}
	if len(caseControl) == 0 {
		return fmt.Errorf("fatal: 0 cases, 0 controls, nothing to do")
	}

	var trainingSet, validationSet []int
	for i := range caseControl {
		trainingSet = append(trainingSet, i)
	}
	sort.Ints(trainingSet)
	wantlen := int(*trainingSetSize)
	if *trainingSetSize <= 1 {
		wantlen = int(*trainingSetSize * float64(len(trainingSet)))
	}
	randsrc := rand.NewSource(*randSeed)
	for tslen := len(trainingSet); tslen > wantlen; {
		i := int(randsrc.Int63()) % tslen
		validationSet = append(validationSet, trainingSet[i])
		tslen--
		trainingSet[i] = trainingSet[tslen]
		trainingSet = trainingSet[:tslen]
	}
	sort.Ints(trainingSet)
	sort.Ints(validationSet)

	samples := make([]sampleInfo, len(sampleIDs))
	for i, id := range sampleIDs {
		samples[i] = sampleInfo{id: id}
	}
	for _, i := range trainingSet {
		samples[i].isTraining = true
		samples[i].isCase = caseControl[i]
		samples[i].isControl = !caseControl[i]
	}
	for _, i := range validationSet {
		samples[i].isValidation = true
		samples[i].isCase = caseControl[i]
		samples[i].isControl = !caseControl[i]
	}
	return writeSampleInfo(samples, *outputFilename)
}

// Read case/control file(s). Returned map m has m[i]==true if
// sampleIDs[i] is case, m[i]==false if sampleIDs[i] is control.
func (cmd *chooseSamples) loadCaseControlFiles(path, colname string, sampleIDs []string) (map[int]bool, error) {
	if path == "" {
		// all samples are control group
		cc := make(map[int]bool, len(sampleIDs))
		for i := range sampleIDs {
			cc[i] = false
		}
		return cc, nil
	}
	infiles, err := allFiles(path, nil)
	if err != nil {
		return nil, err
	}
	// index in sampleIDs => case(true) / control(false)
	cc := map[int]bool{}
	// index in sampleIDs => true if matched by multiple patterns in case/control files
	dup := map[int]bool{}
	for _, infile := range infiles {
		f, err := zopen(infile)
		if err != nil {
			return nil, err
		}
		buf, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		ccCol := -1
		for _, tsv := range bytes.Split(buf, []byte{'\n'}) {
			if len(tsv) == 0 {
				continue
			}
			split := strings.Split(string(tsv), "\t")
			if ccCol < 0 {
				// header row
				for col, name := range split {
					if name == colname {
						ccCol = col
						break
					}
				}
				if ccCol < 0 {
					return nil, fmt.Errorf("%s: no column named %q in header row %q", infile, colname, tsv)
				}
				continue
			}
			if len(split) <= ccCol {
				continue
			}
			pattern := split[0]
			found := -1
			for i, name := range sampleIDs {
				if strings.Contains(name, pattern) {
					if found >= 0 {
						log.Warnf("pattern %q in %s matches multiple sample IDs (%q, %q)", pattern, infile, sampleIDs[found], name)
					}
					if dup[i] {
						continue
					} else if _, ok := cc[i]; ok {
						log.Warnf("multiple patterns match sample ID %q, omitting from cases/controls", name)
						dup[i] = true
						delete(cc, i)
						continue
					}
					found = i
					if split[ccCol] == "0" {
						cc[found] = false
					}
					if split[ccCol] == "1" {
						cc[found] = true
					}
				}
			}
			if found < 0 {
				log.Warnf("pattern %q in %s does not match any sample IDs", pattern, infile)
				continue
			}
		}
	}
	return cc, nil
}
