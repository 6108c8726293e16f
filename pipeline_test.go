package asaph

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/kshedden/gonpy"
	"gopkg.in/check.v1"
)

type pipelineSuite struct{}

var _ = check.Suite(&pipelineSuite{})

func (s *pipelineSuite) TestImportStats(c *check.C) {
	var wg sync.WaitGroup

	statsin, importout := io.Pipe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		code := (&importer{}).RunCommand("asaph import", []string{"-snps-only", "testdata/small.vcf"}, bytes.NewReader(nil), importout, os.Stderr)
		c.Check(code, check.Equals, 0)
		importout.Close()
	}()
	statsout := &bytes.Buffer{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		code := (&statscmd{}).RunCommand("asaph stats", nil, statsin, statsout, os.Stderr)
		c.Check(code, check.Equals, 0)
	}()
	wg.Wait()
	c.Logf("%s", statsout.String())

	var got struct {
		Samples, SNPs, Columns int
		Encoding               string
		GenotypeCounts         map[string]int64
	}
	err := json.Unmarshal(statsout.Bytes(), &got)
	c.Assert(err, check.IsNil)
	c.Check(got.Samples, check.Equals, 4)
	c.Check(got.SNPs, check.Equals, 5)
	c.Check(got.Columns, check.Equals, 10)
	c.Check(got.Encoding, check.Equals, "counts")
	c.Check(got.GenotypeCounts["Missing"], check.Equals, int64(1))
}

func (s *pipelineSuite) TestImportPassOnly(c *check.C) {
	for _, trial := range []struct {
		args     []string
		wantSNPs int
	}{
		// FILTER column: PASS, q10, "." -- only q10 is a failure
		{[]string{"testdata/lowqual.vcf"}, 3},
		{[]string{"-pass-only", "testdata/lowqual.vcf"}, 2},
	} {
		out := &bytes.Buffer{}
		code := (&importer{}).RunCommand("asaph import", trial.args, bytes.NewReader(nil), out, os.Stderr)
		c.Assert(code, check.Equals, 0)
		m, err := ReadFeatureMatrix(bytes.NewReader(out.Bytes()), false)
		c.Assert(err, check.IsNil)
		c.Check(m.NumSNPs(), check.Equals, trial.wantSNPs)
		var positions []int
		for i := 0; i < m.NumSNPs(); i++ {
			lo, _ := m.snpColumns(i)
			positions = append(positions, m.Columns[lo].Pos)
		}
		if trial.wantSNPs == 2 {
			c.Check(positions, check.DeepEquals, []int{100, 300})
		} else {
			c.Check(positions, check.DeepEquals, []int{100, 200, 300})
		}
	}
}

func (s *pipelineSuite) TestImportExportNumpy(c *check.C) {
	tmpdir := c.MkDir()

	exited := (&importer{}).RunCommand("asaph import", []string{"-snps-only", "-o", tmpdir + "/matrix.gob", "testdata/small.vcf"}, bytes.NewReader(nil), os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	exited = (&exportNumpy{}).RunCommand("asaph export-numpy", []string{"-i", tmpdir + "/matrix.gob", "-o", tmpdir + "/matrix.npy", "-columns-csv", tmpdir + "/matrix.columns.csv"}, bytes.NewReader(nil), os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)

	f, err := os.Open(tmpdir + "/matrix.npy")
	c.Assert(err, check.IsNil)
	defer f.Close()
	npy, err := gonpy.NewReader(f)
	c.Assert(err, check.IsNil)
	variants, err := npy.GetInt16()
	c.Assert(err, check.IsNil)
	c.Check(npy.Shape, check.DeepEquals, []int{4, 10})
	c.Check(variants, check.DeepEquals, []int16{
		2, 0, 2, 0, 0, 2, 1, 1, 0, 2, // s1
		1, 1, 2, 0, 0, 2, 2, 0, 2, 0, // s2
		0, 2, 2, 0, 2, 0, 1, 1, 1, 1, // s3
		0, 0, 2, 0, 1, 1, 2, 0, 1, 1, // s4
	})

	labels, err := os.ReadFile(tmpdir + "/matrix.columns.csv")
	c.Assert(err, check.IsNil)
	c.Logf("%s", labels)
	c.Check(string(labels), check.Matches, `(?ms)Index,Chrom,Pos,Ref,Alt,Kind\n0,chr1,100,A,G,ref-count\n.*`)
	c.Check(strings.Count(string(labels), "\n"), check.Equals, 11)
}

func (s *pipelineSuite) TestImportMerge(c *check.C) {
	tmpdir := c.MkDir()

	var wg sync.WaitGroup
	gobfile := make([]string, 2)
	for i, infile := range []string{"testdata/small.vcf", "testdata/small2.vcf"} {
		i, infile := i, infile
		gobfile[i] = tmpdir + "/" + string(rune('0'+i)) + ".gob"
		wg.Add(1)
		go func() {
			defer wg.Done()
			code := (&importer{}).RunCommand("asaph import", []string{"-snps-only", "-o", gobfile[i], infile}, bytes.NewReader(nil), &bytes.Buffer{}, os.Stderr)
			c.Check(code, check.Equals, 0)
		}()
	}
	wg.Wait()

	merged := &bytes.Buffer{}
	code := (&merger{}).RunCommand("asaph merge", []string{gobfile[0], gobfile[1]}, bytes.NewReader(nil), merged, os.Stderr)
	c.Check(code, check.Equals, 0)

	m, err := ReadFeatureMatrix(bytes.NewReader(merged.Bytes()), false)
	c.Assert(err, check.IsNil)
	c.Check(m.NumSNPs(), check.Equals, 7)
	c.Check(m.SampleIDs, check.DeepEquals, []string{"s1", "s2", "s3", "s4"})
	c.Check(m.Columns[10].Chrom, check.Equals, "chr2")
}

func (s *pipelineSuite) TestChooseSamplesAssoc(c *check.C) {
	tmpdir := c.MkDir()

	exited := (&importer{}).RunCommand("asaph import", []string{"-snps-only", "-o", tmpdir + "/matrix.gob", "testdata/small.vcf"}, bytes.NewReader(nil), os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)

	exited = (&chooseSamples{}).RunCommand("asaph choose-samples", []string{
		"-i", tmpdir + "/matrix.gob",
		"-o", tmpdir + "/samples.csv",
		"-case-control-file", "testdata/phenotype.tsv",
		"-case-control-column", "Status",
		"-training-set-size", "1",
	}, bytes.NewReader(nil), os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)

	samples, err := loadSampleInfo(tmpdir + "/samples.csv")
	c.Assert(err, check.IsNil)
	c.Assert(samples, check.HasLen, 4)
	c.Check(samples[0].id, check.Equals, "s1")
	c.Check(samples[0].isControl, check.Equals, true)
	c.Check(samples[3].isCase, check.Equals, true)
	for _, si := range samples {
		c.Check(si.isTraining, check.Equals, true)
	}

	assocout := &bytes.Buffer{}
	exited = (&assocCmd{}).RunCommand("asaph assoc", []string{
		"-i", tmpdir + "/matrix.gob",
		"-samples", tmpdir + "/samples.csv",
	}, bytes.NewReader(nil), assocout, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	c.Logf("%s", assocout.String())

	lines := strings.Split(strings.TrimRight(assocout.String(), "\n"), "\n")
	// the monomorphic snp at chr1:200 is skipped
	c.Check(lines, check.HasLen, 4)
	for _, line := range lines {
		fields := strings.Split(line, "\t")
		c.Assert(fields, check.HasLen, 3)
		c.Check(fields[0], check.Equals, "chr1")
	}
}
