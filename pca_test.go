package asaph

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/kshedden/gonpy"
	"gopkg.in/check.v1"
)

type pcaSuite struct{}

var _ = check.Suite(&pcaSuite{})

// two clearly separated genotype clusters must separate along the
// first principal component
func (s *pcaSuite) TestPCASeparatesClusters(c *check.C) {
	tmpdir := c.MkDir()

	samples := make([]string, 20)
	for i := range samples {
		samples[i] = fmt.Sprintf("sample%02d", i)
	}
	b := newMatrixBuilder(EncodingCounts, 0, samples)
	for pos := 0; pos < 10; pos++ {
		classes := make([]genotypeClass, 20)
		for i := range classes {
			if i < 10 {
				classes[i] = gtHomRef
			} else {
				classes[i] = gtHomAlt
			}
		}
		c.Assert(b.Add(snpRecord{Chrom: "chr1", Pos: 100 + pos, Ref: "A", Alt: "G", Classes: classes}), check.IsNil)
	}

	gobfile := tmpdir + "/matrix.gob"
	f, err := os.Create(gobfile)
	c.Assert(err, check.IsNil)
	w := bufio.NewWriter(f)
	c.Assert(b.Matrix().WriteGob(w), check.IsNil)
	c.Assert(w.Flush(), check.IsNil)
	c.Assert(f.Close(), check.IsNil)

	exited := (&pcaCmd{}).RunCommand("asaph pca", []string{"-i", gobfile, "-o", tmpdir + "/pca.npy", "-components", "2"}, bytes.NewReader(nil), os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)

	rf, err := os.Open(tmpdir + "/pca.npy")
	c.Assert(err, check.IsNil)
	defer rf.Close()
	npy, err := gonpy.NewReader(rf)
	c.Assert(err, check.IsNil)
	coords, err := npy.GetFloat64()
	c.Assert(err, check.IsNil)
	c.Assert(npy.Shape, check.DeepEquals, []int{20, 2})

	var mean1, mean2 float64
	for i := 0; i < 20; i++ {
		pc1 := coords[i*2]
		c.Check(math.IsNaN(pc1), check.Equals, false)
		if i < 10 {
			mean1 += pc1 / 10
		} else {
			mean2 += pc1 / 10
		}
	}
	c.Check(math.Abs(mean1-mean2) > 0.1, check.Equals, true,
		check.Commentf("cluster means %f vs %f", mean1, mean2))
}

func (s *pcaSuite) TestPCAWritesSampleComponents(c *check.C) {
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

	exited = (&pcaCmd{}).RunCommand("asaph pca", []string{
		"-i", tmpdir + "/matrix.gob",
		"-o", tmpdir + "/pca.npy",
		"-components", "2",
		"-samples", tmpdir + "/samples.csv",
		"-samples-out", tmpdir + "/samples.csv",
	}, bytes.NewReader(nil), os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)

	samples, err := loadSampleInfo(tmpdir + "/samples.csv")
	c.Assert(err, check.IsNil)
	c.Assert(samples, check.HasLen, 4)
	for _, si := range samples {
		c.Check(si.pcaComponents, check.HasLen, 2)
	}
}
