package asaph

import (
	"bytes"

	"gopkg.in/check.v1"
)

type matrixSuite struct{}

var _ = check.Suite(&matrixSuite{})

func (s *matrixSuite) TestGobRoundTrip(c *check.C) {
	m := buildTestMatrix(c, EncodingCounts, 0)
	var buf bytes.Buffer
	c.Assert(m.WriteGob(&buf), check.IsNil)

	got, err := ReadFeatureMatrix(&buf, false)
	c.Assert(err, check.IsNil)
	c.Check(got.Encoding, check.Equals, m.Encoding)
	c.Check(got.SampleIDs, check.DeepEquals, m.SampleIDs)
	c.Check(got.Columns, check.DeepEquals, m.Columns)
	c.Check(got.Rows, check.DeepEquals, m.Rows)
}

func (s *matrixSuite) TestZeroColumnRoundTrip(c *check.C) {
	// e.g. import -snps-only of a VCF with no usable records
	m := newMatrixBuilder(EncodingCounts, 0, testSamples).Matrix()
	var buf bytes.Buffer
	c.Assert(m.WriteGob(&buf), check.IsNil)

	got, err := ReadFeatureMatrix(&buf, false)
	c.Assert(err, check.IsNil)
	c.Check(got.SampleIDs, check.DeepEquals, testSamples)
	c.Check(got.NumColumns(), check.Equals, 0)
	c.Check(got.NumSNPs(), check.Equals, 0)
	c.Check(got.Rows, check.HasLen, len(testSamples))
}

func (s *matrixSuite) TestReadRejectsDoubleMeta(c *check.C) {
	m := buildTestMatrix(c, EncodingCounts, 0)
	var buf bytes.Buffer
	c.Assert(m.WriteGob(&buf), check.IsNil)
	c.Assert(m.WriteGob(&buf), check.IsNil)
	_, err := ReadFeatureMatrix(&buf, false)
	c.Check(err, check.ErrorMatches, `.*multiple matrix metadata.*`)
}

func (s *matrixSuite) TestConcatDisjointBlocks(c *check.C) {
	m1 := buildTestMatrix(c, EncodingCounts, 0)
	b := newMatrixBuilder(EncodingCounts, 0, testSamples)
	c.Assert(b.Add(snpRecord{Chrom: "chr2", Pos: 50, Ref: "T", Alt: "A", Classes: []genotypeClass{gtHet, gtHet, gtHomRef, gtHomAlt}}), check.IsNil)
	m2 := b.Matrix()

	m, err := concatMatrices([]*FeatureMatrix{m1, m2})
	c.Assert(err, check.IsNil)
	c.Check(m.NumSNPs(), check.Equals, 4)
	c.Check(m.NumColumns(), check.Equals, 8)
	c.Check(m.Columns[6].Chrom, check.Equals, "chr2")
	c.Check(m.Rows[0][6:8], check.DeepEquals, []int16{1, 1})
	c.Check(m.Rows[3][6:8], check.DeepEquals, []int16{0, 2})
}

func (s *matrixSuite) TestConcatAlignsRowsByName(c *check.C) {
	m1 := buildTestMatrix(c, EncodingCounts, 0)
	b := newMatrixBuilder(EncodingCounts, 0, []string{"s4", "s3", "s2", "s1"})
	c.Assert(b.Add(snpRecord{Chrom: "chr2", Pos: 50, Ref: "T", Alt: "A", Classes: []genotypeClass{gtHomAlt, gtHomRef, gtHet, gtHet}}), check.IsNil)
	m2 := b.Matrix()

	m, err := concatMatrices([]*FeatureMatrix{m1, m2})
	c.Assert(err, check.IsNil)
	c.Check(m.SampleIDs, check.DeepEquals, testSamples)
	// s1's chr2 genotype came from m2's last row
	c.Check(m.Rows[0][6:8], check.DeepEquals, []int16{1, 1})
	c.Check(m.Rows[3][6:8], check.DeepEquals, []int16{0, 2})
}

func (s *matrixSuite) TestConcatHashedSums(c *check.C) {
	m1 := buildTestMatrix(c, EncodingHashed, 16)
	m2 := buildTestMatrix(c, EncodingHashed, 16)
	m, err := concatMatrices([]*FeatureMatrix{m1, m2})
	c.Assert(err, check.IsNil)
	c.Check(m.NumColumns(), check.Equals, 16)
	for i, row := range m.Rows {
		for j, v := range row {
			c.Check(v, check.Equals, 2*m1.Rows[i][j])
		}
	}
}

func (s *matrixSuite) TestConcatRejectsMismatch(c *check.C) {
	m1 := buildTestMatrix(c, EncodingCounts, 0)
	m2 := buildTestMatrix(c, EncodingCategorical, 0)
	_, err := concatMatrices([]*FeatureMatrix{m1, m2})
	c.Check(err, check.ErrorMatches, `cannot combine categorical matrix with counts matrix`)

	b := newMatrixBuilder(EncodingCounts, 0, []string{"s1", "s2", "s3", "other"})
	c.Assert(b.Add(snpRecord{Chrom: "chr2", Pos: 50, Ref: "T", Alt: "A", Classes: []genotypeClass{gtHet, gtHet, gtHomRef, gtHomAlt}}), check.IsNil)
	_, err = concatMatrices([]*FeatureMatrix{m1, b.Matrix()})
	c.Check(err, check.ErrorMatches, `sample "other" not present in first input`)
}

func (s *matrixSuite) TestReduceColumns(c *check.C) {
	b := newMatrixBuilder(EncodingCounts, 0, testSamples)
	for pos := 0; pos < 8; pos++ {
		c.Assert(b.Add(snpRecord{Chrom: "chr1", Pos: 100 + pos, Ref: "A", Alt: "G", Classes: []genotypeClass{gtHomRef, gtHet, gtHomAlt, gtHomRef}}), check.IsNil)
	}
	m := reduceColumns(b.Matrix(), 8)
	c.Check(m.NumSNPs(), check.Equals, 4)
	c.Check(m.NumColumns(), check.Equals, 8)
	c.Check(m.Columns[0].Pos, check.Equals, 100)
	c.Check(m.Columns[2].Pos, check.Equals, 102)
	for _, row := range m.Rows {
		c.Check(row, check.HasLen, 8)
	}
	// already small enough: untouched
	c.Check(reduceColumns(m, 8), check.Equals, m)
}
