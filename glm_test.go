package asaph

import (
	"gopkg.in/check.v1"
)

type glmSuite struct{}

var _ = check.Suite(&glmSuite{})

func glmTestSamples() []sampleInfo {
	samples := make([]sampleInfo, 40)
	for i := range samples {
		samples[i] = sampleInfo{
			id:         "sample" + string(rune('A'+i%26)),
			isCase:     i < 20,
			isControl:  i >= 20,
			isTraining: true,
		}
	}
	return samples
}

func (s *glmSuite) TestGlmPvalueAssociated(c *check.C) {
	samples := glmTestSamples()
	pvalueFn := glmPvalueFunc(samples, 0)
	// carrier status agrees with case status for 36/40 samples
	col := make([]float64, 40)
	for i := 0; i < 18; i++ {
		col[i] = 1
	}
	col[20], col[21] = 1, 1
	p := pvalueFn([][]float64{col})
	c.Check(p < 0.05, check.Equals, true, check.Commentf("p=%g", p))
}

func (s *glmSuite) TestGlmPvalueBalanced(c *check.C) {
	samples := glmTestSamples()
	pvalueFn := glmPvalueFunc(samples, 0)
	// carrier status is split evenly within cases and controls
	col := make([]float64, 40)
	for i := range col {
		col[i] = float64(i % 2)
	}
	p := pvalueFn([][]float64{col})
	c.Check(p > 0.5, check.Equals, true, check.Commentf("p=%g", p))
}
