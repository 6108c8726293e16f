package asaph

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

var chisq1df = distuv.ChiSquared{K: 1, Src: rand.NewSource(rand.Uint64())}

// pvalue does a 1-df chi-squared test of whether alt-allele carriers
// split across cases and controls in proportion to the whole cohort.
// Degenerate tables (no carriers, or a single-group cohort) return 1.
func pvalue(carrier, isCase []bool) float64 {
	var ncase, ncontrol, carrierCase, carrierControl float64
	for i, cc := range isCase {
		if cc {
			ncase++
		} else {
			ncontrol++
		}
		if carrier[i] {
			if cc {
				carrierCase++
			} else {
				carrierControl++
			}
		}
	}
	ncarrier := carrierCase + carrierControl
	if ncase == 0 || ncontrol == 0 || ncarrier == 0 {
		return 1
	}
	cohort := ncase + ncontrol
	var x2 float64
	for _, cell := range [][2]float64{
		{carrierCase, ncarrier * ncase / cohort},
		{carrierControl, ncarrier * ncontrol / cohort},
	} {
		d := cell[0] - cell[1]
		x2 += d * d / cell[1]
	}
	return 1 - chisq1df.CDF(x2)
}
