package asaph

import (
	"fmt"
	"io"
	"log"
	"math"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var glmConfig = &glm.Config{
	Family:         glm.NewFamily(glm.BinomialFamily),
	FitMethod:      "IRLS",
	ConcurrentIRLS: 1000,
	Log:            log.New(io.Discard, "", 0),
}

func normalize(a []float64) {
	mean, std := stat.MeanStdDev(a, nil)
	for i, x := range a {
		a[i] = (x - mean) / std
	}
}

// Likelihood ratio test via logistic regression.
//
// The returned function compares a null model (intercept plus any PCA
// component covariates in sampleInfo) against the same model plus the
// given SNP feature columns, and returns the Χ² survival p-value of
// the likelihood ratio. Feature columns are in sample order, but only
// entries for samples with isTraining==true are used.
func glmPvalueFunc(samples []sampleInfo, nPCA int) func(snpCols [][]float64) float64 {
	pcaNames := make([]string, 0, nPCA)
	data := make([][]statmodel.Dtype, 0, nPCA)
	for pca := 0; pca < nPCA; pca++ {
		series := make([]statmodel.Dtype, 0, len(samples))
		for _, si := range samples {
			if si.isTraining {
				series = append(series, si.pcaComponents[pca])
			}
		}
		normalize(series)
		data = append(data, series)
		pcaNames = append(pcaNames, fmt.Sprintf("pca%d", pca))
	}

	outcome := make([]statmodel.Dtype, 0, len(samples))
	constants := make([]statmodel.Dtype, 0, len(samples))
	for _, si := range samples {
		if si.isTraining {
			if si.isCase {
				outcome = append(outcome, 1)
			} else {
				outcome = append(outcome, 0)
			}
			constants = append(constants, 1)
		}
	}
	data = append([][]statmodel.Dtype{outcome, constants}, data...)
	names := append([]string{"outcome", "constants"}, pcaNames...)
	dataset := statmodel.NewDataset(data, names)

	model, err := glm.NewGLM(dataset, "outcome", names[1:], glmConfig)
	if err != nil {
		log.Printf("%s", err)
		return func([][]float64) float64 { return math.NaN() }
	}
	resultNull := model.Fit()
	logNull := resultNull.LogLike()

	return func(snpCols [][]float64) (p float64) {
		defer func() {
			if recover() != nil {
				// typically "matrix singular or near-singular with condition number +Inf"
				p = math.NaN()
			}
		}()

		snpData := make([][]statmodel.Dtype, 0, len(snpCols))
		snpNames := make([]string, 0, len(snpCols))
		for colidx, col := range snpCols {
			series := make([]statmodel.Dtype, 0, len(samples))
			for i, si := range samples {
				if si.isTraining {
					series = append(series, col[i])
				}
			}
			snpData = append(snpData, series)
			snpNames = append(snpNames, fmt.Sprintf("snp%d", colidx))
		}

		data := append(append([][]statmodel.Dtype{data[0]}, snpData...), data[1:]...)
		names := append(append([]string{"outcome"}, snpNames...), names[1:]...)
		dataset := statmodel.NewDataset(data, names)

		model, err := glm.NewGLM(dataset, "outcome", names[1:], glmConfig)
		if err != nil {
			return math.NaN()
		}
		resultFull := model.Fit()
		logFull := resultFull.LogLike()
		dist := distuv.ChiSquared{K: float64(len(snpCols))}
		return dist.Survival(-2 * (logNull - logFull))
	}
}
