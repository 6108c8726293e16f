package asaph

import (
	"fmt"

	"github.com/vertgenlab/gonomics/vcf"
)

// genotypeClass is a diploid genotype call reduced to ref/alt.
type genotypeClass int8

const (
	gtMissing genotypeClass = iota - 1
	gtHomRef
	gtHet
	gtHomAlt
)

// snpRecord is one variant site with a genotype call per sample, in
// the sample order of the VCF header.
type snpRecord struct {
	Chrom   string
	Pos     int
	Ref     string
	Alt     string
	Classes []genotypeClass
}

type vcfReadOpts struct {
	snpsOnly bool
	passOnly bool
}

// streamVCF reads variant records from fnm (possibly gzipped),
// reduces each to per-sample genotype classes, and passes them to fn.
// onSamples is called once with the header's sample IDs before the
// first record. Sample IDs are also returned.
func streamVCF(fnm string, opts vcfReadOpts, onSamples func([]string) error, fn func(snpRecord) error) ([]string, error) {
	records, header := vcf.GoReadToChan(fnm)
	samples := make([]string, len(header.Samples))
	for name, i := range header.Samples {
		if i < 0 || i >= len(samples) {
			return nil, fmt.Errorf("%s: sample %q has out-of-range header index %d", fnm, name, i)
		}
		samples[i] = name
	}
	if onSamples != nil {
		err := onSamples(samples)
		if err != nil {
			return nil, err
		}
	}
	for v := range records {
		if opts.passOnly && v.Filter != "PASS" && v.Filter != "." && v.Filter != "" {
			continue
		}
		if opts.snpsOnly && !isSNP(v) {
			continue
		}
		if len(v.Samples) != len(samples) {
			return nil, fmt.Errorf("%s: %s:%d has %d genotype columns, header has %d samples", fnm, v.Chr, v.Pos, len(v.Samples), len(samples))
		}
		rec := snpRecord{
			Chrom:   v.Chr,
			Pos:     v.Pos,
			Ref:     v.Ref,
			Alt:     altLabel(v.Alt),
			Classes: make([]genotypeClass, len(v.Samples)),
		}
		for i, s := range v.Samples {
			rec.Classes[i] = classify(s.Alleles)
		}
		err := fn(rec)
		if err != nil {
			return nil, err
		}
	}
	return samples, nil
}

// classify reduces a genotype to hom-ref/het/hom-alt. Multi-allelic
// calls count any non-reference allele as alt. Any missing allele
// makes the whole call missing.
func classify(alleles []int16) genotypeClass {
	if len(alleles) == 0 {
		return gtMissing
	}
	alt := 0
	for _, a := range alleles {
		if a < 0 {
			return gtMissing
		}
		if a > 0 {
			alt++
		}
	}
	switch alt {
	case 0:
		return gtHomRef
	case len(alleles):
		return gtHomAlt
	default:
		return gtHet
	}
}

func isSNP(v vcf.Vcf) bool {
	if len(v.Ref) != 1 {
		return false
	}
	for _, alt := range v.Alt {
		if len(alt) != 1 || alt == "*" {
			return false
		}
	}
	return true
}

func altLabel(alts []string) string {
	label := ""
	for i, alt := range alts {
		if i > 0 {
			label += ","
		}
		label += alt
	}
	return label
}
