package asaph

import (
	"fmt"

	"github.com/spaolacci/murmur3"
)

// matrixBuilder accumulates encoded feature columns for a fixed set
// of samples, one variant site at a time.
type matrixBuilder struct {
	encoding Encoding
	hashDims int
	samples  []string
	columns  []ColumnInfo
	rows     [][]int16
	snps     int
}

func newMatrixBuilder(encoding Encoding, hashDims int, samples []string) *matrixBuilder {
	b := &matrixBuilder{
		encoding: encoding,
		hashDims: hashDims,
		samples:  samples,
		rows:     make([][]int16, len(samples)),
	}
	if encoding == EncodingHashed {
		for i := range b.rows {
			b.rows[i] = make([]int16, hashDims)
		}
	}
	return b
}

func (b *matrixBuilder) Add(rec snpRecord) error {
	if len(rec.Classes) != len(b.samples) {
		return fmt.Errorf("%s:%d has %d genotypes, want %d", rec.Chrom, rec.Pos, len(rec.Classes), len(b.samples))
	}
	switch b.encoding {
	case EncodingCounts:
		b.addCounts(rec)
	case EncodingCategorical:
		b.addCategorical(rec)
	case EncodingHashed:
		b.addHashed(rec)
	default:
		return fmt.Errorf("invalid encoding %d", b.encoding)
	}
	b.snps++
	return nil
}

// addCounts appends two columns: copies of the ref allele and copies
// of the alt allele. Missing calls contribute 0,0.
func (b *matrixBuilder) addCounts(rec snpRecord) {
	b.columns = append(b.columns,
		ColumnInfo{Chrom: rec.Chrom, Pos: rec.Pos, Ref: rec.Ref, Alt: rec.Alt, Kind: ColRefCount},
		ColumnInfo{Chrom: rec.Chrom, Pos: rec.Pos, Ref: rec.Ref, Alt: rec.Alt, Kind: ColAltCount},
	)
	for i, class := range rec.Classes {
		var ref, alt int16
		switch class {
		case gtHomRef:
			ref, alt = 2, 0
		case gtHet:
			ref, alt = 1, 1
		case gtHomAlt:
			ref, alt = 0, 2
		}
		b.rows[i] = append(b.rows[i], ref, alt)
	}
}

// addCategorical appends three 0/1 columns, one per genotype class.
// Missing calls contribute all zeroes.
func (b *matrixBuilder) addCategorical(rec snpRecord) {
	b.columns = append(b.columns,
		ColumnInfo{Chrom: rec.Chrom, Pos: rec.Pos, Ref: rec.Ref, Alt: rec.Alt, Kind: ColHomRef},
		ColumnInfo{Chrom: rec.Chrom, Pos: rec.Pos, Ref: rec.Ref, Alt: rec.Alt, Kind: ColHet},
		ColumnInfo{Chrom: rec.Chrom, Pos: rec.Pos, Ref: rec.Ref, Alt: rec.Alt, Kind: ColHomAlt},
	)
	for i, class := range rec.Classes {
		var onehot [3]int16
		if class >= gtHomRef {
			onehot[class] = 1
		}
		b.rows[i] = append(b.rows[i], onehot[0], onehot[1], onehot[2])
	}
}

// addHashed folds the site into a fixed number of columns using the
// hashing trick: each (site, genotype class) label hashes to one
// column and a sign.
func (b *matrixBuilder) addHashed(rec snpRecord) {
	for class := gtHomRef; class <= gtHomAlt; class++ {
		col, sign := hashColumn(rec.Chrom, rec.Pos, class, b.hashDims)
		for i, c := range rec.Classes {
			if c == class {
				b.rows[i][col] += sign
			}
		}
	}
}

func hashColumn(chrom string, pos int, class genotypeClass, dims int) (int, int16) {
	h := murmur3.Sum64([]byte(fmt.Sprintf("%s:%d:%d", chrom, pos, class)))
	col := int(h % uint64(dims))
	if h&(1<<63) != 0 {
		return col, -1
	}
	return col, 1
}

func (b *matrixBuilder) Matrix() *FeatureMatrix {
	return &FeatureMatrix{
		Encoding:       b.encoding,
		HashDimensions: b.hashDims,
		SampleIDs:      b.samples,
		Columns:        b.columns,
		Rows:           b.rows,
	}
}
