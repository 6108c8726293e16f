package asaph

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/klauspost/pgzip"
	"gonum.org/v1/gonum/mat"
)

// Encoding selects how genotype calls are turned into numeric feature
// columns.
type Encoding int8

const (
	EncodingCounts Encoding = iota
	EncodingCategorical
	EncodingHashed
)

func (e Encoding) String() string {
	switch e {
	case EncodingCounts:
		return "counts"
	case EncodingCategorical:
		return "categorical"
	case EncodingHashed:
		return "hashed"
	default:
		return fmt.Sprintf("invalid(%d)", int8(e))
	}
}

func parseEncoding(s string) (Encoding, error) {
	switch s {
	case "counts":
		return EncodingCounts, nil
	case "categorical":
		return EncodingCategorical, nil
	case "hashed":
		return EncodingHashed, nil
	default:
		return 0, fmt.Errorf("invalid encoding %q (want counts, categorical, or hashed)", s)
	}
}

// columnsPerSNP returns the number of feature columns each SNP
// occupies, or 0 for encodings whose columns are not per-SNP.
func (e Encoding) columnsPerSNP() int {
	switch e {
	case EncodingCounts:
		return 2
	case EncodingCategorical:
		return 3
	default:
		return 0
	}
}

// Labeled reports whether matrix columns carry per-SNP labels.
func (e Encoding) Labeled() bool { return e.columnsPerSNP() > 0 }

// ColumnKind identifies which of a SNP's feature columns a labeled
// column is.
type ColumnKind int8

const (
	ColRefCount ColumnKind = iota
	ColAltCount
	ColHomRef
	ColHet
	ColHomAlt
)

func (k ColumnKind) String() string {
	switch k {
	case ColRefCount:
		return "ref-count"
	case ColAltCount:
		return "alt-count"
	case ColHomRef:
		return "hom-ref"
	case ColHet:
		return "het"
	case ColHomAlt:
		return "hom-alt"
	default:
		return fmt.Sprintf("invalid(%d)", int8(k))
	}
}

// ColumnInfo labels one feature column of a counts or categorical
// matrix.
type ColumnInfo struct {
	Chrom string
	Pos   int
	Ref   string
	Alt   string
	Kind  ColumnKind
}

// SampleRow holds one sample's feature values.
type SampleRow struct {
	Name   string
	Values []int16
}

// MatrixMeta describes a feature matrix stream.
type MatrixMeta struct {
	Encoding       Encoding
	HashDimensions int
	SampleIDs      []string
}

// MatrixEntry is one gob message in a feature matrix stream. A stream
// starts with an entry carrying Meta; columns and rows may arrive in
// the same entry or in any number of subsequent entries.
type MatrixEntry struct {
	Meta    *MatrixMeta
	Columns []ColumnInfo
	Rows    []SampleRow
}

// FeatureMatrix is a fully assembled samples x features matrix.
type FeatureMatrix struct {
	Encoding       Encoding
	HashDimensions int
	SampleIDs      []string
	Columns        []ColumnInfo
	Rows           [][]int16 // indexed like SampleIDs
}

// DecodeMatrix decodes a gob feature matrix stream, calling fn for
// each entry.
func DecodeMatrix(rdr io.Reader, gz bool, fn func(*MatrixEntry) error) error {
	zr := bufio.NewReaderSize(rdr, 1<<22)
	var in io.Reader = zr
	if gz {
		gzr, err := pgzip.NewReader(zr)
		if err != nil {
			return err
		}
		defer gzr.Close()
		in = gzr
	}
	dec := gob.NewDecoder(in)
	for {
		var ent MatrixEntry
		err := dec.Decode(&ent)
		if err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("gob decode: %w", err)
		}
		err = fn(&ent)
		if err != nil {
			return err
		}
	}
}

// ReadFeatureMatrix assembles a complete matrix from a gob stream.
func ReadFeatureMatrix(rdr io.Reader, gz bool) (*FeatureMatrix, error) {
	var m *FeatureMatrix
	// gob turns an empty row into a nil one, so a zero-column matrix
	// cannot use m.Rows[i]==nil to mean "not arrived yet".
	var seen []bool
	rowidx := map[string]int{}
	err := DecodeMatrix(rdr, gz, func(ent *MatrixEntry) error {
		if ent.Meta != nil {
			if m != nil {
				return fmt.Errorf("invalid input: contains multiple matrix metadata entries")
			}
			m = &FeatureMatrix{
				Encoding:       ent.Meta.Encoding,
				HashDimensions: ent.Meta.HashDimensions,
				SampleIDs:      ent.Meta.SampleIDs,
				Rows:           make([][]int16, len(ent.Meta.SampleIDs)),
			}
			seen = make([]bool, len(ent.Meta.SampleIDs))
			for i, id := range ent.Meta.SampleIDs {
				rowidx[id] = i
			}
		}
		if m == nil {
			return fmt.Errorf("invalid input: columns/rows precede matrix metadata")
		}
		m.Columns = append(m.Columns, ent.Columns...)
		for _, row := range ent.Rows {
			i, ok := rowidx[row.Name]
			if !ok {
				return fmt.Errorf("invalid input: row for unlisted sample %q", row.Name)
			}
			if seen[i] {
				return fmt.Errorf("invalid input: duplicate row for sample %q", row.Name)
			}
			seen[i] = true
			m.Rows[i] = row.Values
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("invalid input: no matrix metadata found")
	}
	ncols := m.NumColumns()
	for i, row := range m.Rows {
		if !seen[i] {
			return nil, fmt.Errorf("invalid input: missing row for sample %q", m.SampleIDs[i])
		}
		if len(row) != ncols {
			return nil, fmt.Errorf("invalid input: sample %q has %d values, want %d", m.SampleIDs[i], len(row), ncols)
		}
	}
	return m, nil
}

// NumColumns returns the width of the matrix.
func (m *FeatureMatrix) NumColumns() int {
	if m.Encoding == EncodingHashed {
		return m.HashDimensions
	}
	return len(m.Columns)
}

// NumSNPs returns the number of variant sites represented, or 0 for
// hashed matrices.
func (m *FeatureMatrix) NumSNPs() int {
	if n := m.Encoding.columnsPerSNP(); n > 0 {
		return len(m.Columns) / n
	}
	return 0
}

// snpColumns returns the half-open column range of SNP i.
func (m *FeatureMatrix) snpColumns(i int) (lo, hi int) {
	n := m.Encoding.columnsPerSNP()
	return i * n, (i + 1) * n
}

// genotypeClass recovers the genotype call of sample row at SNP i
// from its feature columns.
func (m *FeatureMatrix) genotypeClass(row, i int) genotypeClass {
	lo, _ := m.snpColumns(i)
	vals := m.Rows[row]
	switch m.Encoding {
	case EncodingCounts:
		ref, alt := vals[lo], vals[lo+1]
		switch {
		case ref+alt == 0:
			return gtMissing
		case alt == 0:
			return gtHomRef
		case ref == 0:
			return gtHomAlt
		default:
			return gtHet
		}
	case EncodingCategorical:
		switch {
		case vals[lo] != 0:
			return gtHomRef
		case vals[lo+1] != 0:
			return gtHet
		case vals[lo+2] != 0:
			return gtHomAlt
		default:
			return gtMissing
		}
	default:
		return gtMissing
	}
}

// Dense converts the matrix to float64 for gonum.
func (m *FeatureMatrix) Dense() *mat.Dense {
	rows, cols := len(m.Rows), m.NumColumns()
	data := make([]float64, rows*cols)
	for i, row := range m.Rows {
		for j, v := range row {
			data[i*cols+j] = float64(v)
		}
	}
	return mat.NewDense(rows, cols, data)
}

// rowBatchSize bounds the size of individual gob messages when
// writing a matrix.
const rowBatchSize = 64

// WriteGob writes the matrix as a gob stream: one metadata+columns
// entry followed by batches of sample rows.
func (m *FeatureMatrix) WriteGob(w io.Writer) error {
	enc := gob.NewEncoder(w)
	err := enc.Encode(MatrixEntry{
		Meta: &MatrixMeta{
			Encoding:       m.Encoding,
			HashDimensions: m.HashDimensions,
			SampleIDs:      m.SampleIDs,
		},
		Columns: m.Columns,
	})
	if err != nil {
		return err
	}
	for lo := 0; lo < len(m.Rows); lo += rowBatchSize {
		hi := lo + rowBatchSize
		if hi > len(m.Rows) {
			hi = len(m.Rows)
		}
		batch := make([]SampleRow, 0, hi-lo)
		for i := lo; i < hi; i++ {
			batch = append(batch, SampleRow{Name: m.SampleIDs[i], Values: m.Rows[i]})
		}
		err = enc.Encode(MatrixEntry{Rows: batch})
		if err != nil {
			return err
		}
	}
	return nil
}

// concatMatrices combines matrices over the same sample set. Counts
// and categorical blocks contribute disjoint column ranges, appended
// in argument order; hashed blocks share one column space and are
// summed. Sample rows are aligned by name, using the first block's
// order.
func concatMatrices(blocks []*FeatureMatrix) (*FeatureMatrix, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("nothing to concatenate")
	}
	first := blocks[0]
	out := &FeatureMatrix{
		Encoding:       first.Encoding,
		HashDimensions: first.HashDimensions,
		SampleIDs:      first.SampleIDs,
		Rows:           make([][]int16, len(first.SampleIDs)),
	}
	rowidx := map[string]int{}
	for i, id := range first.SampleIDs {
		rowidx[id] = i
	}
	if out.Encoding == EncodingHashed {
		for i := range out.Rows {
			out.Rows[i] = make([]int16, out.HashDimensions)
		}
	}
	for _, b := range blocks {
		if b.Encoding != out.Encoding {
			return nil, fmt.Errorf("cannot combine %s matrix with %s matrix", b.Encoding, out.Encoding)
		}
		if len(b.SampleIDs) != len(out.SampleIDs) {
			return nil, fmt.Errorf("sample sets differ: %d samples vs %d", len(b.SampleIDs), len(out.SampleIDs))
		}
		if b.Encoding == EncodingHashed && b.HashDimensions != out.HashDimensions {
			return nil, fmt.Errorf("hash dimensions differ: %d vs %d", b.HashDimensions, out.HashDimensions)
		}
		out.Columns = append(out.Columns, b.Columns...)
		for bi, id := range b.SampleIDs {
			i, ok := rowidx[id]
			if !ok {
				return nil, fmt.Errorf("sample %q not present in first input", id)
			}
			if out.Encoding == EncodingHashed {
				for j, v := range b.Rows[bi] {
					out.Rows[i][j] += v
				}
			} else {
				out.Rows[i] = append(out.Rows[i], b.Rows[bi]...)
			}
		}
	}
	return out, nil
}
