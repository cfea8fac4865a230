package model

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// CheckXY validates the shapes of a supervised training set and returns the
// target as a slice.
func CheckXY(op string, X, y mat.Matrix) (rows, cols int, target []float64, err error) {
	rows, cols = X.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, nil, errors.Wrapf(errors.ErrEmptyData, "%s", op)
	}
	if y == nil {
		return 0, 0, nil, errors.NewValueError(op, "y is required")
	}
	yRows, yCols := y.Dims()
	if yRows != rows {
		return 0, 0, nil, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, nil, errors.NewDimensionError(op, 1, yCols, 1)
	}
	return rows, cols, ColumnToSlice(y, 0), nil
}

// ColumnToSlice copies column j of m into a new slice.
func ColumnToSlice(m mat.Matrix, j int) []float64 {
	rows, _ := m.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = m.At(i, j)
	}
	return out
}

// RowToSlice copies row i of m into dst, allocating when dst is too short.
func RowToSlice(m mat.Matrix, i int, dst []float64) []float64 {
	_, cols := m.Dims()
	if cap(dst) < cols {
		dst = make([]float64, cols)
	}
	dst = dst[:cols]
	if rv, ok := m.(mat.RawRowViewer); ok {
		copy(dst, rv.RawRowView(i))
		return dst
	}
	for j := range dst {
		dst[j] = m.At(i, j)
	}
	return dst
}

// UniqueSorted returns the distinct values of labels in ascending order.
func UniqueSorted(labels []float64) []float64 {
	seen := make(map[float64]struct{}, len(labels))
	out := make([]float64, 0)
	for _, v := range labels {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// ClassIndex maps each class label to its position in classes.
func ClassIndex(classes []float64) map[float64]int {
	idx := make(map[float64]int, len(classes))
	for i, c := range classes {
		idx[c] = i
	}
	return idx
}

// VectorToColumn wraps values as an n×1 matrix.
func VectorToColumn(values []float64) *mat.Dense {
	return mat.NewDense(len(values), 1, values)
}
