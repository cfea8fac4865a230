package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("KNeighborsClassifier", "Predict")
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Predict", nf.Method)

	s.SetDimensions(3, 10)
	s.SetFitted()
	assert.NoError(t, s.CheckPredictInput("m", mat.NewDense(2, 3, nil)))

	err = s.CheckPredictInput("m", mat.NewDense(2, 4, nil))
	var dim *errors.DimensionError
	require.True(t, errors.As(err, &dim))
	assert.Equal(t, 3, dim.Expected)

	s.Reset()
	f, n := s.GetDimensions()
	assert.Zero(t, f)
	assert.Zero(t, n)
	assert.False(t, s.IsFitted())
}

func TestCheckXY(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})

	_, _, y, err := CheckXY("Fit", X, VectorToColumn([]float64{0, 1, 0}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0}, y)

	_, _, _, err = CheckXY("Fit", X, VectorToColumn([]float64{0, 1}))
	assert.Error(t, err)

	_, _, _, err = CheckXY("Fit", X, nil)
	assert.Error(t, err)
}

func TestUniqueSortedAndIndex(t *testing.T) {
	classes := UniqueSorted([]float64{2, 0, 2, 1, 0})
	assert.Equal(t, []float64{0, 1, 2}, classes)
	assert.Equal(t, map[float64]int{0: 0, 1: 1, 2: 2}, ClassIndex(classes))
}

func TestRowToSlice(t *testing.T) {
	X := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	assert.Equal(t, []float64{4, 5, 6}, RowToSlice(X, 1, nil))
	assert.Equal(t, []float64{1, 4}, RowToSlice(X.T(), 0, make([]float64, 5)))
}
