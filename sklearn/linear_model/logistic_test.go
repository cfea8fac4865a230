package linear_model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

func TestLogisticRegressionBinary(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr := NewLogisticRegression(WithLRMaxIter(1000), WithLRTol(1e-6))
	require.NoError(t, lr.Fit(X, y))
	assert.Equal(t, 1.0, lr.Score(X, y))
	assert.Len(t, lr.coef_, 1)

	pred, err := lr.Predict(mat.NewDense(2, 2, []float64{1, 1, 3, 3}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, mat.Col(nil, 0, pred))

	proba, err := lr.PredictProba(X)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		row := mat.Row(nil, i, proba)
		assert.InDelta(t, 1.0, floats.Sum(row), 1e-9)
	}
	assert.Less(t, proba.At(0, 1), 0.5)
	assert.Greater(t, proba.At(5, 1), 0.5)
}

func TestLogisticRegressionMulticlass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
		4, 4,
		4, 5,
		5, 4,
	})
	y := mat.NewDense(9, 1, []float64{3, 3, 3, 7, 7, 7, 8, 8, 8})

	lr := NewLogisticRegression(WithLRMaxIter(1000), WithLRC(10))
	require.NoError(t, lr.Fit(X, y))
	assert.Equal(t, []float64{3, 7, 8}, lr.Classes())
	assert.Len(t, lr.coef_, 3)
	assert.GreaterOrEqual(t, lr.Score(X, y), 8.0/9.0)

	proba, err := lr.PredictProba(X)
	require.NoError(t, err)
	_, cols := proba.Dims()
	assert.Equal(t, 3, cols)
	for i := 0; i < 9; i++ {
		row := mat.Row(nil, i, proba)
		assert.InDelta(t, 1.0, floats.Sum(row), 1e-9)
		assert.GreaterOrEqual(t, floats.Min(row), 0.0)
	}
}

func TestLogisticRegressionRegularization(t *testing.T) {
	X := mat.NewDense(10, 5, []float64{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
		0, 0, 0, 0, 1,
		1, 1, 0, 0, 0,
		0, 1, 1, 0, 0,
		0, 0, 1, 1, 0,
		0, 0, 0, 1, 1,
		1, 0, 0, 0, 1,
	})
	y := mat.NewDense(10, 1, []float64{0, 0, 0, 1, 1, 0, 0, 1, 1, 1})

	strong := NewLogisticRegression(WithLRC(0.01), WithLRMaxIter(1000))
	require.NoError(t, strong.Fit(X, y))
	weak := NewLogisticRegression(WithLRC(100), WithLRMaxIter(1000))
	require.NoError(t, weak.Fit(X, y))

	assert.Less(t, floats.Norm(strong.coef_[0], 2), floats.Norm(weak.coef_[0], 2))
}

func TestLogisticRegressionConvergenceWarning(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	X := mat.NewDense(6, 2, []float64{0, 0, 0, 1, 1, 0, 3, 3, 3, 4, 4, 3})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	lr := NewLogisticRegression(WithLRMaxIter(1), WithLRTol(1e-12))
	require.NoError(t, lr.Fit(X, y))
	assert.True(t, lr.state.IsFitted())

	require.NotEmpty(t, warnings)
	var cw *errors.ConvergenceWarning
	assert.True(t, errors.As(warnings[0], &cw))
}

func TestLogisticRegressionErrors(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	_, err := NewLogisticRegression().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = NewLogisticRegression().Fit(X, mat.NewDense(2, 1, []float64{1, 1}))
	assert.Error(t, err)

	err = NewLogisticRegression(WithLRC(0)).Fit(X, mat.NewDense(2, 1, []float64{0, 1}))
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))

	params := NewLogisticRegression().GetParams()
	assert.Equal(t, 1.0, params["C"])
	assert.Equal(t, 100, params["max_iter"])
}
