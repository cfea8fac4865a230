package neural_network

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

func blobs(perClass, nClasses int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(3))
	n := perClass * nClasses
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for c := 0; c < nClasses; c++ {
		for i := 0; i < perClass; i++ {
			r := c*perClass + i
			X.Set(r, 0, float64(c)*2+rng.NormFloat64()*0.2)
			X.Set(r, 1, float64(c%2)*2+rng.NormFloat64()*0.2)
			y.Set(r, 0, float64(c))
		}
	}
	return X, y
}

func accuracy(pred, y mat.Matrix) float64 {
	rows, _ := y.Dims()
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

func TestMLPClassifierBinary(t *testing.T) {
	errors.SetWarningHandler(nil)
	X, y := blobs(30, 2)

	m := NewMLPClassifier(WithMaxIter(300), WithLearningRate(0.01), WithRandomState(42))
	require.NoError(t, m.Fit(X, y))

	pred, err := m.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, 1.0, accuracy(pred, y))

	proba, err := m.PredictProba(X)
	require.NoError(t, err)
	_, cols := proba.Dims()
	assert.Equal(t, 2, cols)
	assert.InDelta(t, 1.0, floats.Sum(mat.Row(nil, 0, proba)), 1e-12)

	curve := m.LossCurve()
	require.NotEmpty(t, curve)
	assert.Less(t, curve[len(curve)-1], curve[0])
	assert.Equal(t, len(curve), m.NIter())
}

func TestMLPClassifierMulticlass(t *testing.T) {
	errors.SetWarningHandler(nil)
	X, y := blobs(20, 3)

	m := NewMLPClassifier(WithHiddenLayerSizes(16, 8), WithMaxIter(500), WithLearningRate(0.01), WithRandomState(1))
	require.NoError(t, m.Fit(X, y))
	pred, err := m.Predict(X)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, accuracy(pred, y), 0.95)

	proba, err := m.PredictProba(X)
	require.NoError(t, err)
	rows, cols := proba.Dims()
	require.Equal(t, 3, cols)
	for i := 0; i < rows; i++ {
		assert.InDelta(t, 1.0, floats.Sum(mat.Row(nil, i, proba)), 1e-9)
	}
}

func TestMLPIsDeterministicWithSeed(t *testing.T) {
	errors.SetWarningHandler(nil)
	X, y := blobs(10, 2)
	a := NewMLPClassifier(WithMaxIter(20), WithRandomState(7))
	b := NewMLPClassifier(WithMaxIter(20), WithRandomState(7))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	assert.Equal(t, a.LossCurve(), b.LossCurve())
}

func TestMLPRegressor(t *testing.T) {
	errors.SetWarningHandler(nil)
	n := 50
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := float64(i)/float64(n)*2 - 1
		X.Set(i, 0, x)
		y.Set(i, 0, 3*x+1)
	}

	m := NewMLPRegressor(WithMaxIter(500), WithLearningRate(0.01), WithRandomState(42))
	require.NoError(t, m.Fit(X, y))
	pred, err := m.Predict(X)
	require.NoError(t, err)

	var mse float64
	for i := 0; i < n; i++ {
		d := pred.At(i, 0) - y.At(i, 0)
		mse += d * d
	}
	mse /= float64(n)
	assert.Less(t, mse, 0.05)
	assert.False(t, math.IsNaN(m.LossCurve()[0]))
}

func TestMLPValidation(t *testing.T) {
	X, y := blobs(3, 2)
	var vErr *errors.ValidationError
	assert.True(t, errors.As(NewMLPClassifier(WithMaxIter(0)).Fit(X, y), &vErr))
	assert.True(t, errors.As(NewMLPRegressor(WithHiddenLayerSizes(0)).Fit(X, y), &vErr))

	_, err := NewMLPRegressor().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	params := NewMLPClassifier().GetParams()
	assert.Equal(t, []int{100}, params["hidden_layer_sizes"])
	assert.Equal(t, "adam", params["solver"])
}

func TestMLPRegressorDivergingLossFails(t *testing.T) {
	X, _ := blobs(5, 2)
	rows, _ := X.Dims()
	// 二乗誤差が float64 を溢れる目標値
	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		y.Set(i, 0, 1e200)
	}

	m := NewMLPRegressor(WithRandomState(0), WithMaxIter(5))
	err := m.Fit(X, y)
	require.Error(t, err)
	var ni *errors.NumericalInstabilityError
	require.True(t, errors.As(err, &ni))
	assert.Equal(t, "MLPRegressor.fit", ni.Operation)
	assert.Equal(t, 1, ni.Iteration)

	_, err = m.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}
