package ensemble

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/core/model"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// blobs returns nClasses well separated Gaussian clusters of size perClass.
func blobs(perClass, nClasses int, seed int64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(seed))
	n := perClass * nClasses
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for c := 0; c < nClasses; c++ {
		for i := 0; i < perClass; i++ {
			r := c*perClass + i
			X.Set(r, 0, float64(c)*5+rng.NormFloat64()*0.5)
			X.Set(r, 1, float64(c%2)*5+rng.NormFloat64()*0.5)
			y.Set(r, 0, float64(c))
		}
	}
	return X, y
}

func accuracy(t *testing.T, m model.Predictor, X, y mat.Matrix) float64 {
	t.Helper()
	pred, err := m.Predict(X)
	require.NoError(t, err)
	rows, _ := y.Dims()
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

func assertProbaRows(t *testing.T, proba mat.Matrix, k int) {
	t.Helper()
	rows, cols := proba.Dims()
	require.Equal(t, k, cols)
	for i := 0; i < rows; i++ {
		row := mat.Row(nil, i, proba)
		assert.InDelta(t, 1.0, floats.Sum(row), 1e-9)
		assert.GreaterOrEqual(t, floats.Min(row), 0.0)
	}
}

func TestRandomForestClassifier(t *testing.T) {
	X, y := blobs(30, 3, 1)

	rf := NewRandomForestClassifier(
		WithForestNEstimators(25),
		WithForestRandomState(42),
		WithForestNJobs(4),
	)
	require.NoError(t, rf.Fit(X, y))
	assert.GreaterOrEqual(t, accuracy(t, rf, X, y), 0.95)
	assert.Equal(t, []float64{0, 1, 2}, rf.Classes())

	proba, err := rf.PredictProba(X)
	require.NoError(t, err)
	assertProbaRows(t, proba, 3)

	imp := rf.GetFeatureImportances()
	assert.InDelta(t, 1.0, floats.Sum(imp), 1e-9)
}

func TestRandomForestIsReproducibleAcrossWorkers(t *testing.T) {
	X, y := blobs(20, 2, 2)

	serial := NewRandomForestClassifier(WithForestNEstimators(10), WithForestRandomState(7), WithForestNJobs(1))
	require.NoError(t, serial.Fit(X, y))
	concurrent := NewRandomForestClassifier(WithForestNEstimators(10), WithForestRandomState(7), WithForestNJobs(-1))
	require.NoError(t, concurrent.Fit(X, y))

	a, err := serial.PredictProba(X)
	require.NoError(t, err)
	b, err := concurrent.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a, b))
}

func TestRandomForestRegressor(t *testing.T) {
	n := 60
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := float64(i) / 10
		X.Set(i, 0, x)
		y.Set(i, 0, 2*x+1)
	}
	rf := NewRandomForestRegressor(WithForestNEstimators(20), WithForestRandomState(42))
	require.NoError(t, rf.Fit(X, y))

	pred, err := rf.Predict(X)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		assert.InDelta(t, y.At(i, 0), pred.At(i, 0), 0.5)
	}
	assert.Equal(t, "all", rf.GetParams()["max_features"])
}

func TestForestValidation(t *testing.T) {
	X, y := blobs(5, 2, 3)
	err := NewRandomForestClassifier(WithForestNEstimators(0)).Fit(X, y)
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))

	err = NewRandomForestRegressor(WithForestMaxFeatures("half")).Fit(X, y)
	assert.True(t, errors.As(err, &vErr))
}

func TestGradientBoostingClassifierBinary(t *testing.T) {
	X, y := blobs(30, 2, 4)
	gb := NewGradientBoostingClassifier(WithGBNEstimators(30), WithGBRandomState(42))
	require.NoError(t, gb.Fit(X, y))
	assert.Equal(t, 1.0, accuracy(t, gb, X, y))

	proba, err := gb.PredictProba(X)
	require.NoError(t, err)
	assertProbaRows(t, proba, 2)
	assert.Greater(t, proba.At(0, 0), 0.9)
}

func TestGradientBoostingClassifierMulticlass(t *testing.T) {
	X, y := blobs(25, 3, 5)
	gb := NewGradientBoostingClassifier(WithGBNEstimators(30), WithGBRandomState(42))
	require.NoError(t, gb.Fit(X, y))
	assert.GreaterOrEqual(t, accuracy(t, gb, X, y), 0.95)

	proba, err := gb.PredictProba(X)
	require.NoError(t, err)
	assertProbaRows(t, proba, 3)
}

func TestGradientBoostingClassifierSingleClass(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{1, 1, 1})
	assert.Error(t, NewGradientBoostingClassifier().Fit(X, y))
}

func TestGradientBoostingRegressor(t *testing.T) {
	n := 80
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := float64(i) / 10
		X.Set(i, 0, x)
		y.Set(i, 0, math.Sin(x))
	}
	gb := NewGradientBoostingRegressor(WithGBRandomState(42))
	require.NoError(t, gb.Fit(X, y))

	pred, err := gb.Predict(X)
	require.NoError(t, err)
	var sse float64
	for i := 0; i < n; i++ {
		d := pred.At(i, 0) - y.At(i, 0)
		sse += d * d
	}
	assert.Less(t, sse/float64(n), 0.01)

	_, err = NewGradientBoostingRegressor().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}
