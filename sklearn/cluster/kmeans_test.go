package cluster

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

func threeBlobs(perCluster int) *mat.Dense {
	rng := rand.New(rand.NewSource(5))
	centers := [][]float64{{0, 0}, {10, 0}, {0, 10}}
	X := mat.NewDense(perCluster*len(centers), 2, nil)
	for c, center := range centers {
		for i := 0; i < perCluster; i++ {
			r := c*perCluster + i
			X.Set(r, 0, center[0]+rng.NormFloat64()*0.5)
			X.Set(r, 1, center[1]+rng.NormFloat64()*0.5)
		}
	}
	return X
}

func TestKMeansRecoversBlobs(t *testing.T) {
	X := threeBlobs(20)
	km := NewKMeans(WithKMeansNClusters(3), WithKMeansRandomState(42))
	require.NoError(t, km.Fit(X, nil))

	labels := km.Labels()
	require.Len(t, labels, 60)
	for c := 0; c < 3; c++ {
		first := labels[c*20]
		for i := 1; i < 20; i++ {
			assert.Equal(t, first, labels[c*20+i])
		}
	}
	assert.NotEqual(t, labels[0], labels[20])
	assert.NotEqual(t, labels[0], labels[40])
	assert.NotEqual(t, labels[20], labels[40])

	centers := km.ClusterCenters()
	rows, cols := centers.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, 3, km.NClusters())
	assert.Greater(t, km.Inertia(), 0.0)
	assert.Less(t, km.Inertia(), 60.0)
	assert.GreaterOrEqual(t, km.NIter(), 1)

	pred, err := km.Predict(X)
	require.NoError(t, err)
	for i, l := range labels {
		assert.Equal(t, float64(l), pred.At(i, 0))
	}

	dist, err := km.Transform(X)
	require.NoError(t, err)
	_, dCols := dist.Dims()
	assert.Equal(t, 3, dCols)
}

func TestKMeansInertiaMatchesLabels(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 10, 11})
	km := NewKMeans(WithKMeansNClusters(2), WithKMeansRandomState(0))
	require.NoError(t, km.Fit(X, nil))
	// 中心は 0.5 と 10.5
	assert.InDelta(t, 1.0, km.Inertia(), 1e-12)
}

func TestKMeansReproducible(t *testing.T) {
	X := threeBlobs(10)
	a := NewKMeans(WithKMeansNClusters(3), WithKMeansRandomState(7), WithKMeansInit("random"))
	b := NewKMeans(WithKMeansNClusters(3), WithKMeansRandomState(7), WithKMeansInit("random"), WithKMeansNJobs(4))
	require.NoError(t, a.Fit(X, nil))
	require.NoError(t, b.Fit(X, nil))
	assert.Equal(t, a.Labels(), b.Labels())
	assert.Equal(t, a.Inertia(), b.Inertia())
}

func TestKMeansFitPredict(t *testing.T) {
	X := threeBlobs(5)
	km := NewKMeans(WithKMeansNClusters(3), WithKMeansRandomState(1))
	pred, err := km.FitPredict(X)
	require.NoError(t, err)
	rows, _ := pred.Dims()
	assert.Equal(t, 15, rows)
}

func TestKMeansDuplicatePointsWarns(t *testing.T) {
	var warned error
	errors.SetWarningHandler(func(w error) { warned = w })
	defer errors.SetWarningHandler(nil)

	X := mat.NewDense(4, 1, []float64{1, 1, 1, 1})
	km := NewKMeans(WithKMeansNClusters(3), WithKMeansRandomState(0))
	require.NoError(t, km.Fit(X, nil))
	var cw *errors.ConvergenceWarning
	assert.True(t, errors.As(warned, &cw))
}

func TestKMeansErrors(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 1})
	assert.Error(t, NewKMeans(WithKMeansNClusters(3)).Fit(X, nil))

	var vErr *errors.ValidationError
	assert.True(t, errors.As(NewKMeans(WithKMeansNClusters(0)).Fit(X, nil), &vErr))
	assert.True(t, errors.As(NewKMeans(WithKMeansNClusters(1), WithKMeansInit("bogus")).Fit(X, nil), &vErr))

	_, err := NewKMeans().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
	assert.Nil(t, NewKMeans().ClusterCenters())
}
