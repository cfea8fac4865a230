package errors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestCheckMatrix(t *testing.T) {
	ok := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	assert.NoError(t, CheckMatrix("scale", ok, 2, 2, 0))

	bad := mat.NewDense(2, 2, []float64{1, math.NaN(), 3, math.Inf(1)})
	err := CheckMatrix("scale", bad, 2, 2, 0)
	var instab *NumericalInstabilityError
	assert.True(t, As(err, &instab))
	assert.Equal(t, "scale", instab.Operation)
}

func TestCheckScalar(t *testing.T) {
	assert.NoError(t, CheckScalar("loss", 0.3, 1))

	err := CheckScalar("loss", math.Inf(1), 4)
	var instab *NumericalInstabilityError
	assert.True(t, As(err, &instab))
	assert.Equal(t, 4, instab.Iteration)
	assert.Error(t, CheckScalar("loss", math.NaN(), 1))
}

func TestNumericHelpers(t *testing.T) {
	assert.Equal(t, 0.0, SafeDivide(1, 0))
	assert.Equal(t, 2.0, SafeDivide(4, 2))
	assert.Equal(t, 1.0, ClipValue(3, 0, 1))
	assert.Equal(t, 0.2, ClipValue(0.2, 0, 1))
	assert.InDelta(t, math.Log(1e-10), StabilizeLog(0), 1e-12)
	assert.InDelta(t, math.Log(0.5), StabilizeLog(0.5), 1e-12)
	assert.InDelta(t, 0.5, Sigmoid(0), 1e-12)
	assert.InDelta(t, 1.0, Sigmoid(800), 1e-12)
	assert.InDelta(t, 0.0, Sigmoid(-800), 1e-12)
	assert.InDelta(t, math.Log(3), LogSumExp([]float64{0, 0, 0}), 1e-12)
	assert.True(t, math.IsInf(LogSumExp(nil), -1))

	p := []float64{1, 1, 1, 1}
	Softmax(p)
	for _, v := range p {
		assert.InDelta(t, 0.25, v, 1e-12)
	}
}
