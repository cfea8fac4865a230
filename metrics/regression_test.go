package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func vec(values ...float64) *mat.VecDense {
	return mat.NewVecDense(len(values), values)
}

func TestRegressionScores(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(yTrue, yPred *mat.VecDense) (float64, error)
		yTrue   *mat.VecDense
		yPred   *mat.VecDense
		want    float64
		wantErr bool
	}{
		{name: "MSE perfect prediction", fn: MSE, yTrue: vec(1, 2, 3, 4, 5), yPred: vec(1, 2, 3, 4, 5), want: 0},
		// ((0.5)^2 + (0.5)^2 + (-0.5)^2 + (-0.5)^2) / 4
		{name: "MSE simple case", fn: MSE, yTrue: vec(1, 2, 3, 4), yPred: vec(1.5, 2.5, 2.5, 3.5), want: 0.25},
		{name: "MSE larger errors", fn: MSE, yTrue: vec(10, 20, 30), yPred: vec(12, 18, 33), want: 17.0 / 3.0},
		{name: "MSE dimension mismatch", fn: MSE, yTrue: vec(1, 2, 3), yPred: vec(1, 2), wantErr: true},
		{name: "MSE empty vectors", fn: MSE, yTrue: &mat.VecDense{}, yPred: &mat.VecDense{}, wantErr: true},
		{name: "MAE simple case", fn: MAE, yTrue: vec(1, 2, 3, 4), yPred: vec(2, 2, 2, 2), want: 1},
		{name: "MAE negative residuals", fn: MAE, yTrue: vec(-1, -2), yPred: vec(1, 2), want: 3},
		{name: "MAE dimension mismatch", fn: MAE, yTrue: vec(1), yPred: vec(1, 2), wantErr: true},
		{name: "R2 perfect prediction", fn: R2Score, yTrue: vec(1, 2, 3, 4, 5), yPred: vec(1, 2, 3, 4, 5), want: 1},
		{name: "R2 worse than mean baseline", fn: R2Score, yTrue: vec(1, 2, 3, 4), yPred: vec(4, 3, 2, 1), want: -3},
		{name: "R2 mean prediction", fn: R2Score, yTrue: vec(1, 2, 3), yPred: vec(2, 2, 2), want: 0},
		{name: "R2 constant target, perfect", fn: R2Score, yTrue: vec(3, 3, 3), yPred: vec(3, 3, 3), want: 1},
		{name: "R2 constant target, imperfect", fn: R2Score, yTrue: vec(3, 3, 3, 3, 3), yPred: vec(2, 3, 4, 3, 3), want: 0},
		{name: "R2 dimension mismatch", fn: R2Score, yTrue: vec(1, 2, 3), yPred: vec(1, 2), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.yTrue, tt.yPred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-10)
		})
	}
}

func TestColumnVector(t *testing.T) {
	v, err := ColumnVector(mat.NewDense(3, 1, []float64{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, v.RawVector().Data)

	_, err = ColumnVector(mat.NewDense(2, 2, nil))
	assert.Error(t, err)
}

func BenchmarkMSE(b *testing.B) {
	size := 10000
	yTrue := mat.NewVecDense(size, nil)
	yPred := mat.NewVecDense(size, nil)
	for i := 0; i < size; i++ {
		yTrue.SetVec(i, float64(i))
		yPred.SetVec(i, float64(i)+0.1*float64(i%10))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = MSE(yTrue, yPred)
	}
}
