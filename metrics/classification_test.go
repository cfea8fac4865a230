package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

func TestAccuracy(t *testing.T) {
	got, err := Accuracy(vec(0, 1, 1, 2), vec(0, 1, 2, 2))
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got, 1e-12)

	_, err = Accuracy(vec(0, 1), vec(0))
	assert.Error(t, err)
	_, err = Accuracy(&mat.VecDense{}, &mat.VecDense{})
	assert.Error(t, err)
}

func TestPrecisionRecallF1WarnsOnUnpredictedClass(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	_, err := PrecisionRecallF1(vec(0, 1, 2, 2), vec(0, 0, 0, 0))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	var undefined *errors.UndefinedMetricWarning
	require.True(t, errors.As(warnings[0], &undefined))
	assert.Equal(t, "precision", undefined.Metric)
	assert.Equal(t, 0.0, undefined.Result)

	warnings = nil
	_, err = PrecisionRecallF1(vec(0, 1), vec(0, 1))
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestPrecisionRecallF1(t *testing.T) {
	tests := []struct {
		name  string
		yTrue *mat.VecDense
		yPred *mat.VecDense
		want  WeightedScores
	}{
		{
			name:  "perfect prediction",
			yTrue: vec(0, 1, 2, 2),
			yPred: vec(0, 1, 2, 2),
			want:  WeightedScores{Precision: 1, Recall: 1, F1: 1},
		},
		{
			name:  "binary with one mistake",
			yTrue: vec(0, 0, 1, 1),
			yPred: vec(0, 1, 1, 1),
			want:  WeightedScores{Precision: 5.0 / 6.0, Recall: 0.75, F1: (2.0/3.0 + 0.8) / 2},
		},
		{
			name:  "class never predicted scores zero",
			yTrue: vec(0, 1),
			yPred: vec(0, 0),
			want:  WeightedScores{Precision: 0.25, Recall: 0.5, F1: 1.0 / 3.0},
		},
		{
			name:  "predicted label absent from y_true carries no weight",
			yTrue: vec(1, 1),
			yPred: vec(1, 7),
			want:  WeightedScores{Precision: 1, Recall: 0.5, F1: 2.0 / 3.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PrecisionRecallF1(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Precision, got.Precision, 1e-9)
			assert.InDelta(t, tt.want.Recall, got.Recall, 1e-9)
			assert.InDelta(t, tt.want.F1, got.F1, 1e-9)
		})
	}
}

func TestROCAUC(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   *mat.VecDense
		yScore  *mat.VecDense
		want    float64
		wantErr bool
	}{
		{name: "Perfect classifier", yTrue: vec(0, 0, 0, 1, 1, 1), yScore: vec(0.1, 0.2, 0.3, 0.7, 0.8, 0.9), want: 1},
		{name: "Worst classifier", yTrue: vec(0, 0, 0, 1, 1, 1), yScore: vec(0.9, 0.8, 0.7, 0.3, 0.2, 0.1), want: 0},
		{name: "Random classifier", yTrue: vec(0, 1, 0, 1), yScore: vec(0.5, 0.5, 0.5, 0.5), want: 0.5},
		{name: "Typical case", yTrue: vec(0, 0, 1, 1), yScore: vec(0.1, 0.4, 0.35, 0.8), want: 0.75},
		{name: "All positive labels", yTrue: vec(1, 1, 1), yScore: vec(0.1, 0.4, 0.35), wantErr: true},
		{name: "Non-binary labels", yTrue: vec(0, 0.5, 1), yScore: vec(0.1, 0.5, 0.9), wantErr: true},
		{name: "Length mismatch", yTrue: vec(0, 1), yScore: vec(0.1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ROCAUC(tt.yTrue, tt.yScore)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestROCAUCOvR(t *testing.T) {
	yTrue := vec(0, 1, 2, 2)
	perfect := mat.NewDense(4, 3, []float64{
		0.8, 0.1, 0.1,
		0.1, 0.8, 0.1,
		0.1, 0.1, 0.8,
		0.2, 0.2, 0.6,
	})
	got, err := ROCAUCOvR(yTrue, perfect, []float64{0, 1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-12)

	// クラス2の2件目だけ低いスコア: クラス2の AUC = 0.75、重み 2/4
	mixed := mat.NewDense(4, 3, []float64{
		0.8, 0.1, 0.1,
		0.1, 0.8, 0.1,
		0.1, 0.1, 0.8,
		0.4, 0.5, 0.1,
	})
	got, err = ROCAUCOvR(yTrue, mixed, []float64{0, 1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.25+0.25+0.5*0.75, got, 1e-12)

	_, err = ROCAUCOvR(vec(0, 1, 1, 1), perfect, []float64{0, 1, 2})
	assert.Error(t, err, "a class missing from y_true makes the score undefined")

	notProba := mat.NewDense(4, 3, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1})
	_, err = ROCAUCOvR(yTrue, notProba, []float64{0, 1, 2})
	assert.Error(t, err)
}
