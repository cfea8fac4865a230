package trainer

import (
	"math/rand"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/core/model"
	"github.com/YuminosukeSato/mlcompare/model_selection"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
	"github.com/YuminosukeSato/mlcompare/pkg/log"
	"github.com/YuminosukeSato/mlcompare/task"
)

func init() {
	errors.SetWarningHandler(nil)
}

// classificationSplit は3クラスがよく分離した100行のデータを80/20に分割する
func classificationSplit(t *testing.T) *model_selection.Split {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	X := mat.NewDense(100, 4, nil)
	y := mat.NewVecDense(100, nil)
	for i := 0; i < 100; i++ {
		c := i % 3
		for j := 0; j < 4; j++ {
			X.Set(i, j, float64(c)*2+rng.NormFloat64()*0.3)
		}
		y.SetVec(i, float64(c))
	}
	split, err := model_selection.TrainTestSplit(X, y,
		model_selection.WithTestSize(0.2),
		model_selection.WithRandomState(42),
		model_selection.WithStratify(true),
	)
	require.NoError(t, err)
	return split
}

func regressionSplit(t *testing.T) *model_selection.Split {
	t.Helper()
	rng := rand.New(rand.NewSource(2))
	X := mat.NewDense(100, 3, nil)
	y := mat.NewVecDense(100, nil)
	for i := 0; i < 100; i++ {
		var target float64
		for j := 0; j < 3; j++ {
			v := rng.NormFloat64()
			X.Set(i, j, v)
			target += float64(j+1) * v
		}
		y.SetVec(i, target+rng.NormFloat64()*0.1)
	}
	split, err := model_selection.TrainTestSplit(X, y,
		model_selection.WithTestSize(0.2),
		model_selection.WithRandomState(42),
	)
	require.NoError(t, err)
	return split
}

func newQuietTrainer() (*Trainer, *log.TestLogger) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	return NewTrainer(WithLogger(logger), WithConfig(Config{RandomState: 42, NJobs: 2})), logger
}

func TestTrainAllClassification(t *testing.T) {
	tr, _ := newQuietTrainer()
	results := tr.TrainAll(classificationSplit(t), task.Classification)

	names := lo.Map(results, func(r ModelResult, _ int) string { return r.Name })
	assert.Equal(t, []string{
		LogisticRegressionName, DecisionTreeName, RandomForestName, SVMName,
		KNeighborsName, NaiveBayesName, GradientBoostingName, NeuralNetworkName,
	}, names)

	for _, r := range results {
		assert.Equal(t, "classification", r.Type)
		assert.Greater(t, r.TrainingTime, 0.0, r.Name)
		for _, key := range []string{AccuracyKey, PrecisionKey, RecallKey, F1Key} {
			require.Contains(t, r.Metrics, key, r.Name)
			assert.GreaterOrEqual(t, r.Metrics[key], 0.0)
			assert.LessOrEqual(t, r.Metrics[key], 1.0)
		}
		assert.ElementsMatch(t, []string{AccuracyKey, PrecisionKey, RecallKey, F1Key},
			lo.Without(lo.Keys(r.Metrics), ROCAUCKey), r.Name)
		assert.GreaterOrEqual(t, r.Metrics[AccuracyKey], 0.9, r.Name)
		if auc, ok := r.Metrics[ROCAUCKey]; ok {
			assert.GreaterOrEqual(t, auc, 0.9, r.Name)
		}
	}
}

func TestTrainAllRegression(t *testing.T) {
	tr, _ := newQuietTrainer()
	results := tr.TrainAll(regressionSplit(t), task.Regression)
	require.Len(t, results, 7)
	assert.Equal(t, LinearRegressionName, results[0].Name)

	for _, r := range results {
		assert.Equal(t, "regression", r.Type)
		assert.ElementsMatch(t, []string{MSEKey, MAEKey, R2Key}, lo.Keys(r.Metrics), r.Name)
		assert.GreaterOrEqual(t, r.Metrics[MSEKey], 0.0)
	}
	assert.Greater(t, results[0].Metrics[R2Key], 0.99)
}

func TestTrainAllClustering(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	X := mat.NewDense(30, 2, nil)
	for i := 0; i < 30; i++ {
		c := float64(i % 3)
		X.Set(i, 0, c*10+rng.NormFloat64())
		X.Set(i, 1, rng.NormFloat64())
	}
	tr, logger := newQuietTrainer()
	results := tr.TrainAll(&model_selection.Split{XTrain: X, XTest: X}, task.Clustering)

	require.Len(t, results, 1)
	assert.True(t, logger.ContainsMessage("Estimator parameters"))
	r := results[0]
	assert.Equal(t, KMeansName, r.Name)
	assert.Equal(t, "clustering", r.Type)
	assert.ElementsMatch(t, []string{SilhouetteKey, InertiaKey}, lo.Keys(r.Metrics))
	assert.Greater(t, r.Metrics[SilhouetteKey], 0.5)
	assert.Greater(t, r.Metrics[InertiaKey], 0.0)
}

func TestTrainAllDropsFailingModels(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 1})
	tr, logger := newQuietTrainer()

	// K-Means needs at least 3 samples.
	results := tr.TrainAll(&model_selection.Split{XTrain: X, XTest: X}, task.Clustering)
	assert.Empty(t, results)
	assert.True(t, logger.ContainsMessage("Model training failed"))

	logger.Clear()
	assert.False(t, logger.ContainsMessage("Model training failed"))
	X = mat.NewDense(6, 1, []float64{0, 0.1, 0.2, 10, 10.1, 10.2})
	results = tr.TrainAll(&model_selection.Split{XTrain: X, XTest: X}, task.Clustering)
	assert.Len(t, results, 1)
	assert.False(t, logger.ContainsMessage("Model training failed"))
}

func TestClusteringMetricsReportsPanicAsZero(t *testing.T) {
	pred := mat.NewDense(3, 1, []float64{0, 1, 1})
	var X mat.Matrix
	var scores map[string]float64
	require.NotPanics(t, func() { scores = clusteringMetrics(X, pred, 1) })
	assert.Equal(t, map[string]float64{SilhouetteKey: 0, InertiaKey: 0}, scores)

	X = mat.NewDense(4, 1, []float64{0, 0.1, 5, 5.1})
	pred = mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	scores = clusteringMetrics(X, pred, 1)
	assert.Greater(t, scores[SilhouetteKey], 0.9)
	assert.InDelta(t, 0.01, scores[InertiaKey], 1e-9)
}

type panickingEstimator struct{}

func (panickingEstimator) Fit(X, y mat.Matrix) error { panic("boom") }
func (panickingEstimator) Predict(X mat.Matrix) (mat.Matrix, error) {
	return nil, nil
}

type failingPredictor struct{}

func (failingPredictor) Fit(X, y mat.Matrix) error { return nil }
func (failingPredictor) Predict(X mat.Matrix) (mat.Matrix, error) {
	return nil, errors.New("predict failed")
}

func TestTrainOneWrapsFailures(t *testing.T) {
	tr, _ := newQuietTrainer()
	split := regressionSplit(t)

	_, err := tr.trainOne(Entry{"Panics", func(Config) model.Estimator { return panickingEstimator{} }}, split, task.Regression)
	var te *errors.TrainingError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "Panics", te.Model)
	assert.Equal(t, log.OperationFit, te.Stage)
	var pe *errors.PanicError
	assert.True(t, errors.As(err, &pe))

	_, err = tr.trainOne(Entry{"Fails", func(Config) model.Estimator { return failingPredictor{} }}, split, task.Regression)
	require.True(t, errors.As(err, &te))
	assert.Equal(t, log.OperationPredict, te.Stage)
	assert.Equal(t, "regression", te.TaskType)
}

func TestTrainOneRequiresTarget(t *testing.T) {
	tr, _ := newQuietTrainer()
	split := regressionSplit(t)
	split.YTrain = nil
	_, err := tr.trainOne(Roster(task.Regression)[0], split, task.Regression)
	assert.Error(t, err)
}

func TestRosterIsCopied(t *testing.T) {
	roster := Roster(task.Classification)
	require.Len(t, roster, 8)
	roster[0].Name = "changed"
	assert.Equal(t, LogisticRegressionName, Roster(task.Classification)[0].Name)
	assert.Empty(t, Roster(task.Type("unknown")))
}

func TestROCAUCOmittedWhenTestClassesDiffer(t *testing.T) {
	tr, _ := newQuietTrainer()
	split := classificationSplit(t)

	// テスト集合をクラス0と1だけにする
	keep := []int{}
	for i := 0; i < split.YTest.Len(); i++ {
		if split.YTest.AtVec(i) != 2 {
			keep = append(keep, i)
		}
	}
	XTest := mat.NewDense(len(keep), 4, nil)
	yTest := mat.NewVecDense(len(keep), nil)
	for r, i := range keep {
		XTest.SetRow(r, split.XTest.RawRowView(i))
		yTest.SetVec(r, split.YTest.AtVec(i))
	}
	split.XTest, split.YTest = XTest, yTest

	res, err := tr.trainOne(Roster(task.Classification)[naiveBayesIndex(t)], split, task.Classification)
	require.NoError(t, err)
	assert.NotContains(t, res.Metrics, ROCAUCKey)
	assert.Contains(t, res.Metrics, AccuracyKey)
}

func naiveBayesIndex(t *testing.T) int {
	t.Helper()
	_, idx, ok := lo.FindIndexOf(Roster(task.Classification), func(e Entry) bool { return e.Name == NaiveBayesName })
	require.True(t, ok)
	return idx
}
