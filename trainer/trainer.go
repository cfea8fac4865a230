// Package trainer trains the fixed model roster of a task and evaluates every
// model on the held-out split.
package trainer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/core/model"
	"github.com/YuminosukeSato/mlcompare/metrics"
	"github.com/YuminosukeSato/mlcompare/model_selection"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
	"github.com/YuminosukeSato/mlcompare/pkg/log"
	"github.com/YuminosukeSato/mlcompare/task"
)

// Metric keys reported per task.
const (
	AccuracyKey  = "accuracy"
	PrecisionKey = "precision"
	RecallKey    = "recall"
	F1Key        = "f1_score"
	ROCAUCKey    = "roc_auc"

	MSEKey = "mse"
	MAEKey = "mae"
	R2Key  = "r2_score"

	SilhouetteKey = "silhouette_score"
	InertiaKey    = "inertia"
)

// Config holds the settings shared by every estimator of a run.
type Config struct {
	RandomState int64
	// NJobs is the parallelism hint for estimators that can use it. <= 0 means one per CPU.
	NJobs int
}

// DefaultConfig returns seed 42 and one worker per CPU.
func DefaultConfig() Config {
	return Config{RandomState: 42, NJobs: -1}
}

// ModelResult is the outcome of training and evaluating one model.
type ModelResult struct {
	Name         string             `json:"name"`
	Metrics      map[string]float64 `json:"metrics"`
	TrainingTime float64            `json:"training_time"`
	Type         string             `json:"type"`
}

// Trainer runs the roster sequentially. It holds no per-request state.
type Trainer struct {
	cfg    Config
	logger log.Logger
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithConfig sets the estimator configuration.
func WithConfig(cfg Config) Option {
	return func(t *Trainer) {
		t.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(t *Trainer) {
		t.logger = l
	}
}

// NewTrainer creates a Trainer with DefaultConfig.
func NewTrainer(opts ...Option) *Trainer {
	t := &Trainer{cfg: DefaultConfig(), logger: log.GetLoggerWithName("trainer")}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TrainAll trains every model of the task's roster on the split and returns
// the successful results in roster order. A model that fails is logged and
// left out; TrainAll itself never fails. For clustering the split's train
// and test partitions are expected to be the full matrix.
func (t *Trainer) TrainAll(split *model_selection.Split, taskType task.Type) []ModelResult {
	roster := Roster(taskType)
	results := make([]ModelResult, 0, len(roster))
	for _, entry := range roster {
		res, err := t.trainOne(entry, split, taskType)
		if err != nil {
			t.logger.Error("Model training failed", err,
				log.ModelNameKey, entry.Name,
				log.TaskTypeKey, string(taskType),
				log.ErrorCodeKey, log.ErrorTrainingFailed,
			)
			ModelsTrainedTotal.WithLabelValues(entry.Name, string(taskType), OutcomeFailure).Inc()
			continue
		}
		ModelsTrainedTotal.WithLabelValues(entry.Name, string(taskType), OutcomeSuccess).Inc()
		TrainingSecondsVec.WithLabelValues(entry.Name, string(taskType)).Observe(res.TrainingTime)
		results = append(results, res)
	}
	return results
}

// trainOne fits one model, predicts the test partition and computes the
// task's metrics. Errors and panics come back as a TrainingError.
func (t *Trainer) trainOne(entry Entry, split *model_selection.Split, taskType task.Type) (res ModelResult, err error) {
	stage := log.OperationFit
	defer func() {
		var te *errors.TrainingError
		if err != nil && !errors.As(err, &te) {
			err = errors.NewTrainingError(entry.Name, string(taskType), stage, err)
		}
	}()
	defer errors.Recover(&err, "trainer."+entry.Name)

	if split == nil || split.XTrain == nil || split.XTest == nil {
		return ModelResult{}, errors.NewValueError("trainOne", "split has no feature matrix")
	}
	if taskType != task.Clustering && (split.YTrain == nil || split.YTest == nil) {
		return ModelResult{}, errors.NewValueError("trainOne", "supervised task without target")
	}

	rows, cols := split.XTrain.Dims()
	logger := t.logger.With(
		log.ModelNameKey, entry.Name,
		log.EstimatorIDKey, uuid.NewString(),
		log.TaskTypeKey, string(taskType),
	)
	logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
	)

	start := time.Now()
	est := entry.New(t.cfg)
	if pg, ok := est.(model.ParameterGetter); ok && logger.Enabled(context.Background(), log.LevelDebug) {
		logger.Debug("Estimator parameters", "params", pg.GetParams())
	}

	var y mat.Matrix
	if split.YTrain != nil && taskType != task.Clustering {
		y = split.YTrain
	}
	if err := est.Fit(split.XTrain, y); err != nil {
		return ModelResult{}, err
	}

	stage = log.OperationPredict
	pred, err := est.Predict(split.XTest)
	if err != nil {
		return ModelResult{}, err
	}

	stage = log.OperationScore
	var scores map[string]float64
	switch taskType {
	case task.Classification:
		scores, err = classificationMetrics(est, split.XTest, split.YTest, pred)
	case task.Regression:
		scores, err = regressionMetrics(split.YTest, pred)
	case task.Clustering:
		scores = clusteringMetrics(split.XTest, pred, t.cfg.NJobs)
	default:
		err = errors.NewValueError("trainOne", "unknown task type "+string(taskType))
	}
	if err != nil {
		return ModelResult{}, err
	}
	elapsed := time.Since(start)

	logger.Info("Training finished",
		log.DurationMsKey, elapsed.Milliseconds(),
		"metrics", scores,
	)
	return ModelResult{
		Name:         entry.Name,
		Metrics:      scores,
		TrainingTime: elapsed.Seconds(),
		Type:         string(taskType),
	}, nil
}

func classificationMetrics(est model.Estimator, XTest mat.Matrix, yTest *mat.VecDense, pred mat.Matrix) (map[string]float64, error) {
	yPred, err := metrics.ColumnVector(pred)
	if err != nil {
		return nil, err
	}
	acc, err := metrics.Accuracy(yTest, yPred)
	if err != nil {
		return nil, err
	}
	prf, err := metrics.PrecisionRecallF1(yTest, yPred)
	if err != nil {
		return nil, err
	}
	scores := map[string]float64{
		AccuracyKey:  acc,
		PrecisionKey: prf.Precision,
		RecallKey:    prf.Recall,
		F1Key:        prf.F1,
	}
	if clf, ok := est.(model.ProbabilisticClassifier); ok {
		if auc, err := rocAUC(clf, XTest, yTest); err == nil {
			scores[ROCAUCKey] = auc
		}
	}
	return scores, nil
}

// rocAUC は2クラスなら正例（大きい方のラベル）の確率、多クラスなら
// サポート重み付きの one-vs-rest で計算する。テスト集合のクラスが学習時の
// クラスと一致しない場合は未定義
func rocAUC(clf model.ProbabilisticClassifier, XTest mat.Matrix, yTest *mat.VecDense) (float64, error) {
	classes := clf.Classes()
	present := lo.Uniq(yTest.RawVector().Data)
	if len(present) != len(classes) || len(lo.Intersect(present, classes)) != len(classes) {
		return 0, errors.NewValueError("rocAUC", "test classes differ from the fitted classes")
	}
	proba, err := clf.PredictProba(XTest)
	if err != nil {
		return 0, err
	}
	if len(classes) == 2 {
		n := yTest.Len()
		positive := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			if yTest.AtVec(i) == classes[1] {
				positive.SetVec(i, 1)
			}
		}
		return metrics.ROCAUC(positive, mat.NewVecDense(n, mat.Col(nil, 1, proba)))
	}
	return metrics.ROCAUCOvR(yTest, proba, classes)
}

func regressionMetrics(yTest *mat.VecDense, pred mat.Matrix) (map[string]float64, error) {
	yPred, err := metrics.ColumnVector(pred)
	if err != nil {
		return nil, err
	}
	mse, err := metrics.MSE(yTest, yPred)
	if err != nil {
		return nil, err
	}
	mae, err := metrics.MAE(yTest, yPred)
	if err != nil {
		return nil, err
	}
	r2, err := metrics.R2Score(yTest, yPred)
	if err != nil {
		return nil, err
	}
	return map[string]float64{MSEKey: mse, MAEKey: mae, R2Key: r2}, nil
}

// clusteringMetrics は失敗したスコア（panic を含む）を 0.0 として報告する
func clusteringMetrics(X mat.Matrix, pred mat.Matrix, nJobs int) map[string]float64 {
	rows, _ := pred.Dims()
	labels := make([]int, rows)
	for i := range labels {
		labels[i] = int(pred.At(i, 0))
	}
	var silhouette, inertia float64
	if err := errors.SafeExecute("clusteringMetrics.silhouette", func() (err error) {
		silhouette, err = metrics.SilhouetteScore(X, labels, nJobs)
		return err
	}); err != nil {
		silhouette = 0
	}
	if err := errors.SafeExecute("clusteringMetrics.inertia", func() (err error) {
		inertia, err = metrics.Inertia(X, labels)
		return err
	}); err != nil {
		inertia = 0
	}
	return map[string]float64{SilhouetteKey: silhouette, InertiaKey: inertia}
}
