// Package comparator runs the full comparison pipeline on an uploaded CSV:
// parse, detect the task, preprocess, split, train the roster and assemble
// the result.
package comparator

import (
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"

	"github.com/YuminosukeSato/mlcompare/dataset"
	"github.com/YuminosukeSato/mlcompare/model_selection"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
	"github.com/YuminosukeSato/mlcompare/pkg/log"
	"github.com/YuminosukeSato/mlcompare/preprocessing"
	"github.com/YuminosukeSato/mlcompare/task"
	"github.com/YuminosukeSato/mlcompare/trainer"
)

var ComparisonsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mlcompare",
	Subsystem: "comparator",
	Name:      "comparisons_total",
	Help:      "Comparisons run, by detected task type and outcome.",
}, []string{trainer.LabelTask, trainer.LabelOutcome})

// DatasetInfo describes the uploaded table.
type DatasetInfo struct {
	Rows     int      `json:"rows"`
	Columns  int      `json:"columns"`
	Features []string `json:"features"`
	// Target is nil for clustering.
	Target *string `json:"target"`
}

// ComparisonResult is returned to clients.
type ComparisonResult struct {
	TaskType          string                `json:"task_type"`
	Models            []trainer.ModelResult `json:"models"`
	DatasetInfo       DatasetInfo           `json:"dataset_info"`
	PreprocessingInfo preprocessing.Summary `json:"preprocessing_info"`
}

// Config holds the pipeline settings.
type Config struct {
	TestSize    float64
	RandomState int64
	NJobs       int
}

// DefaultConfig returns a 0.2 test fraction, seed 42 and one worker per CPU.
func DefaultConfig() Config {
	return Config{TestSize: 0.2, RandomState: 42, NJobs: -1}
}

// Comparator is safe for concurrent use; every call builds its own state.
type Comparator struct {
	cfg          Config
	logger       log.Logger
	preprocessor *preprocessing.Preprocessor
	trainer      *trainer.Trainer
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithConfig sets the pipeline settings.
func WithConfig(cfg Config) Option {
	return func(c *Comparator) {
		c.cfg = cfg
	}
}

// WithLogger sets the logger used by the comparator and its stages.
func WithLogger(l log.Logger) Option {
	return func(c *Comparator) {
		c.logger = l
	}
}

// New creates a Comparator.
func New(opts ...Option) *Comparator {
	c := &Comparator{cfg: DefaultConfig(), logger: log.GetLoggerWithName("comparator")}
	for _, opt := range opts {
		opt(c)
	}
	c.preprocessor = preprocessing.NewPreprocessor(preprocessing.WithLogger(c.logger))
	c.trainer = trainer.NewTrainer(
		trainer.WithLogger(c.logger),
		trainer.WithConfig(trainer.Config{RandomState: c.cfg.RandomState, NJobs: c.cfg.NJobs}),
	)
	return c
}

// CompareModels runs the pipeline on raw CSV bytes. Failures before training
// come back as a ProcessingError wrapping the cause; failures of single
// models only remove them from the result.
func (c *Comparator) CompareModels(raw []byte) (result *ComparisonResult, err error) {
	logger := c.logger.With(log.ComparisonIDKey, uuid.NewString())
	start := time.Now()
	taskLabel := "unknown"
	defer func() {
		outcome := trainer.OutcomeSuccess
		if err != nil {
			outcome = trainer.OutcomeFailure
			logger.Error("Comparison failed", err, log.TaskTypeKey, taskLabel)
		}
		ComparisonsTotal.WithLabelValues(taskLabel, outcome).Inc()
	}()

	table, err := dataset.ParseCSV(raw)
	if err != nil {
		return nil, errors.NewProcessingError(log.PhaseParsing, err)
	}
	logger.Info("Dataset loaded",
		log.PhaseKey, log.PhaseParsing,
		log.DataSizeKey, len(raw),
		log.SamplesKey, table.NumRows(),
		log.ColumnsKey, table.NumCols(),
	)

	taskType, target := task.Detect(table)
	taskLabel = taskType.String()
	logger.Info("Task detected",
		log.PhaseKey, log.PhaseDetection,
		log.TaskTypeKey, taskLabel,
		log.TargetKey, target,
	)

	prep, err := c.preprocessor.Preprocess(table, target, taskType)
	if err != nil {
		return nil, errors.NewProcessingError(log.PhasePreprocessing, err)
	}

	var split *model_selection.Split
	if taskType == task.Clustering {
		split = &model_selection.Split{XTrain: prep.X, XTest: prep.X}
	} else {
		split, err = model_selection.TrainTestSplit(prep.X, prep.Y,
			model_selection.WithTestSize(c.cfg.TestSize),
			model_selection.WithRandomState(c.cfg.RandomState),
			model_selection.WithStratify(taskType == task.Classification),
		)
		if err != nil {
			return nil, errors.NewProcessingError(log.PhaseSplitting, err)
		}
		if taskType == task.Classification && !split.Stratified {
			logger.Warn("Stratified split not possible, falling back to a shuffled split",
				log.PhaseKey, log.PhaseSplitting)
		}
	}

	models := c.trainer.TrainAll(split, taskType)

	info := DatasetInfo{
		Rows:     table.NumRows(),
		Columns:  table.NumCols(),
		Features: table.ColumnNames(),
	}
	if target != "" {
		info.Features = lo.Without(info.Features, target)
		info.Target = &target
	}

	logger.Info("Comparison finished",
		log.PhaseKey, log.PhaseTraining,
		log.TaskTypeKey, taskLabel,
		"models", len(models),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return &ComparisonResult{
		TaskType:          taskLabel,
		Models:            models,
		DatasetInfo:       info,
		PreprocessingInfo: prep.Summary,
	}, nil
}
