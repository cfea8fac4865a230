package trainer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelModel   = "model"
	LabelTask    = "task_type"
	LabelOutcome = "outcome"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	TrainingSecondsVec = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mlcompare",
		Subsystem: "trainer",
		Name:      "training_seconds",
		Help:      "Wall-clock time spent fitting and evaluating one model.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{LabelModel, LabelTask})
	ModelsTrainedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mlcompare",
		Subsystem: "trainer",
		Name:      "models_trained_total",
		Help:      "Models trained, by outcome.",
	}, []string{LabelModel, LabelTask, LabelOutcome})
)
