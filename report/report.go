// Package report renders a ComparisonResult for people: a terminal table,
// CSV and JSON exports, and a bar chart of the model scores.
package report

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/YuminosukeSato/mlcompare/comparator"
	"github.com/YuminosukeSato/mlcompare/task"
	"github.com/YuminosukeSato/mlcompare/trainer"
)

// metricOrder is the column order of each task's metrics.
var metricOrder = map[task.Type][]string{
	task.Classification: {trainer.AccuracyKey, trainer.PrecisionKey, trainer.RecallKey, trainer.F1Key, trainer.ROCAUCKey},
	task.Regression:     {trainer.MSEKey, trainer.MAEKey, trainer.R2Key},
	task.Clustering:     {trainer.SilhouetteKey, trainer.InertiaKey},
}

var metricNames = map[string]string{
	trainer.AccuracyKey:   "Accuracy",
	trainer.PrecisionKey:  "Precision",
	trainer.RecallKey:     "Recall",
	trainer.F1Key:         "F1 Score",
	trainer.ROCAUCKey:     "ROC-AUC",
	trainer.MSEKey:        "MSE",
	trainer.MAEKey:        "MAE",
	trainer.R2Key:         "R² Score",
	trainer.SilhouetteKey: "Silhouette Score",
	trainer.InertiaKey:    "Inertia",
}

// FormatMetricName returns the display name of a metric key. Unknown keys
// are title-cased with underscores replaced by spaces.
func FormatMetricName(key string) string {
	if name, ok := metricNames[key]; ok {
		return name
	}
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// MetricKeys returns the metric keys reported by at least one model, in the
// task's column order. Keys outside that order follow alphabetically.
func MetricKeys(res *comparator.ComparisonResult) []string {
	present := lo.Uniq(lo.FlatMap(res.Models, func(m trainer.ModelResult, _ int) []string {
		return lo.Keys(m.Metrics)
	}))
	ordered := lo.Filter(metricOrder[task.Type(res.TaskType)], func(k string, _ int) bool {
		return lo.Contains(present, k)
	})
	extra := lo.Without(present, ordered...)
	sort.Strings(extra)
	return append(ordered, extra...)
}
