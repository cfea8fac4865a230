package preprocessing

import (
	"sort"

	"github.com/YuminosukeSato/mlcompare/dataset"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// Imputation strategies.
const (
	StrategyMedian       = "median"
	StrategyMostFrequent = "most_frequent"
)

// SimpleImputer fills missing cells of a column with a statistic learned
// from its observed cells. Median applies to numeric columns, most_frequent
// to categorical ones.
type SimpleImputer struct {
	Strategy string

	fitted   bool
	empty    bool
	number   float64
	category string
}

// NewSimpleImputer creates an imputer with the given strategy.
func NewSimpleImputer(strategy string) *SimpleImputer {
	return &SimpleImputer{Strategy: strategy}
}

// Fit learns the fill value of col. A column without observed cells is
// marked empty; Empty reports it so the caller can drop the column.
func (im *SimpleImputer) Fit(col *dataset.Column) error {
	switch im.Strategy {
	case StrategyMedian:
		if col.Kind != dataset.Numeric {
			return errors.NewValueError("SimpleImputer.Fit", "median strategy requires a numeric column: "+col.Name)
		}
		observed := make([]float64, 0, col.Len())
		for i, v := range col.Values {
			if !col.Missing[i] {
				observed = append(observed, v)
			}
		}
		im.empty = len(observed) == 0
		if !im.empty {
			im.number = Median(observed)
		}
	case StrategyMostFrequent:
		if col.Kind == dataset.Numeric {
			v, ok := mostFrequentNumber(col)
			im.empty, im.number = !ok, v
		} else {
			s, ok := mostFrequentLabel(col)
			im.empty, im.category = !ok, s
		}
	default:
		return errors.NewValidationError("strategy", "unknown imputation strategy", im.Strategy)
	}
	im.fitted = true
	return nil
}

// Empty reports whether the fitted column had no observed cells.
func (im *SimpleImputer) Empty() bool {
	return im.empty
}

// Transform returns a copy of col with missing cells filled.
func (im *SimpleImputer) Transform(col *dataset.Column) (*dataset.Column, error) {
	if !im.fitted {
		return nil, errors.NewNotFittedError("SimpleImputer", "Transform")
	}
	out := col.Clone()
	for i := range out.Missing {
		if !out.Missing[i] {
			continue
		}
		if out.Kind == dataset.Numeric {
			out.Values[i] = im.number
		} else {
			out.Labels[i] = im.category
		}
		out.Missing[i] = false
	}
	return out, nil
}

// FitTransform fits on col and fills it.
func (im *SimpleImputer) FitTransform(col *dataset.Column) (*dataset.Column, error) {
	if err := im.Fit(col); err != nil {
		return nil, err
	}
	return im.Transform(col)
}

// Median returns the median of values; the mean of the two middle values
// for an even count. values is not modified.
func Median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// mostFrequentLabel picks the most common label; ties go to the smallest.
func mostFrequentLabel(col *dataset.Column) (string, bool) {
	counts := make(map[string]int)
	for i, s := range col.Labels {
		if !col.Missing[i] {
			counts[s]++
		}
	}
	best, bestN := "", 0
	for s, n := range counts {
		if n > bestN || (n == bestN && s < best) {
			best, bestN = s, n
		}
	}
	return best, bestN > 0
}

func mostFrequentNumber(col *dataset.Column) (float64, bool) {
	counts := make(map[float64]int)
	for i, v := range col.Values {
		if !col.Missing[i] {
			counts[v]++
		}
	}
	best, bestN := 0.0, 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best, bestN > 0
}
