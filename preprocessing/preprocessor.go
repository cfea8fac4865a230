// Package preprocessing turns a raw table into a numeric feature matrix:
// missing value imputation, categorical encoding and standardisation.
package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/core/model"
	"github.com/YuminosukeSato/mlcompare/dataset"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
	"github.com/YuminosukeSato/mlcompare/pkg/log"
	"github.com/YuminosukeSato/mlcompare/task"
)

// MaxOneHotLevels is the largest number of distinct levels a categorical
// feature may have to be one-hot encoded; above it the feature is label encoded.
const MaxOneHotLevels = 10

// Summary reports what preprocessing did.
type Summary struct {
	MissingValuesHandled       int  `json:"missing_values_handled"`
	CategoricalFeaturesEncoded int  `json:"categorical_features_encoded"`
	FeaturesScaled             bool `json:"features_scaled"`
}

// Result is the output of Preprocess.
type Result struct {
	X            *mat.Dense
	FeatureNames []string

	// Y is nil when the table has no target.
	Y *mat.VecDense
	// TargetClasses holds the original labels of a label-encoded target, indexed by code.
	TargetClasses []string

	Summary Summary
}

// Preprocessor prepares tables for training. It keeps no fitted state
// between calls, so one instance can serve concurrent requests.
type Preprocessor struct {
	logger log.Logger

	// newScaler builds a fresh feature scaler for every call.
	newScaler func() model.Transformer
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(p *Preprocessor) {
		p.logger = l
	}
}

// WithScaler replaces the default StandardScaler.
func WithScaler(newScaler func() model.Transformer) Option {
	return func(p *Preprocessor) {
		p.newScaler = newScaler
	}
}

// NewPreprocessor creates a Preprocessor.
func NewPreprocessor(opts ...Option) *Preprocessor {
	p := &Preprocessor{
		logger:    log.GetLoggerWithName("preprocessing"),
		newScaler: func() model.Transformer { return NewStandardScalerDefault() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Preprocess separates the target from the features, imputes missing feature
// cells, encodes categorical features and, except for clustering, scales the
// features. The input table is not modified and no rows are dropped.
func (p *Preprocessor) Preprocess(table *dataset.Table, target string, taskType task.Type) (*Result, error) {
	if table == nil || table.NumCols() == 0 {
		return nil, errors.NewDataFormatError(0, "table has no columns", nil)
	}
	if table.NumRows() == 0 {
		return nil, errors.NewDataFormatError(0, "table has no rows", nil)
	}

	var targetCol *dataset.Column
	features := make([]*dataset.Column, 0, table.NumCols())
	for _, c := range table.Columns {
		if target != "" && c.Name == target {
			targetCol = c
			continue
		}
		features = append(features, c)
	}
	if target != "" && targetCol == nil {
		return nil, errors.NewValueError("Preprocess", "target column not found: "+target)
	}

	summary := Summary{}
	for _, c := range features {
		summary.MissingValuesHandled += c.MissingCount()
	}

	var err error
	if summary.MissingValuesHandled > 0 {
		if features, err = imputeColumns(features); err != nil {
			return nil, err
		}
	}

	features, summary.CategoricalFeaturesEncoded, err = encodeColumns(features)
	if err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, errors.Wrap(errors.ErrNoFeatures, "Preprocess")
	}

	res := &Result{
		X:            columnsToMatrix(features),
		FeatureNames: make([]string, len(features)),
	}
	for i, c := range features {
		res.FeatureNames[i] = c.Name
	}

	if targetCol != nil {
		res.Y, res.TargetClasses, err = encodeTarget(targetCol)
		if err != nil {
			return nil, err
		}
	}

	if taskType != task.Clustering {
		scaled, err := p.newScaler().FitTransform(res.X)
		if err != nil {
			return nil, err
		}
		if dense, ok := scaled.(*mat.Dense); ok {
			res.X = dense
		} else {
			res.X = mat.DenseCopyOf(scaled)
		}
		summary.FeaturesScaled = true
	}

	rows, cols := res.X.Dims()
	if err := errors.CheckMatrix("Preprocess", res.X, rows, cols, 0); err != nil {
		return nil, errors.NewModelError("Preprocess", "input contains NaN or infinity", err)
	}

	res.Summary = summary
	p.logger.Debug("Preprocessing completed",
		log.PhaseKey, log.PhasePreprocessing,
		log.TaskTypeKey, taskType.String(),
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.MissingValuesKey, summary.MissingValuesHandled,
		log.EncodedKey, summary.CategoricalFeaturesEncoded,
	)
	return res, nil
}

// imputeColumns fills numeric columns with their median and categorical
// columns with their most frequent label. Columns with no observed cell are dropped.
func imputeColumns(cols []*dataset.Column) ([]*dataset.Column, error) {
	out := make([]*dataset.Column, 0, len(cols))
	for _, c := range cols {
		strategy := StrategyMostFrequent
		if c.Kind == dataset.Numeric {
			strategy = StrategyMedian
		}
		imp := NewSimpleImputer(strategy)
		filled, err := imp.FitTransform(c)
		if err != nil {
			return nil, err
		}
		if imp.Empty() {
			continue
		}
		out = append(out, filled)
	}
	return out, nil
}

// encodeColumns one-hot encodes low-cardinality categorical columns (first
// level dropped, indicator columns appended at the end) and label encodes
// the rest in place. It returns the number of columns produced by encoding.
func encodeColumns(cols []*dataset.Column) ([]*dataset.Column, int, error) {
	kept := make([]*dataset.Column, 0, len(cols))
	var dummies []*dataset.Column
	encoded := 0
	for _, c := range cols {
		if c.Kind == dataset.Numeric {
			kept = append(kept, c)
			continue
		}
		if c.NUnique() <= MaxOneHotLevels {
			ind, err := NewOneHotEncoder(true).FitTransform(c)
			if err != nil {
				return nil, 0, err
			}
			dummies = append(dummies, ind...)
			encoded += len(ind)
			continue
		}
		codes, err := NewLabelEncoder().FitTransform(c.Labels)
		if err != nil {
			return nil, 0, err
		}
		kept = append(kept, dataset.NewNumericColumn(c.Name, codes))
		encoded++
	}
	return append(kept, dummies...), encoded, nil
}

// encodeTarget fills missing target cells and label encodes a categorical target.
func encodeTarget(c *dataset.Column) (*mat.VecDense, []string, error) {
	if c.MissingCount() > 0 {
		strategy := StrategyMostFrequent
		if c.Kind == dataset.Numeric {
			strategy = StrategyMedian
		}
		imp := NewSimpleImputer(strategy)
		filled, err := imp.FitTransform(c)
		if err != nil {
			return nil, nil, err
		}
		if imp.Empty() {
			return nil, nil, errors.NewValueError("Preprocess", "target column has no values: "+c.Name)
		}
		c = filled
	}

	if c.Kind == dataset.Numeric {
		return mat.NewVecDense(c.Len(), append([]float64(nil), c.Values...)), nil, nil
	}
	le := NewLabelEncoder()
	codes, err := le.FitTransform(c.Labels)
	if err != nil {
		return nil, nil, err
	}
	return mat.NewVecDense(len(codes), codes), le.Classes, nil
}

func columnsToMatrix(cols []*dataset.Column) *mat.Dense {
	rows := cols[0].Len()
	X := mat.NewDense(rows, len(cols), nil)
	for j, c := range cols {
		for i := 0; i < rows; i++ {
			X.Set(i, j, c.Values[i])
		}
	}
	return X
}
