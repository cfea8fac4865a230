package preprocessing

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/YuminosukeSato/mlcompare/dataset"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// LabelEncoder maps string labels to integer codes 0..k-1 in sorted label order.
type LabelEncoder struct {
	Classes []string
	index   map[string]int
}

// NewLabelEncoder creates an unfitted LabelEncoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// Fit learns the sorted set of labels.
func (le *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	le.Classes = lo.Uniq(labels)
	sort.Strings(le.Classes)
	le.index = make(map[string]int, len(le.Classes))
	for i, c := range le.Classes {
		le.index[c] = i
	}
	return nil
}

// Transform encodes labels. Labels not seen during Fit are an error.
func (le *LabelEncoder) Transform(labels []string) ([]float64, error) {
	if le.index == nil {
		return nil, errors.NewNotFittedError("LabelEncoder", "Transform")
	}
	codes := make([]float64, len(labels))
	for i, l := range labels {
		code, ok := le.index[l]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", fmt.Sprintf("y contains previously unseen label %q", l))
		}
		codes[i] = float64(code)
	}
	return codes, nil
}

// FitTransform fits on labels and encodes them.
func (le *LabelEncoder) FitTransform(labels []string) ([]float64, error) {
	if err := le.Fit(labels); err != nil {
		return nil, err
	}
	return le.Transform(labels)
}

// InverseTransform decodes integer codes back to labels.
func (le *LabelEncoder) InverseTransform(codes []float64) ([]string, error) {
	out := make([]string, len(codes))
	for i, c := range codes {
		k := int(c)
		if k < 0 || k >= len(le.Classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform", fmt.Sprintf("code %v out of range", c))
		}
		out[i] = le.Classes[k]
	}
	return out, nil
}

// OneHotEncoder expands a categorical column into 0/1 indicator columns,
// one per level in sorted order. With DropFirst the first level is omitted.
type OneHotEncoder struct {
	DropFirst bool
	Levels    []string
}

// NewOneHotEncoder creates an encoder.
func NewOneHotEncoder(dropFirst bool) *OneHotEncoder {
	return &OneHotEncoder{DropFirst: dropFirst}
}

// FitTransform learns the levels of col and returns the indicator columns,
// named "<column>_<level>". Missing cells encode as all zeros.
func (oh *OneHotEncoder) FitTransform(col *dataset.Column) ([]*dataset.Column, error) {
	if col.Kind != dataset.Categorical {
		return nil, errors.NewValueError("OneHotEncoder.FitTransform", "column is not categorical: "+col.Name)
	}
	oh.Levels = col.Levels()
	levels := oh.Levels
	if oh.DropFirst && len(levels) > 0 {
		levels = levels[1:]
	}

	out := make([]*dataset.Column, len(levels))
	for k, level := range levels {
		values := make([]float64, col.Len())
		for i, s := range col.Labels {
			if !col.Missing[i] && s == level {
				values[i] = 1
			}
		}
		out[k] = dataset.NewNumericColumn(fmt.Sprintf("%s_%s", col.Name, level), values)
	}
	return out, nil
}
