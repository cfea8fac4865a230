package tree

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/core/model"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// DecisionTreeClassifier はCARTによる分類木
type DecisionTreeClassifier struct {
	state *model.StateManager
	treeParams

	tree      *Tree
	classes_  []float64
	nClasses_ int
}

// NewDecisionTreeClassifier creates a classifier with the gini criterion and
// unlimited depth.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	return &DecisionTreeClassifier{
		state:      model.NewStateManager(),
		treeParams: newParams("gini", opts),
	}
}

// Fit builds the tree from the training set.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree with per-sample weights. Rows with zero weight
// are ignored; a nil slice weights every row equally.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, weights []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	rows, cols, target, err := model.CheckXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if weights != nil && len(weights) != rows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", rows, len(weights), 0)
	}
	switch dt.criterion {
	case "gini", "entropy", "log_loss":
	default:
		return errors.NewValidationError("criterion", "must be gini, entropy or log_loss", dt.criterion)
	}

	dt.classes_ = model.UniqueSorted(target)
	dt.nClasses_ = len(dt.classes_)
	index := model.ClassIndex(dt.classes_)
	encoded := make([]float64, rows)
	for i, v := range target {
		encoded[i] = float64(index[v])
	}

	dt.tree = newBuilder(&dt.treeParams, asDense(X), encoded, weights, dt.nClasses_).grow()
	dt.state.SetDimensions(cols, rows)
	dt.state.SetFitted()
	return nil
}

// Predict returns the most probable class of each row.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, _ := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, dt.classes_[argmax(proba.(*mat.Dense).RawRowView(i))])
	}
	return out, nil
}

// PredictProba returns the class distribution of the leaf each row reaches.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.CheckPredictInput("DecisionTreeClassifier", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, dt.nClasses_, nil)
	row := make([]float64, 0)
	for i := 0; i < rows; i++ {
		row = model.RowToSlice(X, i, row)
		out.SetRow(i, dt.tree.LeafValue(dt.tree.Apply(row)))
	}
	return out, nil
}

// Classes returns the sorted class labels seen during Fit.
func (dt *DecisionTreeClassifier) Classes() []float64 {
	return dt.classes_
}

// Score returns the mean accuracy on the given data, or 0 when prediction fails.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := y.Dims()
	if rows == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

// Tree returns the fitted tree, or nil before Fit.
func (dt *DecisionTreeClassifier) Tree() *Tree {
	return dt.tree
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeClassifier) GetDepth() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.Depth()
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.NLeaves()
}

// GetFeatureImportances returns normalised impurity-based importances.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	if dt.tree == nil {
		return nil
	}
	return dt.tree.FeatureImportances()
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return dt.getParams()
}

// SetParams updates hyperparameters by name.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	return dt.setParams(params)
}

// IsFitted reports whether Fit has completed.
func (dt *DecisionTreeClassifier) IsFitted() bool {
	return dt.state.IsFitted()
}

func (p *treeParams) setParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			s, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			p.criterion = s
		case "max_depth", "min_samples_split", "min_samples_leaf", "max_features":
			n, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be an int", value)
			}
			switch key {
			case "max_depth":
				p.maxDepth = n
			case "min_samples_split":
				p.minSamplesSplit = n
			case "min_samples_leaf":
				p.minSamplesLeaf = n
			default:
				p.maxFeatures = n
			}
		case "random_state":
			n, ok := value.(int64)
			if !ok {
				return errors.NewValidationError(key, "must be an int64", value)
			}
			p.randomState = n
		default:
			return errors.NewValueError("SetParams", fmt.Sprintf("unknown parameter %q", key))
		}
	}
	return nil
}

func argmax(v []float64) int {
	best := 0
	for k := 1; k < len(v); k++ {
		if v[k] > v[best] {
			best = k
		}
	}
	return best
}
