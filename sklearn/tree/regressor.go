package tree

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/core/model"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// DecisionTreeRegressor はCARTによる回帰木（分散最小化）
type DecisionTreeRegressor struct {
	state *model.StateManager
	treeParams

	tree *Tree
}

// NewDecisionTreeRegressor creates a regressor with the squared_error criterion.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	return &DecisionTreeRegressor{
		state:      model.NewStateManager(),
		treeParams: newParams("squared_error", opts),
	}
}

// Fit builds the tree from the training set.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree with per-sample weights.
func (dt *DecisionTreeRegressor) FitWeighted(X, y mat.Matrix, weights []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	rows, cols, target, err := model.CheckXY("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if weights != nil && len(weights) != rows {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", rows, len(weights), 0)
	}
	if dt.criterion != "squared_error" {
		return errors.NewValidationError("criterion", "must be squared_error", dt.criterion)
	}

	dt.tree = newBuilder(&dt.treeParams, asDense(X), target, weights, 0).grow()
	dt.state.SetDimensions(cols, rows)
	dt.state.SetFitted()
	return nil
}

// Predict returns the mean target of the leaf each row reaches.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.CheckPredictInput("DecisionTreeRegressor", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, 0)
	for i := 0; i < rows; i++ {
		row = model.RowToSlice(X, i, row)
		out.Set(i, 0, dt.tree.LeafValue(dt.tree.Apply(row))[0])
	}
	return out, nil
}

// Apply returns the leaf index reached by each row.
func (dt *DecisionTreeRegressor) Apply(X mat.Matrix) ([]int, error) {
	if err := dt.state.CheckPredictInput("DecisionTreeRegressor", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	leaves := make([]int, rows)
	row := make([]float64, 0)
	for i := range leaves {
		row = model.RowToSlice(X, i, row)
		leaves[i] = dt.tree.Apply(row)
	}
	return leaves, nil
}

// Score returns the R² of the predictions, or 0 when prediction fails.
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := y.Dims()
	var mean float64
	for i := 0; i < rows; i++ {
		mean += y.At(i, 0)
	}
	mean /= float64(rows)
	var rss, tss float64
	for i := 0; i < rows; i++ {
		d := y.At(i, 0) - pred.At(i, 0)
		rss += d * d
		m := y.At(i, 0) - mean
		tss += m * m
	}
	if tss == 0 {
		return 0
	}
	return 1 - rss/tss
}

// Tree returns the fitted tree, or nil before Fit.
func (dt *DecisionTreeRegressor) Tree() *Tree {
	return dt.tree
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeRegressor) GetDepth() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.Depth()
}

// GetFeatureImportances returns normalised impurity-based importances.
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	if dt.tree == nil {
		return nil
	}
	return dt.tree.FeatureImportances()
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return dt.getParams()
}

// SetParams updates hyperparameters by name.
func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	return dt.setParams(params)
}

// IsFitted reports whether Fit has completed.
func (dt *DecisionTreeRegressor) IsFitted() bool {
	return dt.state.IsFitted()
}
