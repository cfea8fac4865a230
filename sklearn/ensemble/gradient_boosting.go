package ensemble

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/core/model"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
	"github.com/YuminosukeSato/mlcompare/sklearn/tree"
)

// boostingParams は勾配ブースティングのハイパーパラメータ
type boostingParams struct {
	nEstimators  int
	learningRate float64
	maxDepth     int
	randomState  int64
}

// BoostingOption は勾配ブースティングの設定オプション
type BoostingOption func(*boostingParams)

// WithGBNEstimators sets the number of boosting stages.
func WithGBNEstimators(n int) BoostingOption {
	return func(p *boostingParams) {
		p.nEstimators = n
	}
}

// WithGBLearningRate sets the shrinkage applied to every stage.
func WithGBLearningRate(lr float64) BoostingOption {
	return func(p *boostingParams) {
		p.learningRate = lr
	}
}

// WithGBMaxDepth sets the depth of the stage trees.
func WithGBMaxDepth(depth int) BoostingOption {
	return func(p *boostingParams) {
		p.maxDepth = depth
	}
}

// WithGBRandomState sets the seed. Negative values seed from the clock.
func WithGBRandomState(seed int64) BoostingOption {
	return func(p *boostingParams) {
		p.randomState = seed
	}
}

func newBoostingParams(opts []BoostingOption) boostingParams {
	p := boostingParams{
		nEstimators:  100,
		learningRate: 0.1,
		maxDepth:     3,
		randomState:  -1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p *boostingParams) validate() error {
	if p.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be positive", p.nEstimators)
	}
	if p.learningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", p.learningRate)
	}
	return nil
}

func (p *boostingParams) getParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":  p.nEstimators,
		"learning_rate": p.learningRate,
		"max_depth":     p.maxDepth,
		"random_state":  p.randomState,
	}
}

func (p *boostingParams) newRand() *rand.Rand {
	if p.randomState >= 0 {
		return rand.New(rand.NewSource(p.randomState))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// fitStage fits one regression tree to the residuals and returns it together
// with the leaf reached by each training row.
func (p *boostingParams) fitStage(X mat.Matrix, residual []float64, seed int64) (*tree.DecisionTreeRegressor, []int, error) {
	dt := tree.NewDecisionTreeRegressor(
		tree.WithMaxDepth(p.maxDepth),
		tree.WithRandomState(seed),
	)
	if err := dt.Fit(X, model.VectorToColumn(residual)); err != nil {
		return nil, nil, err
	}
	leaves, err := dt.Apply(X)
	if err != nil {
		return nil, nil, err
	}
	return dt, leaves, nil
}

// GradientBoostingRegressor は二乗誤差の勾配ブースティング
type GradientBoostingRegressor struct {
	state *model.StateManager
	boostingParams

	init_      float64
	estimators []*tree.DecisionTreeRegressor
}

// NewGradientBoostingRegressor creates a regressor with 100 depth-3 stages
// and learning rate 0.1.
func NewGradientBoostingRegressor(opts ...BoostingOption) *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		state:          model.NewStateManager(),
		boostingParams: newBoostingParams(opts),
	}
}

// Fit starts from the target mean and adds one residual tree per stage.
func (gb *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")

	rows, cols, target, err := model.CheckXY("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := gb.validate(); err != nil {
		return err
	}

	var mean float64
	for _, v := range target {
		mean += v
	}
	mean /= float64(rows)

	raw := make([]float64, rows)
	for i := range raw {
		raw[i] = mean
	}
	rng := gb.newRand()
	residual := make([]float64, rows)
	gb.estimators = make([]*tree.DecisionTreeRegressor, 0, gb.nEstimators)
	for m := 0; m < gb.nEstimators; m++ {
		for i := range residual {
			residual[i] = target[i] - raw[i]
		}
		dt, leaves, err := gb.fitStage(X, residual, rng.Int63())
		if err != nil {
			return err
		}
		for i, leaf := range leaves {
			raw[i] += gb.learningRate * dt.Tree().LeafValue(leaf)[0]
		}
		gb.estimators = append(gb.estimators, dt)
	}

	gb.init_ = mean
	gb.state.SetDimensions(cols, rows)
	gb.state.SetFitted()
	return nil
}

// Predict sums the shrunken stage predictions on top of the initial mean.
func (gb *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := gb.state.CheckPredictInput("GradientBoostingRegressor", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, 0)
	for i := 0; i < rows; i++ {
		row = model.RowToSlice(X, i, row)
		v := gb.init_
		for _, dt := range gb.estimators {
			t := dt.Tree()
			v += gb.learningRate * t.LeafValue(t.Apply(row))[0]
		}
		out.Set(i, 0, v)
	}
	return out, nil
}

// GetParams returns the hyperparameters.
func (gb *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return gb.getParams()
}

// GradientBoostingClassifier は対数損失の勾配ブースティング。2クラスでは
// 1本、多クラスではクラスごとに1本の木を各ステージで学習する
type GradientBoostingClassifier struct {
	state *model.StateManager
	boostingParams

	classes_   []float64
	init_      []float64
	estimators [][]*tree.DecisionTreeRegressor // [stage][output]
}

// NewGradientBoostingClassifier creates a classifier with 100 depth-3 stages
// and learning rate 0.1.
func NewGradientBoostingClassifier(opts ...BoostingOption) *GradientBoostingClassifier {
	return &GradientBoostingClassifier{
		state:          model.NewStateManager(),
		boostingParams: newBoostingParams(opts),
	}
}

// Fit runs the boosting stages. Leaf values are replaced by a single Newton
// step on the log loss.
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingClassifier.Fit")

	rows, cols, target, err := model.CheckXY("GradientBoostingClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := gb.validate(); err != nil {
		return err
	}
	classes := model.UniqueSorted(target)
	if len(classes) < 2 {
		return errors.NewValueError("GradientBoostingClassifier.Fit", "y contains only one class")
	}
	index := model.ClassIndex(classes)
	nClasses := len(classes)

	nOut := nClasses
	if nClasses == 2 {
		nOut = 1
	}

	// onehot[i][k] は i 行目がクラス k なら1
	onehot := make([][]float64, rows)
	prior := make([]float64, nClasses)
	for i, v := range target {
		onehot[i] = make([]float64, nClasses)
		onehot[i][index[v]] = 1
		prior[index[v]]++
	}

	initScores := make([]float64, nOut)
	if nOut == 1 {
		p := prior[1] / float64(rows)
		initScores[0] = math.Log(p / (1 - p))
	} else {
		for k := range initScores {
			initScores[k] = math.Log(prior[k] / float64(rows))
		}
	}

	raw := make([][]float64, rows)
	for i := range raw {
		raw[i] = append([]float64(nil), initScores...)
	}

	rng := gb.newRand()
	residual := make([]float64, rows)
	proba := make([]float64, nClasses)
	gb.estimators = make([][]*tree.DecisionTreeRegressor, 0, gb.nEstimators)
	for m := 0; m < gb.nEstimators; m++ {
		// 各ステージの残差は同じ raw から計算する
		probs := make([][]float64, rows)
		for i := range raw {
			gb.probabilities(raw[i], proba)
			probs[i] = append([]float64(nil), proba...)
		}

		stage := make([]*tree.DecisionTreeRegressor, nOut)
		for k := 0; k < nOut; k++ {
			col := k
			if nOut == 1 {
				col = 1
			}
			for i := range residual {
				residual[i] = onehot[i][col] - probs[i][col]
			}
			dt, leaves, err := gb.fitStage(X, residual, rng.Int63())
			if err != nil {
				return err
			}
			newtonLeaves(dt.Tree(), leaves, residual, nClasses)
			for i, leaf := range leaves {
				raw[i][k] += gb.learningRate * dt.Tree().LeafValue(leaf)[0]
			}
			stage[k] = dt
		}
		gb.estimators = append(gb.estimators, stage)
	}

	gb.classes_ = classes
	gb.init_ = initScores
	gb.state.SetDimensions(cols, rows)
	gb.state.SetFitted()
	return nil
}

// newtonLeaves replaces every leaf value by sum(r) / sum(|r|(1-|r|)), scaled
// by (K-1)/K for K > 2 classes.
func newtonLeaves(t *tree.Tree, leaves []int, residual []float64, nClasses int) {
	num := make(map[int]float64)
	den := make(map[int]float64)
	for i, leaf := range leaves {
		r := residual[i]
		num[leaf] += r
		den[leaf] += math.Abs(r) * (1 - math.Abs(r))
	}
	factor := 1.0
	if nClasses > 2 {
		factor = float64(nClasses-1) / float64(nClasses)
	}
	for leaf, n := range num {
		v := 0.0
		if d := den[leaf]; math.Abs(d) >= 1e-150 {
			v = factor * n / d
		}
		t.SetLeafValue(leaf, []float64{v})
	}
}

// probabilities converts raw scores into class probabilities in dst.
func (gb *GradientBoostingClassifier) probabilities(raw, dst []float64) {
	if len(raw) == 1 {
		p := errors.Sigmoid(raw[0])
		dst[0], dst[1] = 1-p, p
		return
	}
	copy(dst, raw)
	errors.Softmax(dst)
}

// PredictProba returns the class probabilities.
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := gb.state.CheckPredictInput("GradientBoostingClassifier", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, len(gb.classes_), nil)
	row := make([]float64, 0)
	raw := make([]float64, len(gb.init_))
	for i := 0; i < rows; i++ {
		row = model.RowToSlice(X, i, row)
		copy(raw, gb.init_)
		for _, stage := range gb.estimators {
			for k, dt := range stage {
				t := dt.Tree()
				raw[k] += gb.learningRate * t.LeafValue(t.Apply(row))[0]
			}
		}
		gb.probabilities(raw, out.RawRowView(i))
	}
	return out, nil
}

// Predict returns the most probable class.
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := gb.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxClasses(proba.(*mat.Dense), gb.classes_), nil
}

// Classes returns the sorted class labels seen during Fit.
func (gb *GradientBoostingClassifier) Classes() []float64 {
	return gb.classes_
}

// GetParams returns the hyperparameters.
func (gb *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return gb.getParams()
}
