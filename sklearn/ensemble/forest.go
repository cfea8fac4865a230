// Package ensemble provides bagged and boosted tree ensembles.
package ensemble

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/core/model"
	"github.com/YuminosukeSato/mlcompare/core/parallel"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
	"github.com/YuminosukeSato/mlcompare/sklearn/tree"
)

// forestParams はランダムフォレストのハイパーパラメータ
type forestParams struct {
	nEstimators    int
	maxDepth       int
	minSamplesLeaf int
	maxFeatures    string // "sqrt", "log2", "all"
	bootstrap      bool
	randomState    int64
	nJobs          int
}

// ForestOption はランダムフォレストの設定オプション
type ForestOption func(*forestParams)

// WithForestNEstimators sets the number of trees.
func WithForestNEstimators(n int) ForestOption {
	return func(p *forestParams) {
		p.nEstimators = n
	}
}

// WithForestMaxDepth limits the depth of every tree. Negative means unlimited.
func WithForestMaxDepth(depth int) ForestOption {
	return func(p *forestParams) {
		p.maxDepth = depth
	}
}

// WithForestMaxFeatures sets the per-split feature budget: "sqrt", "log2" or "all".
func WithForestMaxFeatures(mode string) ForestOption {
	return func(p *forestParams) {
		p.maxFeatures = mode
	}
}

// WithForestBootstrap toggles bootstrap sampling.
func WithForestBootstrap(b bool) ForestOption {
	return func(p *forestParams) {
		p.bootstrap = b
	}
}

// WithForestRandomState sets the seed. Negative values seed from the clock.
func WithForestRandomState(seed int64) ForestOption {
	return func(p *forestParams) {
		p.randomState = seed
	}
}

// WithForestNJobs sets the number of goroutines used to fit and predict.
// Values <= 0 use every CPU.
func WithForestNJobs(n int) ForestOption {
	return func(p *forestParams) {
		p.nJobs = n
	}
}

func newForestParams(maxFeatures string, opts []ForestOption) forestParams {
	p := forestParams{
		nEstimators:    100,
		maxDepth:       -1,
		minSamplesLeaf: 1,
		maxFeatures:    maxFeatures,
		bootstrap:      true,
		randomState:    -1,
		nJobs:          1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p *forestParams) validate() error {
	if p.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be positive", p.nEstimators)
	}
	switch p.maxFeatures {
	case "sqrt", "log2", "all":
	default:
		return errors.NewValidationError("max_features", "must be sqrt, log2 or all", p.maxFeatures)
	}
	return nil
}

func (p *forestParams) getParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     p.nEstimators,
		"max_depth":        p.maxDepth,
		"min_samples_leaf": p.minSamplesLeaf,
		"max_features":     p.maxFeatures,
		"bootstrap":        p.bootstrap,
		"random_state":     p.randomState,
		"n_jobs":           p.nJobs,
	}
}

// featureBudget は1分割あたりに調べる特徴量数を返す
func (p *forestParams) featureBudget(nFeatures int) int {
	var k int
	switch p.maxFeatures {
	case "sqrt":
		k = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		k = int(math.Log2(float64(nFeatures)))
	default:
		k = nFeatures
	}
	if k < 1 {
		k = 1
	}
	return k
}

// plan draws one seed and one bootstrap weight vector per tree from the
// master generator so the ensemble is reproducible regardless of nJobs.
func (p *forestParams) plan(nSamples int) ([]int64, [][]float64) {
	var rng *rand.Rand
	if p.randomState >= 0 {
		rng = rand.New(rand.NewSource(p.randomState))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	seeds := make([]int64, p.nEstimators)
	weights := make([][]float64, p.nEstimators)
	for t := range seeds {
		seeds[t] = rng.Int63()
		if !p.bootstrap {
			continue
		}
		w := make([]float64, nSamples)
		for i := 0; i < nSamples; i++ {
			w[rng.Intn(nSamples)]++
		}
		weights[t] = w
	}
	return seeds, weights
}

func (p *forestParams) treeOptions(nFeatures int, seed int64) []tree.Option {
	return []tree.Option{
		tree.WithMaxDepth(p.maxDepth),
		tree.WithMinSamplesLeaf(p.minSamplesLeaf),
		tree.WithMaxFeatures(p.featureBudget(nFeatures)),
		tree.WithRandomState(seed),
	}
}

// RandomForestClassifier はブートストラップした分類木の確率平均で予測する
type RandomForestClassifier struct {
	state *model.StateManager
	forestParams

	estimators []*tree.DecisionTreeClassifier
	classes_   []float64
}

// NewRandomForestClassifier creates a forest of 100 trees using sqrt(d)
// features per split.
func NewRandomForestClassifier(opts ...ForestOption) *RandomForestClassifier {
	return &RandomForestClassifier{
		state:        model.NewStateManager(),
		forestParams: newForestParams("sqrt", opts),
	}
}

// Fit trains every tree on its own bootstrap sample.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")

	rows, cols, target, err := model.CheckXY("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := rf.validate(); err != nil {
		return err
	}

	seeds, weights := rf.plan(rows)
	trees := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	errs := make([]error, rf.nEstimators)
	parallel.Parallelize(rf.nJobs, rf.nEstimators, func(start, end int) {
		for t := start; t < end; t++ {
			trees[t] = tree.NewDecisionTreeClassifier(rf.treeOptions(cols, seeds[t])...)
			errs[t] = trees[t].FitWeighted(X, y, weights[t])
		}
	})
	for _, e := range errs {
		if e != nil {
			return e
		}
	}

	rf.estimators = trees
	rf.classes_ = model.UniqueSorted(target)
	rf.state.SetDimensions(cols, rows)
	rf.state.SetFitted()
	return nil
}

// PredictProba averages the class distributions of all trees.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.CheckPredictInput("RandomForestClassifier", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	probas := make([]mat.Matrix, len(rf.estimators))
	errs := make([]error, len(rf.estimators))
	parallel.Parallelize(rf.nJobs, len(rf.estimators), func(start, end int) {
		for t := start; t < end; t++ {
			probas[t], errs[t] = rf.estimators[t].PredictProba(X)
		}
	})

	out := mat.NewDense(rows, len(rf.classes_), nil)
	for t, p := range probas {
		if errs[t] != nil {
			return nil, errs[t]
		}
		out.Add(out, p)
	}
	out.Scale(1/float64(len(rf.estimators)), out)
	return out, nil
}

// Predict returns the class with the highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxClasses(proba.(*mat.Dense), rf.classes_), nil
}

// Classes returns the sorted class labels seen during Fit.
func (rf *RandomForestClassifier) Classes() []float64 {
	return rf.classes_
}

// GetFeatureImportances averages the importances of the trees.
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	imps := make([][]float64, len(rf.estimators))
	for t, e := range rf.estimators {
		imps[t] = e.GetFeatureImportances()
	}
	return meanImportances(imps)
}

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return rf.getParams()
}

// RandomForestRegressor はブートストラップした回帰木の平均で予測する
type RandomForestRegressor struct {
	state *model.StateManager
	forestParams

	estimators []*tree.DecisionTreeRegressor
}

// NewRandomForestRegressor creates a forest of 100 trees that consider every
// feature at each split.
func NewRandomForestRegressor(opts ...ForestOption) *RandomForestRegressor {
	return &RandomForestRegressor{
		state:        model.NewStateManager(),
		forestParams: newForestParams("all", opts),
	}
}

// Fit trains every tree on its own bootstrap sample.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	rows, cols, _, err := model.CheckXY("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := rf.validate(); err != nil {
		return err
	}

	seeds, weights := rf.plan(rows)
	trees := make([]*tree.DecisionTreeRegressor, rf.nEstimators)
	errs := make([]error, rf.nEstimators)
	parallel.Parallelize(rf.nJobs, rf.nEstimators, func(start, end int) {
		for t := start; t < end; t++ {
			trees[t] = tree.NewDecisionTreeRegressor(rf.treeOptions(cols, seeds[t])...)
			errs[t] = trees[t].FitWeighted(X, y, weights[t])
		}
	})
	for _, e := range errs {
		if e != nil {
			return e
		}
	}

	rf.estimators = trees
	rf.state.SetDimensions(cols, rows)
	rf.state.SetFitted()
	return nil
}

// Predict averages the predictions of all trees.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.CheckPredictInput("RandomForestRegressor", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	preds := make([]mat.Matrix, len(rf.estimators))
	errs := make([]error, len(rf.estimators))
	parallel.Parallelize(rf.nJobs, len(rf.estimators), func(start, end int) {
		for t := start; t < end; t++ {
			preds[t], errs[t] = rf.estimators[t].Predict(X)
		}
	})

	out := mat.NewDense(rows, 1, nil)
	for t, p := range preds {
		if errs[t] != nil {
			return nil, errs[t]
		}
		out.Add(out, p)
	}
	out.Scale(1/float64(len(rf.estimators)), out)
	return out, nil
}

// GetFeatureImportances averages the importances of the trees.
func (rf *RandomForestRegressor) GetFeatureImportances() []float64 {
	imps := make([][]float64, len(rf.estimators))
	for t, e := range rf.estimators {
		imps[t] = e.GetFeatureImportances()
	}
	return meanImportances(imps)
}

// GetParams returns the hyperparameters.
func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	return rf.getParams()
}

func meanImportances(imps [][]float64) []float64 {
	if len(imps) == 0 {
		return nil
	}
	out := make([]float64, len(imps[0]))
	for _, imp := range imps {
		for j, v := range imp {
			out[j] += v
		}
	}
	for j := range out {
		out[j] /= float64(len(imps))
	}
	return out
}

// argmaxClasses picks, per row, the class with the largest score. Ties go to
// the smaller class label.
func argmaxClasses(scores *mat.Dense, classes []float64) *mat.Dense {
	rows, cols := scores.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		row := scores.RawRowView(i)
		best := 0
		for k := 1; k < cols; k++ {
			if row[k] > row[best] {
				best = k
			}
		}
		out.Set(i, 0, classes[best])
	}
	return out
}
