// Package naive_bayes implements Gaussian naive Bayes.
package naive_bayes

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/mlcompare/core/model"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// GaussianNB は特徴量ごとに独立な正規分布を仮定するナイーブベイズ分類器
type GaussianNB struct {
	state *model.StateManager

	varSmoothing float64

	classes_    []float64
	classPrior_ []float64
	theta_      [][]float64 // クラス別の平均
	var_        [][]float64 // クラス別の分散（平滑化込み）
	epsilon_    float64
}

// Option はGaussianNBの設定オプション
type Option func(*GaussianNB)

// WithVarSmoothing sets the fraction of the largest feature variance added to
// every variance.
func WithVarSmoothing(v float64) Option {
	return func(nb *GaussianNB) {
		nb.varSmoothing = v
	}
}

// NewGaussianNB creates a GaussianNB with var_smoothing 1e-9.
func NewGaussianNB(opts ...Option) *GaussianNB {
	nb := &GaussianNB{
		state:        model.NewStateManager(),
		varSmoothing: 1e-9,
	}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// Fit estimates per-class means, variances and priors.
func (nb *GaussianNB) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GaussianNB.Fit")

	rows, cols, target, err := model.CheckXY("GaussianNB.Fit", X, y)
	if err != nil {
		return err
	}
	if nb.varSmoothing < 0 {
		return errors.NewValidationError("var_smoothing", "must be non-negative", nb.varSmoothing)
	}

	classes := model.UniqueSorted(target)
	index := model.ClassIndex(classes)
	members := make([][]int, len(classes))
	for i, v := range target {
		k := index[v]
		members[k] = append(members[k], i)
	}

	// 全体の最大分散に比例した平滑化項
	var maxVar float64
	for j := 0; j < cols; j++ {
		_, v := stat.PopMeanVariance(mat.Col(nil, j, X), nil)
		maxVar = math.Max(maxVar, v)
	}
	nb.epsilon_ = nb.varSmoothing * maxVar

	nb.theta_ = make([][]float64, len(classes))
	nb.var_ = make([][]float64, len(classes))
	nb.classPrior_ = make([]float64, len(classes))
	values := make([]float64, 0, rows)
	for k, idx := range members {
		nb.theta_[k] = make([]float64, cols)
		nb.var_[k] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			values = values[:0]
			for _, i := range idx {
				values = append(values, X.At(i, j))
			}
			mean, v := stat.PopMeanVariance(values, nil)
			nb.theta_[k][j] = mean
			nb.var_[k][j] = v + nb.epsilon_
		}
		nb.classPrior_[k] = float64(len(idx)) / float64(rows)
	}
	nb.classes_ = classes

	nb.state.SetDimensions(cols, rows)
	nb.state.SetFitted()
	return nil
}

// jointLogLikelihood は各クラスの log P(c) + Σ log N(x_j | μ, σ²) を dst に書く
func (nb *GaussianNB) jointLogLikelihood(row, dst []float64) {
	for k := range nb.classes_ {
		ll := math.Log(nb.classPrior_[k])
		for j, x := range row {
			v := nb.var_[k][j]
			if v == 0 {
				// 平滑化なしで分散0の特徴量は平均と一致するかどうかだけで判定する
				if x != nb.theta_[k][j] {
					ll = math.Inf(-1)
				}
				continue
			}
			ll += distuv.Normal{Mu: nb.theta_[k][j], Sigma: math.Sqrt(v)}.LogProb(x)
		}
		dst[k] = ll
	}
}

// PredictLogProba returns the normalised log posterior of every class.
func (nb *GaussianNB) PredictLogProba(X mat.Matrix) (mat.Matrix, error) {
	if err := nb.state.CheckPredictInput("GaussianNB", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, len(nb.classes_), nil)
	row := make([]float64, 0)
	for i := 0; i < rows; i++ {
		row = model.RowToSlice(X, i, row)
		dst := out.RawRowView(i)
		nb.jointLogLikelihood(row, dst)
		lse := errors.LogSumExp(dst)
		floats.AddConst(-lse, dst)
	}
	return out, nil
}

// PredictProba returns the posterior probability of every class.
func (nb *GaussianNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	logProba, err := nb.PredictLogProba(X)
	if err != nil {
		return nil, err
	}
	out := mat.DenseCopyOf(logProba)
	out.Apply(func(_, _ int, v float64) float64 { return math.Exp(v) }, out)
	return out, nil
}

// Predict returns the class with the highest posterior.
func (nb *GaussianNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := nb.state.CheckPredictInput("GaussianNB", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, 0)
	jll := make([]float64, len(nb.classes_))
	for i := 0; i < rows; i++ {
		row = model.RowToSlice(X, i, row)
		nb.jointLogLikelihood(row, jll)
		out.Set(i, 0, nb.classes_[floats.MaxIdx(jll)])
	}
	return out, nil
}

// Classes returns the sorted class labels seen during Fit.
func (nb *GaussianNB) Classes() []float64 {
	return nb.classes_
}

// GetParams returns the hyperparameters.
func (nb *GaussianNB) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"var_smoothing": nb.varSmoothing,
	}
}
