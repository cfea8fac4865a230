package linear_model

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/core/model"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// LinearRegression is an ordinary least squares model. Coefficients are the
// minimum-norm solution, so collinear features (such as a full set of dummy
// columns) do not make the fit fail.
type LinearRegression struct {
	state *model.StateManager

	fitIntercept bool

	coef_      []float64
	intercept_ float64
	rank_      int
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// Fit はSVDによる最小二乗解でモデルを学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	rows, cols, target, err := model.CheckXY("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}

	// 切片を学習する場合は中心化してから解く
	xMean := make([]float64, cols)
	var yMean float64
	if lr.fitIntercept {
		for j := 0; j < cols; j++ {
			for i := 0; i < rows; i++ {
				xMean[j] += X.At(i, j)
			}
			xMean[j] /= float64(rows)
		}
		for _, v := range target {
			yMean += v
		}
		yMean /= float64(rows)
	}

	Xc := mat.NewDense(rows, cols, nil)
	Xc.Apply(func(i, j int, _ float64) float64 { return X.At(i, j) - xMean[j] }, Xc)
	yc := mat.NewDense(rows, 1, nil)
	for i, v := range target {
		yc.Set(i, 0, v-yMean)
	}

	var svd mat.SVD
	if ok := svd.Factorize(Xc, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD factorization failed", errors.ErrSingularMatrix)
	}
	rcond := float64(max(rows, cols)) * (math.Nextafter(1, 2) - 1)
	rank := svd.Rank(rcond)
	if rank == 0 {
		// すべての特徴量が定数
		lr.coef_ = make([]float64, cols)
	} else {
		var coef mat.Dense
		svd.SolveTo(&coef, yc, rank)
		lr.coef_ = mat.Col(nil, 0, &coef)
	}

	lr.intercept_ = yMean
	for j, c := range lr.coef_ {
		lr.intercept_ -= c * xMean[j]
	}
	lr.rank_ = rank

	lr.state.SetDimensions(cols, rows)
	lr.state.SetFitted()
	return nil
}

// Predict は学習済みモデルで予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.CheckPredictInput("LinearRegression", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	var out mat.Dense
	out.Mul(X, mat.NewVecDense(len(lr.coef_), lr.coef_))
	for i := 0; i < rows; i++ {
		out.Set(i, 0, out.At(i, 0)+lr.intercept_)
	}
	return &out, nil
}

// Coef returns a copy of the learned coefficients.
func (lr *LinearRegression) Coef() []float64 {
	return append([]float64(nil), lr.coef_...)
}

// Intercept returns the learned intercept.
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept_
}

// Rank returns the numerical rank of the centred design matrix.
func (lr *LinearRegression) Rank() int {
	return lr.rank_
}

// IsFitted reports whether Fit has completed.
func (lr *LinearRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

// GetParams はモデルのハイパーパラメータを取得
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
	}
}
