package svm

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/core/model"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// SVR はRBFカーネルのε-サポートベクター回帰
type SVR struct {
	state *model.StateManager
	params

	X      *mat.Dense
	gamma_ float64
	m      *machine
}

// NewSVR creates a regressor with C=1, epsilon=0.1 and gamma="scale".
func NewSVR(opts ...Option) *SVR {
	return &SVR{
		state:  model.NewStateManager(),
		params: newParams(opts),
	}
}

// Fit solves the ε-SVR dual as a 2n-variable SMO problem: the first n
// variables are α and the last n are α*.
func (svr *SVR) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SVR.Fit")

	rows, cols, target, err := model.CheckXY("SVR.Fit", X, y)
	if err != nil {
		return err
	}
	if err := svr.validate(); err != nil {
		return err
	}
	if svr.epsilon < 0 {
		return errors.NewValidationError("epsilon", "must be non-negative", svr.epsilon)
	}

	Xd := mat.DenseCopyOf(X)
	gamma := svr.resolveGamma(Xd)
	cache := newKernelCache(Xd, gamma)

	l := 2 * rows
	sign := make([]float64, l)
	p := make([]float64, l)
	sample := make([]int, l)
	for i, z := range target {
		sign[i], sign[i+rows] = 1, -1
		p[i] = svr.epsilon - z
		p[i+rows] = svr.epsilon + z
		sample[i], sample[i+rows] = i, i
	}

	prob := &smoProblem{y: sign, p: p, sample: sample, c: svr.c, eps: svr.tol, maxIter: svr.maxIter, kernel: cache}
	res := prob.solve()
	if !res.converged {
		errors.Warn(errors.NewConvergenceWarning("SVR", res.iter, "solver terminated early; consider pre-processing your data"))
	}

	m := &machine{rho: res.rho}
	for i := 0; i < rows; i++ {
		if c := res.alpha[i] - res.alpha[i+rows]; c != 0 {
			m.support = append(m.support, i)
			m.coef = append(m.coef, c)
		}
	}

	svr.X = Xd
	svr.gamma_ = gamma
	svr.m = m
	svr.state.SetDimensions(cols, rows)
	svr.state.SetFitted()
	return nil
}

// Predict evaluates Σ (α_i - α*_i) K(x_i, x) - ρ.
func (svr *SVR) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := svr.state.CheckPredictInput("SVR", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, 0)
	kr := make([]float64, svr.X.RawMatrix().Rows)
	for i := 0; i < rows; i++ {
		row = model.RowToSlice(X, i, row)
		for _, s := range svr.m.support {
			kr[s] = rbf(svr.X.RawRowView(s), row, svr.gamma_)
		}
		out.Set(i, 0, svr.m.decision(kr))
	}
	return out, nil
}

// NSupport returns the number of support vectors.
func (svr *SVR) NSupport() int {
	if svr.m == nil {
		return 0
	}
	return len(svr.m.support)
}

// GetParams returns the hyperparameters.
func (svr *SVR) GetParams() map[string]interface{} {
	gamma := interface{}(svr.gamma)
	if svr.gamma == 0 {
		gamma = "scale"
	}
	return map[string]interface{}{
		"C":       svr.c,
		"epsilon": svr.epsilon,
		"kernel":  "rbf",
		"gamma":   gamma,
		"tol":     svr.tol,
	}
}
