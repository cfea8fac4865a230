package svm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/core/model"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// minProb はペア確率のクリップ幅
const minProb = 1e-7

// Option はSVMの設定オプション
type Option func(*params)

type params struct {
	c       float64
	epsilon float64
	gamma   float64 // 0 は "scale"
	tol     float64
	maxIter int
}

// WithC sets the penalty parameter C.
func WithC(c float64) Option {
	return func(p *params) {
		p.c = c
	}
}

// WithEpsilon sets the width of the SVR insensitive tube.
func WithEpsilon(eps float64) Option {
	return func(p *params) {
		p.epsilon = eps
	}
}

// WithGamma sets the RBF coefficient. Zero selects 1/(n_features·Var(X)).
func WithGamma(g float64) Option {
	return func(p *params) {
		p.gamma = g
	}
}

// WithTol sets the KKT tolerance of the solver.
func WithTol(tol float64) Option {
	return func(p *params) {
		p.tol = tol
	}
}

// WithMaxIter limits solver iterations. Values <= 0 use the solver default.
func WithMaxIter(n int) Option {
	return func(p *params) {
		p.maxIter = n
	}
}

func newParams(opts []Option) params {
	p := params{c: 1, epsilon: 0.1, tol: 1e-3}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p *params) validate() error {
	if p.c <= 0 {
		return errors.NewValidationError("C", "must be positive", p.c)
	}
	if p.gamma < 0 {
		return errors.NewValidationError("gamma", "must be non-negative", p.gamma)
	}
	return nil
}

func (p *params) resolveGamma(X *mat.Dense) float64 {
	if p.gamma > 0 {
		return p.gamma
	}
	return scaleGamma(X)
}

// machine は1つの二値SVM（またはSVR）の学習結果
type machine struct {
	support []int     // 学習サンプルのインデックス
	coef    []float64 // y_i·α_i（SVRでは α_i - α*_i）
	rho     float64
	probA   float64
	probB   float64
}

func (m *machine) decision(k []float64) float64 {
	var f float64
	for s, i := range m.support {
		f += m.coef[s] * k[i]
	}
	return f - m.rho
}

// SVC はRBFカーネルのサポートベクター分類器。多クラスは one-vs-one で、
// 確率はペアごとのPlattスケーリングを結合して求める
type SVC struct {
	state *model.StateManager
	params

	X        *mat.Dense
	gamma_   float64
	classes_ []float64
	pairs    [][]*machine // pairs[a][b] (a<b)
}

// NewSVC creates a classifier with C=1 and gamma="scale".
func NewSVC(opts ...Option) *SVC {
	return &SVC{
		state:  model.NewStateManager(),
		params: newParams(opts),
	}
}

// Fit trains one machine per pair of classes.
func (svc *SVC) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SVC.Fit")

	rows, cols, target, err := model.CheckXY("SVC.Fit", X, y)
	if err != nil {
		return err
	}
	if err := svc.validate(); err != nil {
		return err
	}
	classes := model.UniqueSorted(target)
	if len(classes) < 2 {
		return errors.NewValueError("SVC.Fit", "the number of classes has to be greater than one")
	}
	index := model.ClassIndex(classes)

	Xd := mat.DenseCopyOf(X)
	gamma := svc.resolveGamma(Xd)
	cache := newKernelCache(Xd, gamma)

	byClass := make([][]int, len(classes))
	for i, v := range target {
		byClass[index[v]] = append(byClass[index[v]], i)
	}

	k := len(classes)
	pairs := make([][]*machine, k)
	for a := 0; a < k; a++ {
		pairs[a] = make([]*machine, k)
		for b := a + 1; b < k; b++ {
			m, err := svc.fitPair(cache, byClass[a], byClass[b])
			if err != nil {
				return err
			}
			pairs[a][b] = m
		}
	}

	svc.X = Xd
	svc.gamma_ = gamma
	svc.classes_ = classes
	svc.pairs = pairs
	svc.state.SetDimensions(cols, rows)
	svc.state.SetFitted()
	return nil
}

// fitPair trains class a (+1) against class b (-1).
func (svc *SVC) fitPair(cache *kernelCache, a, b []int) (*machine, error) {
	sample := append(append([]int(nil), a...), b...)
	l := len(sample)
	y := make([]float64, l)
	p := make([]float64, l)
	for t := range y {
		y[t] = -1
		if t < len(a) {
			y[t] = 1
		}
		p[t] = -1
	}

	prob := &smoProblem{y: y, p: p, sample: sample, c: svc.c, eps: svc.tol, maxIter: svc.maxIter, kernel: cache}
	res := prob.solve()
	if !res.converged {
		errors.Warn(errors.NewConvergenceWarning("SVC", res.iter, "solver terminated early; consider pre-processing your data"))
	}

	m := &machine{rho: res.rho}
	for t, alpha := range res.alpha {
		if alpha > 0 {
			m.support = append(m.support, sample[t])
			m.coef = append(m.coef, y[t]*alpha)
		}
	}

	dec := make([]float64, l)
	for t, i := range sample {
		dec[t] = m.decision(cache.row(i))
	}
	m.probA, m.probB = sigmoidTrain(dec, y)
	return m, nil
}

// kernelRow は x と全学習サンプルのカーネル値を返す
func (svc *SVC) kernelRow(x, dst []float64) []float64 {
	n, _ := svc.X.Dims()
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	for i := 0; i < n; i++ {
		dst[i] = rbf(svc.X.RawRowView(i), x, svc.gamma_)
	}
	return dst
}

// DecisionFunction returns the one-vs-one decision values, one column per
// class pair in the order (0,1), (0,2), ..., (k-2,k-1). Positive values
// favour the first class of the pair.
func (svc *SVC) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := svc.state.CheckPredictInput("SVC", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	k := len(svc.classes_)
	out := mat.NewDense(rows, k*(k-1)/2, nil)
	row := make([]float64, 0)
	var kr []float64
	for i := 0; i < rows; i++ {
		row = model.RowToSlice(X, i, row)
		kr = svc.kernelRow(row, kr)
		col := 0
		for a := 0; a < k; a++ {
			for b := a + 1; b < k; b++ {
				out.Set(i, col, svc.pairs[a][b].decision(kr))
				col++
			}
		}
	}
	return out, nil
}

// Predict returns the class with the most one-vs-one votes. Ties go to the
// smaller class label.
func (svc *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	dec, err := svc.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	rows, _ := dec.Dims()
	k := len(svc.classes_)
	out := mat.NewDense(rows, 1, nil)
	votes := make([]int, k)
	for i := 0; i < rows; i++ {
		for c := range votes {
			votes[c] = 0
		}
		col := 0
		for a := 0; a < k; a++ {
			for b := a + 1; b < k; b++ {
				if dec.At(i, col) > 0 {
					votes[a]++
				} else {
					votes[b]++
				}
				col++
			}
		}
		best := 0
		for c := 1; c < k; c++ {
			if votes[c] > votes[best] {
				best = c
			}
		}
		out.Set(i, 0, svc.classes_[best])
	}
	return out, nil
}

// PredictProba couples the pairwise Platt probabilities into one
// distribution per row.
func (svc *SVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	dec, err := svc.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	rows, _ := dec.Dims()
	k := len(svc.classes_)
	out := mat.NewDense(rows, k, nil)
	r := make([][]float64, k)
	for a := range r {
		r[a] = make([]float64, k)
	}
	for i := 0; i < rows; i++ {
		col := 0
		for a := 0; a < k; a++ {
			for b := a + 1; b < k; b++ {
				m := svc.pairs[a][b]
				p := sigmoidPredict(dec.At(i, col), m.probA, m.probB)
				p = errors.ClipValue(p, minProb, 1-minProb)
				r[a][b] = p
				r[b][a] = 1 - p
				col++
			}
		}
		if k == 2 {
			out.Set(i, 0, r[0][1])
			out.Set(i, 1, r[1][0])
			continue
		}
		coupleProbabilities(r, out.RawRowView(i))
	}
	return out, nil
}

// Classes returns the sorted class labels seen during Fit.
func (svc *SVC) Classes() []float64 {
	return svc.classes_
}

// NSupport returns the number of distinct support vectors.
func (svc *SVC) NSupport() int {
	seen := make(map[int]struct{})
	for _, row := range svc.pairs {
		for _, m := range row {
			if m == nil {
				continue
			}
			for _, i := range m.support {
				seen[i] = struct{}{}
			}
		}
	}
	return len(seen)
}

// GetParams returns the hyperparameters.
func (svc *SVC) GetParams() map[string]interface{} {
	gamma := interface{}(svc.gamma)
	if svc.gamma == 0 {
		gamma = "scale"
	}
	return map[string]interface{}{
		"C":           svc.c,
		"kernel":      "rbf",
		"gamma":       gamma,
		"tol":         svc.tol,
		"probability": true,
	}
}

// sigmoidTrain fits P(y=+1|f) = 1/(1+exp(A·f+B)) by Newton's method with
// backtracking, using smoothed targets.
func sigmoidTrain(dec, labels []float64) (float64, float64) {
	var prior1, prior0 float64
	for _, l := range labels {
		if l > 0 {
			prior1++
		} else {
			prior0++
		}
	}
	const (
		maxIter = 100
		minStep = 1e-10
		sigma   = 1e-12
		eps     = 1e-5
	)
	hi := (prior1 + 1) / (prior1 + 2)
	lo := 1 / (prior0 + 2)
	t := make([]float64, len(labels))
	for i, l := range labels {
		if l > 0 {
			t[i] = hi
		} else {
			t[i] = lo
		}
	}

	objective := func(a, b float64) float64 {
		var f float64
		for i, d := range dec {
			z := d*a + b
			if z >= 0 {
				f += t[i]*z + math.Log1p(math.Exp(-z))
			} else {
				f += (t[i]-1)*z + math.Log1p(math.Exp(z))
			}
		}
		return f
	}

	A, B := 0.0, math.Log((prior0+1)/(prior1+1))
	fval := objective(A, B)
	for iter := 0; iter < maxIter; iter++ {
		h11, h22, h21, g1, g2 := sigma, sigma, 0.0, 0.0, 0.0
		for i, d := range dec {
			z := d*A + B
			var p, q float64
			if z >= 0 {
				p = math.Exp(-z) / (1 + math.Exp(-z))
				q = 1 / (1 + math.Exp(-z))
			} else {
				p = 1 / (1 + math.Exp(z))
				q = math.Exp(z) / (1 + math.Exp(z))
			}
			d2 := p * q
			h11 += d * d * d2
			h22 += d2
			h21 += d * d2
			d1 := t[i] - p
			g1 += d * d1
			g2 += d1
		}
		if math.Abs(g1) < eps && math.Abs(g2) < eps {
			break
		}

		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		step := 1.0
		for step >= minStep {
			newA, newB := A+step*dA, B+step*dB
			if newF := objective(newA, newB); newF < fval+1e-4*step*gd {
				A, B, fval = newA, newB, newF
				break
			}
			step /= 2
		}
		if step < minStep {
			break
		}
	}
	return A, B
}

func sigmoidPredict(dec, A, B float64) float64 {
	z := dec*A + B
	if z >= 0 {
		return math.Exp(-z) / (1 + math.Exp(-z))
	}
	return 1 / (1 + math.Exp(z))
}

// coupleProbabilities solves the pairwise coupling problem of Wu, Lin and
// Weng (2004) for r[a][b] = P(a | a or b).
func coupleProbabilities(r [][]float64, p []float64) {
	k := len(r)
	Q := make([][]float64, k)
	for a := range Q {
		Q[a] = make([]float64, k)
	}
	Qp := make([]float64, k)
	for t := 0; t < k; t++ {
		p[t] = 1 / float64(k)
		for j := 0; j < t; j++ {
			Q[t][t] += r[j][t] * r[j][t]
			Q[t][j] = Q[j][t]
		}
		for j := t + 1; j < k; j++ {
			Q[t][t] += r[j][t] * r[j][t]
			Q[t][j] = -r[j][t] * r[t][j]
		}
	}

	maxIter := max(100, k)
	eps := 0.005 / float64(k)
	for iter := 0; iter < maxIter; iter++ {
		var pQp float64
		for t := 0; t < k; t++ {
			Qp[t] = 0
			for j := 0; j < k; j++ {
				Qp[t] += Q[t][j] * p[j]
			}
			pQp += p[t] * Qp[t]
		}
		var maxErr float64
		for t := 0; t < k; t++ {
			maxErr = math.Max(maxErr, math.Abs(Qp[t]-pQp))
		}
		if maxErr < eps {
			break
		}
		for t := 0; t < k; t++ {
			diff := (-Qp[t] + pQp) / Q[t][t]
			p[t] += diff
			pQp = (pQp + diff*(diff*Q[t][t]+2*Qp[t])) / (1 + diff) / (1 + diff)
			for j := 0; j < k; j++ {
				Qp[j] = (Qp[j] + diff*Q[t][j]) / (1 + diff)
				p[j] /= 1 + diff
			}
		}
	}
}
