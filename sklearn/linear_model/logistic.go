package linear_model

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/mlcompare/core/model"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// LogisticRegression はL2正則化付きロジスティック回帰。2クラスはシグモイド、
// 多クラスはソフトマックス（multinomial）で、L-BFGSにより学習する
type LogisticRegression struct {
	state *model.StateManager

	// ハイパーパラメータ
	c            float64
	fitIntercept bool
	maxIter      int
	tol          float64

	// 学習パラメータ
	classes_   []float64
	coef_      [][]float64 // [出力][特徴量]。2クラスでは1行
	intercept_ []float64
	nIter_     int
}

// LogisticRegressionOption は設定オプション
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression は C=1.0、max_iter=100 のモデルを作成
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		c:            1.0,
		fitIntercept: true,
		maxIter:      100,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRC は正則化の逆数 C を設定
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.c = c
	}
}

// WithLogisticFitIntercept は切片の学習有無を設定
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter は最大反復回数を設定
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol は勾配の収束閾値を設定
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// Fit はモデルを学習する。最大反復回数に達した場合は ConvergenceWarning を
// 出すが、その時点の係数で学習済みとなる
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")

	rows, cols, target, err := model.CheckXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	if lr.c <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.c)
	}
	if lr.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be positive", lr.maxIter)
	}

	classes := model.UniqueSorted(target)
	if len(classes) < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			"this solver needs samples of at least 2 classes in the data")
	}
	index := model.ClassIndex(classes)
	labels := make([]int, rows)
	for i, v := range target {
		labels[i] = index[v]
	}

	nOut := len(classes)
	if nOut == 2 {
		nOut = 1
	}
	obj := &logisticObjective{
		X:            X,
		labels:       labels,
		nOut:         nOut,
		nFeatures:    cols,
		alpha:        1 / lr.c,
		fitIntercept: lr.fitIntercept,
	}

	problem := optimize.Problem{
		Func: obj.loss,
		Grad: obj.grad,
	}
	settings := &optimize.Settings{
		MajorIterations:   lr.maxIter,
		GradientThreshold: lr.tol,
	}
	result, err := optimize.Minimize(problem, make([]float64, nOut*(cols+1)), settings, &optimize.LBFGS{})
	if result == nil {
		return errors.NewModelError("LogisticRegression.Fit", "optimization failed", err)
	}
	if err != nil || result.Status == optimize.IterationLimit {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", result.Stats.MajorIterations,
			"lbfgs failed to converge; increase the number of iterations"))
	}
	if floats.HasNaN(result.X) {
		return errors.NewNumericalInstabilityError("LogisticRegression.Fit", result.X, result.Stats.MajorIterations)
	}

	lr.classes_ = classes
	lr.coef_ = make([][]float64, nOut)
	lr.intercept_ = make([]float64, nOut)
	for k := 0; k < nOut; k++ {
		w := result.X[k*(cols+1) : (k+1)*(cols+1)]
		lr.coef_[k] = append([]float64(nil), w[:cols]...)
		lr.intercept_[k] = w[cols]
	}
	lr.nIter_ = result.Stats.MajorIterations

	lr.state.SetDimensions(cols, rows)
	lr.state.SetFitted()
	return nil
}

// logisticObjective は平均対数損失 + alpha/(2n)·||W||² を表す。
// パラメータは出力ごとに [重み..., 切片] を並べたもの
type logisticObjective struct {
	X            mat.Matrix
	labels       []int
	nOut         int
	nFeatures    int
	alpha        float64
	fitIntercept bool
}

func (o *logisticObjective) scores(w []float64, row []float64, dst []float64) {
	stride := o.nFeatures + 1
	for k := 0; k < o.nOut; k++ {
		wk := w[k*stride : (k+1)*stride]
		z := floats.Dot(wk[:o.nFeatures], row)
		if o.fitIntercept {
			z += wk[o.nFeatures]
		}
		dst[k] = z
	}
}

func (o *logisticObjective) loss(w []float64) float64 {
	n := len(o.labels)
	row := make([]float64, 0)
	z := make([]float64, o.nOut)
	var total float64
	for i := 0; i < n; i++ {
		row = model.RowToSlice(o.X, i, row)
		o.scores(w, row, z)
		if o.nOut == 1 {
			// log(1+exp(z)) - y·z
			total += softplus(z[0]) - float64(o.labels[i])*z[0]
			continue
		}
		total += errors.LogSumExp(z) - z[o.labels[i]]
	}
	return total/float64(n) + o.alpha/(2*float64(n))*o.penalty(w)
}

func (o *logisticObjective) grad(g, w []float64) {
	n := len(o.labels)
	stride := o.nFeatures + 1
	for j := range g {
		g[j] = 0
	}
	row := make([]float64, 0)
	z := make([]float64, o.nOut)
	for i := 0; i < n; i++ {
		row = model.RowToSlice(o.X, i, row)
		o.scores(w, row, z)
		if o.nOut == 1 {
			z[0] = errors.Sigmoid(z[0]) - float64(o.labels[i])
		} else {
			errors.Softmax(z)
			z[o.labels[i]]--
		}
		for k := 0; k < o.nOut; k++ {
			gk := g[k*stride : (k+1)*stride]
			floats.AddScaled(gk[:o.nFeatures], z[k], row)
			if o.fitIntercept {
				gk[o.nFeatures] += z[k]
			}
		}
	}
	inv := 1 / float64(n)
	floats.Scale(inv, g)
	for k := 0; k < o.nOut; k++ {
		gk := g[k*stride : (k+1)*stride]
		wk := w[k*stride : (k+1)*stride]
		floats.AddScaled(gk[:o.nFeatures], o.alpha*inv, wk[:o.nFeatures])
	}
}

// penalty は切片を除いた重みの二乗和
func (o *logisticObjective) penalty(w []float64) float64 {
	stride := o.nFeatures + 1
	var s float64
	for k := 0; k < o.nOut; k++ {
		wk := w[k*stride : k*stride+o.nFeatures]
		s += floats.Dot(wk, wk)
	}
	return s
}

func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

// DecisionFunction は各出力の線形スコアを返す（2クラスでは n×1）
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.CheckPredictInput("LogisticRegression", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, len(lr.coef_), nil)
	row := make([]float64, 0)
	for i := 0; i < rows; i++ {
		row = model.RowToSlice(X, i, row)
		for k, w := range lr.coef_ {
			out.Set(i, k, floats.Dot(w, row)+lr.intercept_[k])
		}
	}
	return out, nil
}

// PredictProba は各クラスの確率を返す。列は Classes() の順
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	rows, _ := scores.Dims()
	out := mat.NewDense(rows, len(lr.classes_), nil)
	for i := 0; i < rows; i++ {
		dst := out.RawRowView(i)
		if len(lr.coef_) == 1 {
			p := errors.Sigmoid(scores.At(i, 0))
			dst[0], dst[1] = 1-p, p
			continue
		}
		mat.Row(dst, i, scores)
		errors.Softmax(dst)
	}
	return out, nil
}

// Predict は最も確率の高いクラスを返す
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, _ := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, lr.classes_[floats.MaxIdx(proba.(*mat.Dense).RawRowView(i))])
	}
	return out, nil
}

// Score は正解率を返す
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := y.Dims()
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

// Classes は学習時のクラスラベルを昇順で返す
func (lr *LogisticRegression) Classes() []float64 {
	return lr.classes_
}

// NIter は実行された反復回数を返す
func (lr *LogisticRegression) NIter() int {
	return lr.nIter_
}

// GetParams はハイパーパラメータを取得
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":             lr.c,
		"fit_intercept": lr.fitIntercept,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
		"solver":        "lbfgs",
	}
}
