// Package neural_network implements multi-layer perceptrons trained with Adam.
package neural_network

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// outputKind は出力層の活性化関数
type outputKind int

const (
	outputIdentity outputKind = iota
	outputLogistic
	outputSoftmax
)

// Option はMLPの設定オプション
type Option func(*params)

type params struct {
	hiddenLayerSizes []int
	alpha            float64
	batchSize        int // 0 は min(200, n)
	learningRate     float64
	maxIter          int
	tol              float64
	nIterNoChange    int
	randomState      int64
}

// WithHiddenLayerSizes sets the number of ReLU units in each hidden layer.
func WithHiddenLayerSizes(sizes ...int) Option {
	return func(p *params) {
		p.hiddenLayerSizes = append([]int(nil), sizes...)
	}
}

// WithAlpha sets the L2 penalty.
func WithAlpha(alpha float64) Option {
	return func(p *params) {
		p.alpha = alpha
	}
}

// WithBatchSize sets the minibatch size. Zero means min(200, n_samples).
func WithBatchSize(n int) Option {
	return func(p *params) {
		p.batchSize = n
	}
}

// WithLearningRate sets the initial Adam step size.
func WithLearningRate(lr float64) Option {
	return func(p *params) {
		p.learningRate = lr
	}
}

// WithMaxIter sets the maximum number of epochs.
func WithMaxIter(n int) Option {
	return func(p *params) {
		p.maxIter = n
	}
}

// WithTol sets the minimum loss improvement that resets the patience counter.
func WithTol(tol float64) Option {
	return func(p *params) {
		p.tol = tol
	}
}

// WithRandomState sets the seed for weight initialisation and shuffling.
// Negative values seed from the clock.
func WithRandomState(seed int64) Option {
	return func(p *params) {
		p.randomState = seed
	}
}

func newParams(opts []Option) params {
	p := params{
		hiddenLayerSizes: []int{100},
		alpha:            1e-4,
		learningRate:     1e-3,
		maxIter:          200,
		tol:              1e-4,
		nIterNoChange:    10,
		randomState:      -1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p *params) validate() error {
	if p.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be positive", p.maxIter)
	}
	if p.learningRate <= 0 {
		return errors.NewValidationError("learning_rate_init", "must be positive", p.learningRate)
	}
	if p.alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", p.alpha)
	}
	for _, s := range p.hiddenLayerSizes {
		if s < 1 {
			return errors.NewValidationError("hidden_layer_sizes", "must be positive", p.hiddenLayerSizes)
		}
	}
	return nil
}

func (p *params) getParams() map[string]interface{} {
	return map[string]interface{}{
		"hidden_layer_sizes": p.hiddenLayerSizes,
		"activation":         "relu",
		"solver":             "adam",
		"alpha":              p.alpha,
		"batch_size":         p.batchSize,
		"learning_rate_init": p.learningRate,
		"max_iter":           p.maxIter,
		"tol":                p.tol,
		"n_iter_no_change":   p.nIterNoChange,
		"random_state":       p.randomState,
	}
}

func (p *params) newRand() *rand.Rand {
	if p.randomState >= 0 {
		return rand.New(rand.NewSource(p.randomState))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// network は全結合層の重みとAdamの状態を持つ
type network struct {
	weights []*mat.Dense // weights[l] は (fan_in × fan_out)
	biases  [][]float64
	output  outputKind

	// Adam のモーメント
	mW, vW []*mat.Dense
	mB, vB [][]float64
	step   int

	lossCurve []float64
	nIter     int
}

// newNetwork initialises weights uniformly in ±sqrt(6/(fan_in+fan_out)).
func newNetwork(layers []int, output outputKind, rng *rand.Rand) *network {
	n := &network{output: output}
	for l := 0; l < len(layers)-1; l++ {
		fanIn, fanOut := layers[l], layers[l+1]
		bound := math.Sqrt(6 / float64(fanIn+fanOut))
		w := mat.NewDense(fanIn, fanOut, nil)
		w.Apply(func(_, _ int, _ float64) float64 { return (rng.Float64()*2 - 1) * bound }, w)
		b := make([]float64, fanOut)
		for j := range b {
			b[j] = (rng.Float64()*2 - 1) * bound
		}
		n.weights = append(n.weights, w)
		n.biases = append(n.biases, b)
		n.mW = append(n.mW, mat.NewDense(fanIn, fanOut, nil))
		n.vW = append(n.vW, mat.NewDense(fanIn, fanOut, nil))
		n.mB = append(n.mB, make([]float64, fanOut))
		n.vB = append(n.vB, make([]float64, fanOut))
	}
	return n
}

// forward returns the activations of every layer, input included.
func (n *network) forward(X mat.Matrix) []*mat.Dense {
	acts := []*mat.Dense{mat.DenseCopyOf(X)}
	last := len(n.weights) - 1
	for l, w := range n.weights {
		var z mat.Dense
		z.Mul(acts[l], w)
		b := n.biases[l]
		rows, _ := z.Dims()
		for i := 0; i < rows; i++ {
			row := z.RawRowView(i)
			for j := range row {
				row[j] += b[j]
			}
			if l < last {
				for j, v := range row {
					row[j] = math.Max(v, 0)
				}
				continue
			}
			switch n.output {
			case outputLogistic:
				for j, v := range row {
					row[j] = errors.Sigmoid(v)
				}
			case outputSoftmax:
				errors.Softmax(row)
			}
		}
		acts = append(acts, &z)
	}
	return acts
}

// loss は出力と目標の損失（L2項を除く）の平均
func (n *network) loss(out, Y *mat.Dense) float64 {
	rows, cols := out.Dims()
	var total float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			p, y := out.At(i, j), Y.At(i, j)
			switch n.output {
			case outputIdentity:
				total += (y - p) * (y - p) / 2
			case outputLogistic:
				total -= y*errors.StabilizeLog(p) + (1-y)*errors.StabilizeLog(1-p)
			case outputSoftmax:
				if y > 0 {
					total -= y * errors.StabilizeLog(p)
				}
			}
		}
	}
	return total / float64(rows)
}

// trainBatch runs one forward/backward pass and one Adam update, returning
// the penalised batch loss.
func (n *network) trainBatch(p *params, X, Y *mat.Dense) float64 {
	acts := n.forward(X)
	rows, _ := X.Dims()
	out := acts[len(acts)-1]

	var penalty float64
	for _, w := range n.weights {
		penalty += mat.Sum(mulElem(w, w))
	}
	loss := n.loss(out, Y) + 0.5*p.alpha*penalty/float64(rows)

	// 出力層の誤差は3種類の出力すべてで (出力 - 目標)
	delta := &mat.Dense{}
	delta.Sub(out, Y)

	gradW := make([]*mat.Dense, len(n.weights))
	gradB := make([][]float64, len(n.weights))
	for l := len(n.weights) - 1; l >= 0; l-- {
		var gw mat.Dense
		gw.Mul(acts[l].T(), delta)
		gw.Scale(1/float64(rows), &gw)
		var reg mat.Dense
		reg.Scale(p.alpha/float64(rows), n.weights[l])
		gw.Add(&gw, &reg)
		gradW[l] = &gw

		_, cols := delta.Dims()
		gb := make([]float64, cols)
		for i := 0; i < rows; i++ {
			for j, v := range delta.RawRowView(i) {
				gb[j] += v / float64(rows)
			}
		}
		gradB[l] = gb

		if l > 0 {
			prev := &mat.Dense{}
			prev.Mul(delta, n.weights[l].T())
			a := acts[l]
			prev.Apply(func(i, j int, v float64) float64 {
				if a.At(i, j) <= 0 {
					return 0
				}
				return v
			}, prev)
			delta = prev
		}
	}

	n.adam(p, gradW, gradB)
	return loss
}

func mulElem(a, b *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.MulElem(a, b)
	return &out
}

func (n *network) adam(p *params, gradW []*mat.Dense, gradB [][]float64) {
	const (
		beta1 = 0.9
		beta2 = 0.999
		eps   = 1e-8
	)
	n.step++
	t := float64(n.step)
	lr := p.learningRate * math.Sqrt(1-math.Pow(beta2, t)) / (1 - math.Pow(beta1, t))

	update := func(param, m, v, g []float64) {
		for k := range param {
			m[k] = beta1*m[k] + (1-beta1)*g[k]
			v[k] = beta2*v[k] + (1-beta2)*g[k]*g[k]
			param[k] -= lr * m[k] / (math.Sqrt(v[k]) + eps)
		}
	}
	for l := range n.weights {
		update(n.weights[l].RawMatrix().Data, n.mW[l].RawMatrix().Data, n.vW[l].RawMatrix().Data, gradW[l].RawMatrix().Data)
		update(n.biases[l], n.mB[l], n.vB[l], gradB[l])
	}
}

// fit runs minibatch Adam epochs until the loss stops improving by tol for
// nIterNoChange consecutive epochs or maxIter is reached. A NaN or infinite
// epoch loss stops training with a NumericalInstabilityError.
func (n *network) fit(p *params, X, Y *mat.Dense, rng *rand.Rand, name string) error {
	rows, xCols := X.Dims()
	_, yCols := Y.Dims()
	batch := p.batchSize
	if batch <= 0 {
		batch = min(200, rows)
	}
	batch = min(batch, rows)

	bestLoss := math.Inf(1)
	noImprovement := 0
	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	xb := mat.NewDense(batch, xCols, nil)
	yb := mat.NewDense(batch, yCols, nil)
	converged := false
	for epoch := 0; epoch < p.maxIter; epoch++ {
		rng.Shuffle(rows, func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		var epochLoss float64
		for start := 0; start < rows; start += batch {
			end := min(start+batch, rows)
			size := end - start
			xs := xb.Slice(0, size, 0, xCols).(*mat.Dense)
			ys := yb.Slice(0, size, 0, yCols).(*mat.Dense)
			for r := 0; r < size; r++ {
				xs.SetRow(r, X.RawRowView(idx[start+r]))
				ys.SetRow(r, Y.RawRowView(idx[start+r]))
			}
			epochLoss += n.trainBatch(p, xs, ys) * float64(size)
		}
		epochLoss /= float64(rows)
		n.lossCurve = append(n.lossCurve, epochLoss)
		n.nIter = epoch + 1
		if err := errors.CheckScalar(name+".fit", epochLoss, n.nIter); err != nil {
			return err
		}

		if epochLoss > bestLoss-p.tol {
			noImprovement++
		} else {
			noImprovement = 0
		}
		if epochLoss < bestLoss {
			bestLoss = epochLoss
		}
		if noImprovement > p.nIterNoChange {
			converged = true
			break
		}
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning(name, n.nIter,
			"stochastic optimizer: maximum iterations reached and the optimization hasn't converged yet"))
	}
	return nil
}
