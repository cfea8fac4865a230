package neural_network

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/core/model"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

func layerSizes(nIn int, hidden []int, nOut int) []int {
	layers := append([]int{nIn}, hidden...)
	return append(layers, nOut)
}

// MLPClassifier は多層パーセプトロン分類器。2クラスはシグモイド出力1つ、
// 多クラスはソフトマックス出力
type MLPClassifier struct {
	state *model.StateManager
	params

	net      *network
	classes_ []float64
}

// NewMLPClassifier creates a classifier with one hidden layer of 100 ReLU units.
func NewMLPClassifier(opts ...Option) *MLPClassifier {
	return &MLPClassifier{
		state:  model.NewStateManager(),
		params: newParams(opts),
	}
}

// Fit trains the network with minibatch Adam.
func (m *MLPClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "MLPClassifier.Fit")

	rows, cols, target, err := model.CheckXY("MLPClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := m.validate(); err != nil {
		return err
	}
	classes := model.UniqueSorted(target)
	if len(classes) < 2 {
		return errors.NewValueError("MLPClassifier.Fit", "y contains only one class")
	}
	index := model.ClassIndex(classes)

	nOut, kind := len(classes), outputSoftmax
	if nOut == 2 {
		nOut, kind = 1, outputLogistic
	}
	Y := mat.NewDense(rows, nOut, nil)
	for i, v := range target {
		if nOut == 1 {
			Y.Set(i, 0, float64(index[v]))
		} else {
			Y.Set(i, index[v], 1)
		}
	}

	rng := m.newRand()
	net := newNetwork(layerSizes(cols, m.hiddenLayerSizes, nOut), kind, rng)
	if err := net.fit(&m.params, mat.DenseCopyOf(X), Y, rng, "MLPClassifier"); err != nil {
		return err
	}

	m.net = net
	m.classes_ = classes
	m.state.SetDimensions(cols, rows)
	m.state.SetFitted()
	return nil
}

// PredictProba returns the class probabilities.
func (m *MLPClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.CheckPredictInput("MLPClassifier", X); err != nil {
		return nil, err
	}
	acts := m.net.forward(X)
	out := acts[len(acts)-1]
	if len(m.classes_) > 2 {
		return out, nil
	}
	rows, _ := out.Dims()
	proba := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		p := out.At(i, 0)
		proba.Set(i, 0, 1-p)
		proba.Set(i, 1, p)
	}
	return proba, nil
}

// Predict returns the most probable class.
func (m *MLPClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, _ := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, m.classes_[floats.MaxIdx(proba.(*mat.Dense).RawRowView(i))])
	}
	return out, nil
}

// Classes returns the sorted class labels seen during Fit.
func (m *MLPClassifier) Classes() []float64 {
	return m.classes_
}

// LossCurve returns the training loss of every epoch.
func (m *MLPClassifier) LossCurve() []float64 {
	if m.net == nil {
		return nil
	}
	return m.net.lossCurve
}

// NIter returns the number of epochs run.
func (m *MLPClassifier) NIter() int {
	if m.net == nil {
		return 0
	}
	return m.net.nIter
}

// GetParams returns the hyperparameters.
func (m *MLPClassifier) GetParams() map[string]interface{} {
	return m.getParams()
}

// MLPRegressor は恒等出力・二乗損失の多層パーセプトロン
type MLPRegressor struct {
	state *model.StateManager
	params

	net *network
}

// NewMLPRegressor creates a regressor with one hidden layer of 100 ReLU units.
func NewMLPRegressor(opts ...Option) *MLPRegressor {
	return &MLPRegressor{
		state:  model.NewStateManager(),
		params: newParams(opts),
	}
}

// Fit trains the network with minibatch Adam.
func (m *MLPRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "MLPRegressor.Fit")

	rows, cols, target, err := model.CheckXY("MLPRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := m.validate(); err != nil {
		return err
	}

	rng := m.newRand()
	net := newNetwork(layerSizes(cols, m.hiddenLayerSizes, 1), outputIdentity, rng)
	if err := net.fit(&m.params, mat.DenseCopyOf(X), model.VectorToColumn(target), rng, "MLPRegressor"); err != nil {
		return err
	}

	m.net = net
	m.state.SetDimensions(cols, rows)
	m.state.SetFitted()
	return nil
}

// Predict returns the network output.
func (m *MLPRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.CheckPredictInput("MLPRegressor", X); err != nil {
		return nil, err
	}
	acts := m.net.forward(X)
	return acts[len(acts)-1], nil
}

// LossCurve returns the training loss of every epoch.
func (m *MLPRegressor) LossCurve() []float64 {
	if m.net == nil {
		return nil
	}
	return m.net.lossCurve
}

// GetParams returns the hyperparameters.
func (m *MLPRegressor) GetParams() map[string]interface{} {
	return m.getParams()
}
