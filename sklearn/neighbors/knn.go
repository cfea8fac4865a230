// Package neighbors implements brute-force k-nearest-neighbour estimators.
package neighbors

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/core/model"
	"github.com/YuminosukeSato/mlcompare/core/parallel"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// 並列化する最小の予測行数
const parallelThreshold = 64

// Option はk近傍法の設定オプション
type Option func(*params)

type params struct {
	nNeighbors int
	nJobs      int
}

// WithNNeighbors sets k.
func WithNNeighbors(k int) Option {
	return func(p *params) {
		p.nNeighbors = k
	}
}

// WithNJobs sets the number of goroutines used by Predict. Values <= 0 use
// every CPU.
func WithNJobs(n int) Option {
	return func(p *params) {
		p.nJobs = n
	}
}

func newParams(opts []Option) params {
	p := params{nNeighbors: 5, nJobs: 1}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p *params) getParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": p.nNeighbors,
		"weights":     "uniform",
		"metric":      "euclidean",
		"n_jobs":      p.nJobs,
	}
}

// memory は学習データをそのまま保持する
type memory struct {
	X      *mat.Dense
	target []float64
}

func (m *memory) fit(op string, p *params, X, y mat.Matrix) (int, int, error) {
	rows, cols, target, err := model.CheckXY(op, X, y)
	if err != nil {
		return 0, 0, err
	}
	if p.nNeighbors < 1 {
		return 0, 0, errors.NewValidationError("n_neighbors", "must be positive", p.nNeighbors)
	}
	if p.nNeighbors > rows {
		return 0, 0, errors.NewValueError(op, "expected n_neighbors <= n_samples")
	}
	m.X = mat.DenseCopyOf(X)
	m.target = target
	return rows, cols, nil
}

// kNearest returns the indices of the k training rows closest to q. Equal
// distances keep training order.
func (m *memory) kNearest(q []float64, k int, dist []float64, order []int) []int {
	rows, _ := m.X.Dims()
	for i := 0; i < rows; i++ {
		dist[i] = floats.Distance(m.X.RawRowView(i), q, 2)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return dist[order[a]] < dist[order[b]] })
	return order[:k]
}

// eachNeighborhood calls fn with the neighbour indices of every query row,
// splitting the rows across goroutines.
func (m *memory) eachNeighborhood(p *params, X mat.Matrix, fn func(i int, nn []int)) {
	rows, _ := X.Dims()
	nTrain, _ := m.X.Dims()
	parallel.ParallelizeWithThreshold(p.nJobs, rows, parallelThreshold, func(start, end int) {
		dist := make([]float64, nTrain)
		order := make([]int, nTrain)
		q := make([]float64, 0)
		for i := start; i < end; i++ {
			q = model.RowToSlice(X, i, q)
			fn(i, m.kNearest(q, p.nNeighbors, dist, order))
		}
	})
}

// KNeighborsClassifier はk近傍の多数決で分類する
type KNeighborsClassifier struct {
	state *model.StateManager
	params
	memory

	classes_ []float64
	index    map[float64]int
}

// NewKNeighborsClassifier creates a classifier with k=5.
func NewKNeighborsClassifier(opts ...Option) *KNeighborsClassifier {
	return &KNeighborsClassifier{
		state:  model.NewStateManager(),
		params: newParams(opts),
	}
}

// Fit stores the training set.
func (knn *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	rows, cols, err := knn.fit("KNeighborsClassifier.Fit", &knn.params, X, y)
	if err != nil {
		return err
	}
	knn.classes_ = model.UniqueSorted(knn.target)
	knn.index = model.ClassIndex(knn.classes_)
	knn.state.SetDimensions(cols, rows)
	knn.state.SetFitted()
	return nil
}

// PredictProba returns the fraction of neighbours voting for each class.
func (knn *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := knn.state.CheckPredictInput("KNeighborsClassifier", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, len(knn.classes_), nil)
	k := float64(knn.nNeighbors)
	knn.eachNeighborhood(&knn.params, X, func(i int, nn []int) {
		row := out.RawRowView(i)
		for _, j := range nn {
			row[knn.index[knn.target[j]]] += 1 / k
		}
	})
	return out, nil
}

// Predict returns the majority class among the neighbours. Ties go to the
// smaller class label.
func (knn *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := knn.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, _ := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, knn.classes_[floats.MaxIdx(proba.(*mat.Dense).RawRowView(i))])
	}
	return out, nil
}

// Classes returns the sorted class labels seen during Fit.
func (knn *KNeighborsClassifier) Classes() []float64 {
	return knn.classes_
}

// GetParams returns the hyperparameters.
func (knn *KNeighborsClassifier) GetParams() map[string]interface{} {
	return knn.getParams()
}

// KNeighborsRegressor はk近傍の目的変数の平均で回帰する
type KNeighborsRegressor struct {
	state *model.StateManager
	params
	memory
}

// NewKNeighborsRegressor creates a regressor with k=5.
func NewKNeighborsRegressor(opts ...Option) *KNeighborsRegressor {
	return &KNeighborsRegressor{
		state:  model.NewStateManager(),
		params: newParams(opts),
	}
}

// Fit stores the training set.
func (knn *KNeighborsRegressor) Fit(X, y mat.Matrix) error {
	rows, cols, err := knn.fit("KNeighborsRegressor.Fit", &knn.params, X, y)
	if err != nil {
		return err
	}
	knn.state.SetDimensions(cols, rows)
	knn.state.SetFitted()
	return nil
}

// Predict returns the mean target of the neighbours.
func (knn *KNeighborsRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := knn.state.CheckPredictInput("KNeighborsRegressor", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	knn.eachNeighborhood(&knn.params, X, func(i int, nn []int) {
		var sum float64
		for _, j := range nn {
			sum += knn.target[j]
		}
		out.Set(i, 0, sum/float64(len(nn)))
	})
	return out, nil
}

// GetParams returns the hyperparameters.
func (knn *KNeighborsRegressor) GetParams() map[string]interface{} {
	return knn.getParams()
}
