// Package cluster implements K-Means clustering.
package cluster

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlcompare/core/model"
	"github.com/YuminosukeSato/mlcompare/core/parallel"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

var (
	_ model.ClusterMixin    = (*KMeans)(nil)
	_ model.ParameterGetter = (*KMeans)(nil)
)

// KMeans はLloydアルゴリズムによるK-meansクラスタリング
// scikit-learnのKMeansと互換性を持つ
type KMeans struct {
	state *model.StateManager

	// ハイパーパラメータ
	nClusters   int     // クラスタ数
	init        string  // 初期化方法: "k-means++", "random"
	nInit       int     // 異なる初期化での実行回数
	maxIter     int     // 最大イテレーション数
	tol         float64 // 特徴量分散の平均に対する相対許容誤差
	randomState int64   // 乱数シード
	nJobs       int

	// 学習パラメータ
	clusterCenters_ [][]float64 // クラスタ中心（nClusters x nFeatures）
	labels_         []int       // 各サンプルのクラスタラベル
	inertia_        float64     // クラスタ内平方和誤差
	nIter_          int         // 実行されたイテレーション数

	mu sync.RWMutex
}

// KMeansOption はKMeansの設定オプション
type KMeansOption func(*KMeans)

// WithKMeansNClusters はクラスタ数を設定
func WithKMeansNClusters(n int) KMeansOption {
	return func(km *KMeans) {
		km.nClusters = n
	}
}

// WithKMeansInit は初期化方法を設定
func WithKMeansInit(init string) KMeansOption {
	return func(km *KMeans) {
		km.init = init
	}
}

// WithKMeansNInit は初期化の試行回数を設定
func WithKMeansNInit(n int) KMeansOption {
	return func(km *KMeans) {
		km.nInit = n
	}
}

// WithKMeansMaxIter は最大イテレーション数を設定
func WithKMeansMaxIter(maxIter int) KMeansOption {
	return func(km *KMeans) {
		km.maxIter = maxIter
	}
}

// WithKMeansTol は収束判定の許容誤差を設定
func WithKMeansTol(tol float64) KMeansOption {
	return func(km *KMeans) {
		km.tol = tol
	}
}

// WithKMeansRandomState は乱数シードを設定
func WithKMeansRandomState(seed int64) KMeansOption {
	return func(km *KMeans) {
		km.randomState = seed
	}
}

// WithKMeansNJobs は割り当てステップの並列数を設定
func WithKMeansNJobs(n int) KMeansOption {
	return func(km *KMeans) {
		km.nJobs = n
	}
}

// NewKMeans は新しいKMeansを作成
func NewKMeans(options ...KMeansOption) *KMeans {
	km := &KMeans{
		state:       model.NewStateManager(),
		nClusters:   8,
		init:        "k-means++",
		nInit:       10,
		maxIter:     300,
		tol:         1e-4,
		randomState: -1,
		nJobs:       1,
	}
	for _, opt := range options {
		opt(km)
	}
	return km
}

func (km *KMeans) validate(rows int) error {
	if km.nClusters < 1 {
		return errors.NewValidationError("n_clusters", "must be positive", km.nClusters)
	}
	if km.nInit < 1 {
		return errors.NewValidationError("n_init", "must be positive", km.nInit)
	}
	if km.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be positive", km.maxIter)
	}
	if km.init != "k-means++" && km.init != "random" {
		return errors.NewValidationError("init", "must be 'k-means++' or 'random'", km.init)
	}
	if rows < km.nClusters {
		return errors.NewValueError("KMeans.Fit",
			"n_samples should be >= n_clusters")
	}
	return nil
}

// Fit はn_init回の初期化からLloyd反復を行い、慣性が最小の結果を採用する。y は無視される
func (km *KMeans) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "KMeans.Fit")

	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.Wrap(errors.ErrEmptyData, "KMeans.Fit")
	}
	if err := km.validate(rows); err != nil {
		return err
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	data := make([][]float64, rows)
	for i := range data {
		data[i] = mat.Row(nil, i, X)
	}
	tol := km.tol * meanVariance(X)

	seed := km.randomState
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	bestInertia := math.Inf(1)
	var bestCenters [][]float64
	var bestLabels []int
	var bestNIter int

	// 複数回実行して最良の結果を選択
	for run := 0; run < km.nInit; run++ {
		centers := km.initializeCenters(data, rng)
		labels, inertia, nIter := km.lloyd(data, centers, tol)
		if inertia < bestInertia {
			bestInertia = inertia
			bestCenters = centers
			bestLabels = labels
			bestNIter = nIter
		}
	}

	if distinct := countDistinct(bestLabels); distinct < km.nClusters {
		errors.Warn(errors.NewConvergenceWarning("KMeans", bestNIter,
			"number of distinct clusters found smaller than n_clusters; possibly due to duplicate points in X"))
	}

	km.clusterCenters_ = bestCenters
	km.labels_ = bestLabels
	km.inertia_ = bestInertia
	km.nIter_ = bestNIter
	km.state.SetDimensions(cols, rows)
	km.state.SetFitted()
	return nil
}

// lloyd は中心の移動量の二乗和が tol 以下になるまで割り当てと更新を繰り返す
func (km *KMeans) lloyd(data, centers [][]float64, tol float64) ([]int, float64, int) {
	rows, cols := len(data), len(data[0])
	labels := make([]int, rows)
	iter := 0
	for iter < km.maxIter {
		iter++
		km.assign(data, centers, labels)

		sums := make([][]float64, km.nClusters)
		counts := make([]int, km.nClusters)
		for c := range sums {
			sums[c] = make([]float64, cols)
		}
		for i, l := range labels {
			floats.Add(sums[l], data[i])
			counts[l]++
		}
		km.relocateEmpty(data, centers, labels, sums, counts)

		var shift float64
		for c := range centers {
			floats.Scale(1/float64(counts[c]), sums[c])
			d := floats.Distance(sums[c], centers[c], 2)
			shift += d * d
			copy(centers[c], sums[c])
		}
		if shift <= tol {
			break
		}
	}
	// 最終中心に対する割り当てと慣性
	inertia := km.assign(data, centers, labels)
	return labels, inertia, iter
}

// relocateEmpty は空のクラスタに、現在の中心から最も遠いサンプルを割り当てる
func (km *KMeans) relocateEmpty(data, centers [][]float64, labels []int, sums [][]float64, counts []int) {
	for c := range counts {
		if counts[c] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, x := range data {
			if counts[labels[i]] <= 1 {
				continue
			}
			if d := floats.Distance(x, centers[labels[i]], 2); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			// 全点が単独クラスタなので残りは元の位置に留める
			copy(sums[c], centers[c])
			counts[c] = 1
			continue
		}
		old := labels[far]
		floats.Sub(sums[old], data[far])
		counts[old]--
		copy(sums[c], data[far])
		counts[c] = 1
		labels[far] = c
	}
}

// assign は各サンプルを最近傍の中心に割り当て、慣性を返す
func (km *KMeans) assign(data, centers [][]float64, labels []int) float64 {
	partial := make([]float64, len(data))
	parallel.ParallelizeWithThreshold(km.nJobs, len(data), 256, func(start, end int) {
		for i := start; i < end; i++ {
			c, d := nearestCenter(data[i], centers)
			labels[i] = c
			partial[i] = d
		}
	})
	return floats.Sum(partial)
}

// initializeCenters はクラスタ中心を初期化
func (km *KMeans) initializeCenters(data [][]float64, rng *rand.Rand) [][]float64 {
	if km.init == "random" {
		perm := rng.Perm(len(data))
		centers := make([][]float64, km.nClusters)
		for c := range centers {
			centers[c] = append([]float64(nil), data[perm[c]]...)
		}
		return centers
	}
	return km.initKMeansPlusPlus(data, rng)
}

// initKMeansPlusPlus は貪欲なk-means++初期化を実行する。各ステップで
// 2+log(k) 個の候補を引き、ポテンシャルが最小のものを採用する
func (km *KMeans) initKMeansPlusPlus(data [][]float64, rng *rand.Rand) [][]float64 {
	rows := len(data)
	nTrials := 2 + int(math.Log(float64(km.nClusters)))
	centers := make([][]float64, 0, km.nClusters)
	centers = append(centers, append([]float64(nil), data[rng.Intn(rows)]...))

	closest := make([]float64, rows)
	for i, x := range data {
		closest[i] = sqDist(x, centers[0])
	}
	potential := floats.Sum(closest)

	for len(centers) < km.nClusters {
		bestCandidate := -1
		bestPotential := math.Inf(1)
		var bestClosest []float64
		for t := 0; t < nTrials; t++ {
			cand := sampleByWeight(closest, potential, rng)
			next := make([]float64, rows)
			for i, x := range data {
				next[i] = math.Min(closest[i], sqDist(x, data[cand]))
			}
			if p := floats.Sum(next); p < bestPotential {
				bestCandidate, bestPotential, bestClosest = cand, p, next
			}
		}
		centers = append(centers, append([]float64(nil), data[bestCandidate]...))
		closest, potential = bestClosest, bestPotential
	}
	return centers
}

// sampleByWeight は重みに比例した確率でインデックスを選ぶ
func sampleByWeight(weights []float64, total float64, rng *rand.Rand) int {
	if total <= 0 {
		return rng.Intn(len(weights))
	}
	target := rng.Float64() * total
	cumSum := 0.0
	for i, w := range weights {
		cumSum += w
		if cumSum >= target && w > 0 {
			return i
		}
	}
	return len(weights) - 1
}

// Predict は入力データに対するクラスタ予測を行う
func (km *KMeans) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := km.state.CheckPredictInput("KMeans", X); err != nil {
		return nil, err
	}
	km.mu.RLock()
	defer km.mu.RUnlock()

	rows, _ := X.Dims()
	predictions := mat.NewDense(rows, 1, nil)
	row := make([]float64, 0)
	for i := 0; i < rows; i++ {
		row = model.RowToSlice(X, i, row)
		c, _ := nearestCenter(row, km.clusterCenters_)
		predictions.Set(i, 0, float64(c))
	}
	return predictions, nil
}

// FitPredict は学習と予測を同時に行う
func (km *KMeans) FitPredict(X mat.Matrix) (mat.Matrix, error) {
	if err := km.Fit(X, nil); err != nil {
		return nil, err
	}
	km.mu.RLock()
	defer km.mu.RUnlock()
	out := mat.NewDense(len(km.labels_), 1, nil)
	for i, l := range km.labels_ {
		out.Set(i, 0, float64(l))
	}
	return out, nil
}

// Transform はデータをクラスタ中心との距離に変換
func (km *KMeans) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := km.state.CheckPredictInput("KMeans", X); err != nil {
		return nil, err
	}
	km.mu.RLock()
	defer km.mu.RUnlock()

	rows, _ := X.Dims()
	distances := mat.NewDense(rows, km.nClusters, nil)
	row := make([]float64, 0)
	for i := 0; i < rows; i++ {
		row = model.RowToSlice(X, i, row)
		for c, center := range km.clusterCenters_ {
			distances.Set(i, c, floats.Distance(row, center, 2))
		}
	}
	return distances, nil
}

// ClusterCenters は学習されたクラスタ中心を k×d の行列で返す
func (km *KMeans) ClusterCenters() mat.Matrix {
	km.mu.RLock()
	defer km.mu.RUnlock()
	if km.clusterCenters_ == nil {
		return nil
	}
	out := mat.NewDense(len(km.clusterCenters_), len(km.clusterCenters_[0]), nil)
	for c, center := range km.clusterCenters_ {
		out.SetRow(c, center)
	}
	return out
}

// NClusters はクラスタ数を返す
func (km *KMeans) NClusters() int {
	return km.nClusters
}

// Labels は学習データのクラスタラベルを返す
func (km *KMeans) Labels() []int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return append([]int(nil), km.labels_...)
}

// Inertia は慣性（クラスタ内平方和誤差）を返す
func (km *KMeans) Inertia() float64 {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.inertia_
}

// NIter は最良の実行で行われたイテレーション数を返す
func (km *KMeans) NIter() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.nIter_
}

// GetParams returns the hyperparameters.
func (km *KMeans) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_clusters":   km.nClusters,
		"init":         km.init,
		"n_init":       km.nInit,
		"max_iter":     km.maxIter,
		"tol":          km.tol,
		"random_state": km.randomState,
	}
}

// 補助関数

func nearestCenter(x []float64, centers [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		if d := sqDist(x, center); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func meanVariance(X mat.Matrix) float64 {
	rows, cols := X.Dims()
	if rows < 2 {
		return 0
	}
	var total float64
	for j := 0; j < cols; j++ {
		_, v := stat.PopMeanVariance(model.ColumnToSlice(X, j), nil)
		total += v
	}
	return total / float64(cols)
}

func countDistinct(labels []int) int {
	seen := make(map[int]struct{}, len(labels))
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	return len(seen)
}
