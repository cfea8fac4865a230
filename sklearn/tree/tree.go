// Package tree implements CART decision trees for classification and regression.
package tree

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

const (
	leafMarker = -1
	// featureThreshold は分割候補とみなす隣接値の最小差
	featureThreshold = 1e-7
	// pureThreshold 以下の不純度を持つノードは分割しない
	pureThreshold = 1e-7
)

// node はフラット配列に格納される木のノード
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	impurity  float64
	nSamples  int
	weight    float64
	value     []float64
}

// Tree は学習済みの二分木。ノードは配列で保持し、ルートは0番
type Tree struct {
	nodes       []node
	nFeatures   int
	depth       int
	importances []float64
}

// Apply は1サンプルが到達する葉のインデックスを返す
func (t *Tree) Apply(row []float64) int {
	i := 0
	for t.nodes[i].feature != leafMarker {
		if row[t.nodes[i].feature] <= t.nodes[i].threshold {
			i = t.nodes[i].left
		} else {
			i = t.nodes[i].right
		}
	}
	return i
}

// LeafValue は葉 i の値を返す。分類木ではクラス確率、回帰木では平均値
func (t *Tree) LeafValue(i int) []float64 {
	return t.nodes[i].value
}

// SetLeafValue は葉 i の値を置き換える（勾配ブースティングの葉更新用）
func (t *Tree) SetLeafValue(i int, v []float64) {
	t.nodes[i].value = v
}

// Depth は葉の最大深さを返す（ルートのみの木は0）
func (t *Tree) Depth() int {
	return t.depth
}

// NLeaves は葉の数を返す
func (t *Tree) NLeaves() int {
	n := 0
	for _, nd := range t.nodes {
		if nd.feature == leafMarker {
			n++
		}
	}
	return n
}

// FeatureImportances は不純度減少量に基づく重要度を合計1に正規化して返す
func (t *Tree) FeatureImportances() []float64 {
	out := make([]float64, t.nFeatures)
	var total float64
	for _, v := range t.importances {
		total += v
	}
	if total <= 0 {
		return out
	}
	for j, v := range t.importances {
		out[j] = v / total
	}
	return out
}

// treeParams は分類木と回帰木で共通のハイパーパラメータ
type treeParams struct {
	criterion       string
	maxDepth        int // -1 は無制限
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 は全特徴量
	randomState     int64
}

// Option は決定木の設定オプション
type Option func(*treeParams)

// WithCriterion sets the split criterion: "gini" or "entropy" for
// classification, "squared_error" for regression.
func WithCriterion(criterion string) Option {
	return func(p *treeParams) {
		p.criterion = criterion
	}
}

// WithMaxDepth sets the maximum depth. Negative values mean unlimited.
func WithMaxDepth(depth int) Option {
	return func(p *treeParams) {
		p.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples needed to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(p *treeParams) {
		p.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(p *treeParams) {
		p.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets how many features are examined per split. 0 means all.
func WithMaxFeatures(n int) Option {
	return func(p *treeParams) {
		p.maxFeatures = n
	}
}

// WithRandomState sets the seed of the feature permutation. Negative values
// seed from the clock.
func WithRandomState(seed int64) Option {
	return func(p *treeParams) {
		p.randomState = seed
	}
}

func newParams(criterion string, opts []Option) treeParams {
	p := treeParams{
		criterion:       criterion,
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p *treeParams) getParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         p.criterion,
		"max_depth":         p.maxDepth,
		"min_samples_split": p.minSamplesSplit,
		"min_samples_leaf":  p.minSamplesLeaf,
		"max_features":      p.maxFeatures,
		"random_state":      p.randomState,
	}
}

func (p *treeParams) newRand() *rand.Rand {
	if p.randomState >= 0 {
		return rand.New(rand.NewSource(p.randomState))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// builder は深さ優先でノードを展開する
type builder struct {
	p        *treeParams
	X        *mat.Dense
	y        []float64 // 分類ではクラスインデックス
	w        []float64
	nClasses int // 0 は回帰
	rng      *rand.Rand
	tree     *Tree
}

func newBuilder(p *treeParams, X *mat.Dense, y, w []float64, nClasses int) *builder {
	_, cols := X.Dims()
	return &builder{
		p:        p,
		X:        X,
		y:        y,
		w:        w,
		nClasses: nClasses,
		rng:      p.newRand(),
		tree: &Tree{
			nFeatures:   cols,
			importances: make([]float64, cols),
		},
	}
}

func (b *builder) weight(i int) float64 {
	if b.w == nil {
		return 1
	}
	return b.w[i]
}

// grow builds the tree over the rows with positive weight.
func (b *builder) grow() *Tree {
	rows, _ := b.X.Dims()
	idx := make([]int, 0, rows)
	for i := 0; i < rows; i++ {
		if b.weight(i) > 0 {
			idx = append(idx, i)
		}
	}
	b.build(idx, 0)
	return b.tree
}

func (b *builder) build(idx []int, depth int) int {
	value, impurity, total := b.nodeStats(idx)
	id := len(b.tree.nodes)
	b.tree.nodes = append(b.tree.nodes, node{
		feature:  leafMarker,
		left:     leafMarker,
		right:    leafMarker,
		impurity: impurity,
		nSamples: len(idx),
		weight:   total,
		value:    value,
	})
	if depth > b.tree.depth {
		b.tree.depth = depth
	}

	if (b.p.maxDepth >= 0 && depth >= b.p.maxDepth) ||
		len(idx) < b.p.minSamplesSplit ||
		len(idx) < 2*b.p.minSamplesLeaf ||
		impurity <= pureThreshold {
		return id
	}

	s, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	left := make([]int, 0, s.nLeft)
	right := make([]int, 0, len(idx)-s.nLeft)
	for _, i := range idx {
		if b.X.At(i, s.feature) <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.tree.importances[s.feature] += total*impurity - s.wLeft*s.impLeft - s.wRight*s.impRight

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	nd := &b.tree.nodes[id]
	nd.feature = s.feature
	nd.threshold = s.threshold
	nd.left = l
	nd.right = r
	return id
}

// nodeStats は葉の値・不純度・重み合計を計算する
func (b *builder) nodeStats(idx []int) ([]float64, float64, float64) {
	if b.nClasses > 0 {
		counts := make([]float64, b.nClasses)
		var total float64
		for _, i := range idx {
			w := b.weight(i)
			counts[int(b.y[i])] += w
			total += w
		}
		imp := classImpurity(b.p.criterion, counts, total)
		for k := range counts {
			counts[k] /= total
		}
		return counts, imp, total
	}

	var sum, sumSq, total float64
	for _, i := range idx {
		w := b.weight(i)
		sum += w * b.y[i]
		sumSq += w * b.y[i] * b.y[i]
		total += w
	}
	return []float64{sum / total}, variance(sum, sumSq, total), total
}

type split struct {
	feature   int
	threshold float64
	nLeft     int
	score     float64
	wLeft     float64
	wRight    float64
	impLeft   float64
	impRight  float64
}

// bestSplit は重み付き子ノード不純度が最小の分割を探す。特徴量はランダム順に
// 調べ、maxFeatures 個の非定数特徴量を見た時点で打ち切る
func (b *builder) bestSplit(idx []int) (split, bool) {
	nFeatures := b.tree.nFeatures
	limit := b.p.maxFeatures
	if limit <= 0 || limit > nFeatures {
		limit = nFeatures
	}

	best := split{score: math.Inf(1)}
	found := false
	visited := 0
	sorted := make([]int, len(idx))
	for _, f := range b.rng.Perm(nFeatures) {
		if visited >= limit && found {
			break
		}
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return b.X.At(sorted[a], f) < b.X.At(sorted[c], f) })
		if b.X.At(sorted[len(sorted)-1], f) <= b.X.At(sorted[0], f)+featureThreshold {
			continue
		}
		visited++

		var s split
		var ok bool
		if b.nClasses > 0 {
			s, ok = b.scanClassification(sorted, f)
		} else {
			s, ok = b.scanRegression(sorted, f)
		}
		if ok && s.score < best.score {
			best = s
			found = true
		}
	}
	return best, found
}

func (b *builder) scanClassification(sorted []int, f int) (split, bool) {
	left := make([]float64, b.nClasses)
	right := make([]float64, b.nClasses)
	var wl, wr float64
	for _, i := range sorted {
		w := b.weight(i)
		right[int(b.y[i])] += w
		wr += w
	}

	best := split{score: math.Inf(1)}
	found := false
	n := len(sorted)
	for p := 0; p < n-1; p++ {
		i := sorted[p]
		w := b.weight(i)
		k := int(b.y[i])
		left[k] += w
		right[k] -= w
		wl += w
		wr -= w

		xCur, xNext := b.X.At(i, f), b.X.At(sorted[p+1], f)
		if xNext <= xCur+featureThreshold {
			continue
		}
		if p+1 < b.p.minSamplesLeaf || n-p-1 < b.p.minSamplesLeaf {
			continue
		}
		il := classImpurity(b.p.criterion, left, wl)
		ir := classImpurity(b.p.criterion, right, wr)
		if score := wl*il + wr*ir; score < best.score {
			best = split{
				feature: f, threshold: midpoint(xCur, xNext), nLeft: p + 1, score: score,
				wLeft: wl, wRight: wr, impLeft: il, impRight: ir,
			}
			found = true
		}
	}
	return best, found
}

func (b *builder) scanRegression(sorted []int, f int) (split, bool) {
	var sumL, sqL, wl, sumR, sqR, wr float64
	for _, i := range sorted {
		w := b.weight(i)
		sumR += w * b.y[i]
		sqR += w * b.y[i] * b.y[i]
		wr += w
	}

	best := split{score: math.Inf(1)}
	found := false
	n := len(sorted)
	for p := 0; p < n-1; p++ {
		i := sorted[p]
		w := b.weight(i)
		yi := b.y[i]
		sumL += w * yi
		sqL += w * yi * yi
		wl += w
		sumR -= w * yi
		sqR -= w * yi * yi
		wr -= w

		xCur, xNext := b.X.At(i, f), b.X.At(sorted[p+1], f)
		if xNext <= xCur+featureThreshold {
			continue
		}
		if p+1 < b.p.minSamplesLeaf || n-p-1 < b.p.minSamplesLeaf {
			continue
		}
		il := variance(sumL, sqL, wl)
		ir := variance(sumR, sqR, wr)
		if score := wl*il + wr*ir; score < best.score {
			best = split{
				feature: f, threshold: midpoint(xCur, xNext), nLeft: p + 1, score: score,
				wLeft: wl, wRight: wr, impLeft: il, impRight: ir,
			}
			found = true
		}
	}
	return best, found
}

func midpoint(a, b float64) float64 {
	m := a/2 + b/2
	if m >= b || math.IsInf(m, 0) {
		return a
	}
	return m
}

func variance(sum, sumSq, w float64) float64 {
	if w <= 0 {
		return 0
	}
	mean := sum / w
	v := sumSq/w - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

func classImpurity(criterion string, counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	switch criterion {
	case "entropy", "log_loss":
		var h float64
		for _, c := range counts {
			if c > 0 {
				p := c / total
				h -= p * math.Log2(p)
			}
		}
		return h
	default:
		g := 1.0
		for _, c := range counts {
			p := c / total
			g -= p * p
		}
		return g
	}
}

// asDense は mat.Matrix を *mat.Dense として扱う（必要な場合のみコピー）
func asDense(X mat.Matrix) *mat.Dense {
	if d, ok := X.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(X)
}
