// Package model_selection splits a dataset into train and test partitions.
package model_selection

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// Split holds the two partitions produced by TrainTestSplit.
type Split struct {
	XTrain, XTest *mat.Dense
	// YTrain and YTest are nil when no target was given.
	YTrain, YTest *mat.VecDense

	TrainIndex, TestIndex []int

	// Stratified reports whether class proportions were preserved.
	Stratified bool
}

type splitConfig struct {
	testSize    float64
	randomState int64
	stratify    bool
}

// SplitOption configures TrainTestSplit.
type SplitOption func(*splitConfig)

// WithTestSize sets the fraction of rows held out for testing (default 0.25).
func WithTestSize(f float64) SplitOption {
	return func(c *splitConfig) {
		c.testSize = f
	}
}

// WithRandomState sets the shuffle seed.
func WithRandomState(seed int64) SplitOption {
	return func(c *splitConfig) {
		c.randomState = seed
	}
}

// WithStratify preserves the class proportions of y in both partitions.
func WithStratify(stratify bool) SplitOption {
	return func(c *splitConfig) {
		c.stratify = stratify
	}
}

// TrainTestSplit shuffles the rows of X (and y) and splits them. The test
// partition has ceil(testSize*n) rows. With stratification every class
// contributes to the test set in proportion to its size; when a class has
// fewer than two members the split falls back to a plain shuffle.
func TrainTestSplit(X *mat.Dense, y *mat.VecDense, opts ...SplitOption) (*Split, error) {
	cfg := &splitConfig{testSize: 0.25}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.testSize <= 0 || cfg.testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", cfg.testSize)
	}

	n, _ := X.Dims()
	if y != nil && y.Len() != n {
		return nil, errors.NewDimensionError("TrainTestSplit", n, y.Len(), 0)
	}
	nTest := int(math.Ceil(cfg.testSize * float64(n)))
	nTrain := n - nTest
	if nTest == 0 || nTrain == 0 {
		return nil, errors.NewValueError("TrainTestSplit",
			"the resulting train set would be empty; use more samples or a smaller test_size")
	}

	rng := rand.New(rand.NewSource(cfg.randomState))

	var trainIdx, testIdx []int
	stratified := false
	if cfg.stratify && y != nil {
		trainIdx, testIdx, stratified = stratifiedIndices(y.RawVector().Data, nTest, rng)
	}
	if !stratified {
		perm := rng.Perm(n)
		testIdx, trainIdx = perm[:nTest], perm[nTest:]
	}

	s := &Split{
		XTrain:     takeRows(X, trainIdx),
		XTest:      takeRows(X, testIdx),
		TrainIndex: trainIdx,
		TestIndex:  testIdx,
		Stratified: stratified,
	}
	if y != nil {
		s.YTrain = takeElems(y, trainIdx)
		s.YTest = takeElems(y, testIdx)
	}
	return s, nil
}

// stratifiedIndices allocates nTest rows across classes by largest remainder
// and samples each class without replacement.
func stratifiedIndices(y []float64, nTest int, rng *rand.Rand) (train, test []int, ok bool) {
	byClass := make(map[float64][]int)
	for i, v := range y {
		byClass[v] = append(byClass[v], i)
	}
	classes := make([]float64, 0, len(byClass))
	for c, members := range byClass {
		if len(members) < 2 {
			return nil, nil, false
		}
		classes = append(classes, c)
	}
	if nTest < len(classes) || len(y)-nTest < len(classes) {
		return nil, nil, false
	}
	sort.Float64s(classes)

	n := float64(len(y))
	alloc := make([]int, len(classes))
	remainders := make([]float64, len(classes))
	assigned := 0
	for k, c := range classes {
		exact := float64(nTest) * float64(len(byClass[c])) / n
		alloc[k] = int(math.Floor(exact))
		remainders[k] = exact - float64(alloc[k])
		assigned += alloc[k]
	}
	order := make([]int, len(classes))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool { return remainders[order[a]] > remainders[order[b]] })
	for _, k := range order {
		if assigned == nTest {
			break
		}
		if alloc[k] < len(byClass[classes[k]])-1 {
			alloc[k]++
			assigned++
		}
	}

	for k, c := range classes {
		members := append([]int(nil), byClass[c]...)
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		test = append(test, members[:alloc[k]]...)
		train = append(train, members[alloc[k]:]...)
	}
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	return train, test, len(test) == nTest
}

func takeRows(X *mat.Dense, idx []int) *mat.Dense {
	_, cols := X.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for r, i := range idx {
		out.SetRow(r, X.RawRowView(i))
	}
	return out
}

func takeElems(y *mat.VecDense, idx []int) *mat.VecDense {
	out := mat.NewVecDense(len(idx), nil)
	for r, i := range idx {
		out.SetVec(r, y.AtVec(i))
	}
	return out
}
