package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// WeightedScores は average='weighted', zero_division=0 で集計した適合率・再現率・F1
type WeightedScores struct {
	Precision float64
	Recall    float64
	F1        float64
}

// PrecisionRecallF1 はクラスごとの適合率・再現率・F1を計算し、真のラベルの
// サポートで重み付け平均する。分母が0のクラスのスコアは0とし、
// 予測サンプルのないクラスがあれば UndefinedMetricWarning を1度だけ出す
func PrecisionRecallF1(yTrue, yPred *mat.VecDense) (WeightedScores, error) {
	n, err := checkPair("PrecisionRecallF1", yTrue, yPred)
	if err != nil {
		return WeightedScores{}, err
	}

	labels := map[float64]struct{}{}
	tp := map[float64]float64{}
	support := map[float64]float64{}
	predicted := map[float64]float64{}
	for i := 0; i < n; i++ {
		t, p := yTrue.AtVec(i), yPred.AtVec(i)
		labels[t] = struct{}{}
		labels[p] = struct{}{}
		support[t]++
		predicted[p]++
		if t == p {
			tp[t]++
		}
	}

	var scores WeightedScores
	var undefined bool
	for label := range labels {
		w := support[label]
		if w == 0 {
			continue
		}
		if predicted[label] == 0 {
			undefined = true
		}
		precision := errors.SafeDivide(tp[label], predicted[label])
		recall := errors.SafeDivide(tp[label], w)
		f1 := errors.SafeDivide(2*precision*recall, precision+recall)
		scores.Precision += w * precision
		scores.Recall += w * recall
		scores.F1 += w * f1
	}
	if undefined {
		errors.Warn(errors.NewUndefinedMetricWarning("precision", "labels with no predicted samples", 0))
	}
	scores.Precision /= float64(n)
	scores.Recall /= float64(n)
	scores.F1 /= float64(n)
	return scores, nil
}

// ROCAUC は2値ラベルとスコアからROC曲線下面積を計算する。
// 同順位のスコアには平均順位を用いる（Mann-Whitney U 統計量）
func ROCAUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkPair("ROCAUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	positive := make([]bool, n)
	scores := make([]float64, n)
	var nPos int
	for i := 0; i < n; i++ {
		switch yTrue.AtVec(i) {
		case 1:
			positive[i] = true
			nPos++
		case 0:
		default:
			return 0, errors.NewValueError("ROCAUC", "yTrue must contain only 0 and 1")
		}
		scores[i] = yScore.AtVec(i)
	}
	return binaryAUC(positive, scores, nPos)
}

func binaryAUC(positive []bool, scores []float64, nPos int) (float64, error) {
	n := len(scores)
	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		return 0, errors.NewValueError("ROCAUC",
			"only one class present in y_true; ROC AUC score is not defined in that case")
	}
	if floats.HasNaN(scores) {
		return 0, errors.NewValueError("ROCAUC", "scores contain NaN")
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	var rankSum float64
	for start := 0; start < n; {
		end := start + 1
		for end < n && scores[order[end]] == scores[order[start]] {
			end++
		}
		// 順位は1始まり、同順位は平均
		avgRank := float64(start+end+1) / 2
		for k := start; k < end; k++ {
			if positive[order[k]] {
				rankSum += avgRank
			}
		}
		start = end
	}
	u := rankSum - float64(nPos)*float64(nPos+1)/2
	return u / (float64(nPos) * float64(nNeg)), nil
}

// ROCAUCOvR は多クラスの one-vs-rest ROC AUC をサポートで重み付け平均する。
// proba の列は classes の順序に従い、yTrue に現れるクラス集合と一致している必要がある
func ROCAUCOvR(yTrue *mat.VecDense, proba mat.Matrix, classes []float64) (float64, error) {
	n := yTrue.Len()
	rows, cols := proba.Dims()
	if n == 0 {
		return 0, errors.NewValueError("ROCAUCOvR", "empty vector")
	}
	if rows != n {
		return 0, errors.NewDimensionError("ROCAUCOvR", n, rows, 0)
	}
	if cols != len(classes) {
		return 0, errors.NewDimensionError("ROCAUCOvR", len(classes), cols, 1)
	}

	present := map[float64]int{}
	for i := 0; i < n; i++ {
		present[yTrue.AtVec(i)]++
	}
	if len(present) != len(classes) {
		return 0, errors.NewValueError("ROCAUCOvR",
			"number of classes in y_true not equal to the number of columns in y_score")
	}
	for i := 0; i < n; i++ {
		if s := floats.Sum(mat.Row(nil, i, proba)); math.Abs(s-1) > 1e-6 {
			return 0, errors.NewValueError("ROCAUCOvR", "target scores need to be probabilities that sum to 1")
		}
	}

	var total float64
	positive := make([]bool, n)
	for j, c := range classes {
		support, ok := present[c]
		if !ok {
			return 0, errors.NewValueError("ROCAUCOvR", "y_true contains a label not in classes")
		}
		for i := 0; i < n; i++ {
			positive[i] = yTrue.AtVec(i) == c
		}
		auc, err := binaryAUC(positive, mat.Col(nil, j, proba), support)
		if err != nil {
			return 0, err
		}
		total += float64(support) * auc
	}
	return total / float64(n), nil
}
