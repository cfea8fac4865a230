package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcompare/core/parallel"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// SilhouetteScore は全サンプルのシルエット係数の平均を計算する。
// ラベル数は 2 以上 n-1 以下でなければならない。単独クラスタのサンプルは 0 とする。
// nJobs が 0 以下なら全CPUを使う
func SilhouetteScore(X mat.Matrix, labels []int, nJobs int) (float64, error) {
	rows, _ := X.Dims()
	if rows != len(labels) {
		return 0, errors.NewDimensionError("SilhouetteScore", rows, len(labels), 0)
	}
	index := map[int]int{}
	for _, l := range labels {
		if _, ok := index[l]; !ok {
			index[l] = len(index)
		}
	}
	k := len(index)
	if k < 2 || k > rows-1 {
		return 0, errors.NewValueError("SilhouetteScore",
			"number of labels is invalid; valid values are 2 to n_samples - 1 (inclusive)")
	}

	data := make([][]float64, rows)
	for i := range data {
		data[i] = mat.Row(nil, i, X)
	}
	sizes := make([]float64, k)
	for _, l := range labels {
		sizes[index[l]]++
	}

	s := make([]float64, rows)
	parallel.ParallelizeWithThreshold(nJobs, rows, 128, func(start, end int) {
		sums := make([]float64, k)
		for i := start; i < end; i++ {
			for c := range sums {
				sums[c] = 0
			}
			for j := range data {
				if i != j {
					sums[index[labels[j]]] += floats.Distance(data[i], data[j], 2)
				}
			}
			own := index[labels[i]]
			if sizes[own] <= 1 {
				continue
			}
			a := sums[own] / (sizes[own] - 1)
			b := math.Inf(1)
			for c, sum := range sums {
				if c != own {
					b = math.Min(b, sum/sizes[c])
				}
			}
			if m := math.Max(a, b); m > 0 {
				s[i] = (b - a) / m
			}
		}
	})
	return floats.Sum(s) / float64(rows), nil
}

// Inertia は予測ラベルごとの重心を求め、各サンプルから最も近い重心までの
// 二乗距離の総和を返す
func Inertia(X mat.Matrix, labels []int) (float64, error) {
	rows, cols := X.Dims()
	if rows != len(labels) {
		return 0, errors.NewDimensionError("Inertia", rows, len(labels), 0)
	}
	if rows == 0 {
		return 0, errors.NewValueError("Inertia", "empty matrix")
	}

	index := map[int]int{}
	var centroids [][]float64
	var counts []float64
	row := make([]float64, cols)
	for i, l := range labels {
		c, ok := index[l]
		if !ok {
			c = len(centroids)
			index[l] = c
			centroids = append(centroids, make([]float64, cols))
			counts = append(counts, 0)
		}
		mat.Row(row, i, X)
		floats.Add(centroids[c], row)
		counts[c]++
	}
	for c := range centroids {
		floats.Scale(1/counts[c], centroids[c])
	}

	var total float64
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		best := math.Inf(1)
		for _, centroid := range centroids {
			d := floats.Distance(row, centroid, 2)
			best = math.Min(best, d*d)
		}
		total += best
	}
	return total, nil
}
