// Package svm implements kernel support vector machines trained with SMO.
package svm

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const tau = 1e-12

// kernelCache はRBFカーネル行を必要に応じて計算し、上限付きで保持する
type kernelCache struct {
	X        *mat.Dense
	gamma    float64
	rows     map[int][]float64
	order    []int
	capacity int
}

// cacheBytes はカーネル行キャッシュのおおよその上限
const cacheBytes = 200 << 20

func newKernelCache(X *mat.Dense, gamma float64) *kernelCache {
	n, _ := X.Dims()
	capacity := cacheBytes / (8 * n)
	if capacity < 2 {
		capacity = 2
	}
	return &kernelCache{
		X:        X,
		gamma:    gamma,
		rows:     make(map[int][]float64),
		capacity: capacity,
	}
}

func rbf(a, b []float64, gamma float64) float64 {
	d := floats.Distance(a, b, 2)
	return math.Exp(-gamma * d * d)
}

// row は学習サンプル i と全サンプルのカーネル値を返す
func (c *kernelCache) row(i int) []float64 {
	if r, ok := c.rows[i]; ok {
		return r
	}
	n, _ := c.X.Dims()
	r := make([]float64, n)
	xi := c.X.RawRowView(i)
	for j := 0; j < n; j++ {
		r[j] = rbf(xi, c.X.RawRowView(j), c.gamma)
	}
	if len(c.order) >= c.capacity {
		delete(c.rows, c.order[0])
		c.order = c.order[1:]
	}
	c.rows[i] = r
	c.order = append(c.order, i)
	return r
}

// smoProblem は次の双対問題を表す:
//
//	min 0.5 αᵀQα + pᵀα  s.t. yᵀα = 0, 0 <= α <= C
//
// Q_ij = y_i y_j K(sample(i), sample(j))。変数 i はサンプル sample[i] に対応する
type smoProblem struct {
	y       []float64
	p       []float64
	sample  []int
	c       float64
	eps     float64
	maxIter int
	kernel  *kernelCache
}

type smoResult struct {
	alpha     []float64
	rho       float64
	iter      int
	converged bool
}

func (s *smoProblem) upperBound(a float64) bool { return a >= s.c }
func (s *smoProblem) lowerBound(a float64) bool { return a <= 0 }

// solve runs SMO with second order working set selection.
func (s *smoProblem) solve() smoResult {
	l := len(s.y)
	alpha := make([]float64, l)
	grad := append([]float64(nil), s.p...)
	diag := make([]float64, l)
	for t := 0; t < l; t++ {
		g := s.sample[t]
		diag[t] = s.kernel.row(g)[g]
	}

	maxIter := s.maxIter
	if maxIter <= 0 {
		maxIter = max(10000000, 100*l)
	}

	iter := 0
	converged := false
	for ; iter < maxIter; iter++ {
		i, j := s.selectWorkingSet(alpha, grad, diag)
		if j < 0 {
			converged = true
			break
		}

		ki := s.kernel.row(s.sample[i])
		kj := s.kernel.row(s.sample[j])
		kij := ki[s.sample[j]]
		oldI, oldJ := alpha[i], alpha[j]

		if s.y[i] != s.y[j] {
			quad := math.Max(diag[i]+diag[j]-2*kij, tau)
			delta := (-grad[i] - grad[j]) / quad
			diff := alpha[i] - alpha[j]
			alpha[i] += delta
			alpha[j] += delta
			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j] = 0
					alpha[i] = diff
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = -diff
			}
			if diff > 0 {
				if alpha[i] > s.c {
					alpha[i] = s.c
					alpha[j] = s.c - diff
				}
			} else if alpha[j] > s.c {
				alpha[j] = s.c
				alpha[i] = s.c + diff
			}
		} else {
			quad := math.Max(diag[i]+diag[j]-2*kij, tau)
			delta := (grad[i] - grad[j]) / quad
			sum := alpha[i] + alpha[j]
			alpha[i] -= delta
			alpha[j] += delta
			if sum > s.c {
				if alpha[i] > s.c {
					alpha[i] = s.c
					alpha[j] = sum - s.c
				}
			} else if alpha[j] < 0 {
				alpha[j] = 0
				alpha[i] = sum
			}
			if sum > s.c {
				if alpha[j] > s.c {
					alpha[j] = s.c
					alpha[i] = sum - s.c
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = sum
			}
		}

		dI, dJ := alpha[i]-oldI, alpha[j]-oldJ
		for t := 0; t < l; t++ {
			g := s.sample[t]
			grad[t] += s.y[t] * (s.y[i]*ki[g]*dI + s.y[j]*kj[g]*dJ)
		}
	}

	return smoResult{
		alpha:     alpha,
		rho:       s.rho(alpha, grad),
		iter:      iter,
		converged: converged,
	}
}

// selectWorkingSet returns the maximal violating i and the j giving the
// largest second order decrease. j is -1 once the KKT gap is below eps.
func (s *smoProblem) selectWorkingSet(alpha, grad, diag []float64) (int, int) {
	gmax := math.Inf(-1)
	gmax2 := math.Inf(-1)
	i := -1
	for t := range alpha {
		if s.y[t] > 0 {
			if !s.upperBound(alpha[t]) && -grad[t] >= gmax {
				gmax = -grad[t]
				i = t
			}
		} else if !s.lowerBound(alpha[t]) && grad[t] >= gmax {
			gmax = grad[t]
			i = t
		}
	}
	if i < 0 {
		return -1, -1
	}

	ki := s.kernel.row(s.sample[i])
	j := -1
	objMin := math.Inf(1)
	for t := range alpha {
		var gradDiff float64
		if s.y[t] > 0 {
			if s.lowerBound(alpha[t]) {
				continue
			}
			gradDiff = gmax + grad[t]
			gmax2 = math.Max(gmax2, grad[t])
		} else {
			if s.upperBound(alpha[t]) {
				continue
			}
			gradDiff = gmax - grad[t]
			gmax2 = math.Max(gmax2, -grad[t])
		}
		if gradDiff <= 0 {
			continue
		}
		quad := diag[i] + diag[t] - 2*ki[s.sample[t]]
		if quad <= 0 {
			quad = tau
		}
		if obj := -(gradDiff * gradDiff) / quad; obj <= objMin {
			objMin = obj
			j = t
		}
	}
	if gmax+gmax2 < s.eps || j < 0 {
		return i, -1
	}
	return i, j
}

// rho はフリーな変数の y·G の平均。フリー変数がなければ上下界の中点
func (s *smoProblem) rho(alpha, grad []float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	var sumFree float64
	nFree := 0
	for t := range alpha {
		yg := s.y[t] * grad[t]
		switch {
		case s.upperBound(alpha[t]):
			if s.y[t] < 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		case s.lowerBound(alpha[t]):
			if s.y[t] > 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		default:
			nFree++
			sumFree += yg
		}
	}
	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	return (ub + lb) / 2
}

// scaleGamma は gamma="scale" の値 1/(n_features·Var(X)) を返す
func scaleGamma(X *mat.Dense) float64 {
	rows, cols := X.Dims()
	var sum, sumSq float64
	for i := 0; i < rows; i++ {
		for _, v := range X.RawRowView(i) {
			sum += v
			sumSq += v * v
		}
	}
	n := float64(rows * cols)
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance <= 0 {
		return 1
	}
	return 1 / (float64(cols) * variance)
}
