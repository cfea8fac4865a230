package parallel

import (
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversEveryIndex(t *testing.T) {
	tests := []struct {
		name  string
		jobs  int
		items int
	}{
		{"all cpus", -1, 103},
		{"single worker", 1, 10},
		{"more workers than items", 16, 3},
		{"empty", 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := make([]int32, tt.items)
			Parallelize(tt.jobs, tt.items, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
			})
			for i, h := range hits {
				assert.Equal(t, int32(1), h, "index %d", i)
			}
		})
	}
}

func TestParallelizeWithThresholdRunsSequentially(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(8, 5, 10, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 5, end)
	})
	assert.Equal(t, 1, calls)
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, runtime.NumCPU(), Workers(-1))
	assert.Equal(t, runtime.NumCPU(), Workers(0))
	assert.Equal(t, 3, Workers(3))
}
