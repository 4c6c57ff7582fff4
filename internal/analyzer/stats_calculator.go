package analyzer

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// parallelStatsThreshold is the pixel count above which rows are copied by
// several goroutines.
const parallelStatsThreshold = 100000

// ImagingStats summarises the bias-subtracted imaging region of a segment.
type ImagingStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// StatsCalculator computes ImagingStats
type StatsCalculator interface {
	Calculate(m mat.Matrix) ImagingStats
}

// statsCalculator reuses its sort buffers across calls
type statsCalculator struct {
	slicePool sync.Pool
}

// NewStatsCalculator creates a new statistics calculator
func NewStatsCalculator() StatsCalculator {
	return &statsCalculator{
		slicePool: sync.Pool{
			New: func() interface{} {
				s := make([]float64, 0, 1<<16)
				return &s
			},
		},
	}
}

// Calculate returns the zero value for an empty or nil matrix.
func (sc *statsCalculator) Calculate(m mat.Matrix) ImagingStats {
	if m == nil {
		return ImagingStats{}
	}
	rows, cols := m.Dims()
	n := rows * cols
	if n == 0 {
		return ImagingStats{}
	}

	bufp := sc.slicePool.Get().(*[]float64)
	defer sc.slicePool.Put(bufp)
	if cap(*bufp) < n {
		*bufp = make([]float64, n)
	}
	values := (*bufp)[:n]
	sc.flatten(m, rows, cols, values)

	mean, std := stat.MeanStdDev(values, nil)
	if n == 1 || math.IsNaN(std) {
		std = 0
	}
	sort.Float64s(values)
	return ImagingStats{
		Mean:   mean,
		Median: stat.Quantile(0.5, stat.Empirical, values, nil),
		StdDev: std,
		Min:    values[0],
		Max:    values[n-1],
	}
}

// flatten copies m row-major into dst, splitting large matrices into
// horizontal strips.
func (sc *statsCalculator) flatten(m mat.Matrix, rows, cols int, dst []float64) {
	if rows*cols < parallelStatsThreshold {
		copyRows(m, 0, rows, cols, dst)
		return
	}

	numWorkers := runtime.NumCPU()
	if rows < numWorkers {
		numWorkers = rows
	}
	rowsPerWorker := (rows + numWorkers - 1) / numWorkers // ceil division

	var wg sync.WaitGroup
	for start := 0; start < rows; start += rowsPerWorker {
		end := start + rowsPerWorker
		if end > rows {
			end = rows
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			copyRows(m, start, end, cols, dst)
		}(start, end)
	}
	wg.Wait()
}

func copyRows(m mat.Matrix, start, end, cols int, dst []float64) {
	if raw, ok := m.(mat.RawMatrixer); ok {
		rm := raw.RawMatrix()
		for i := start; i < end; i++ {
			copy(dst[i*cols:(i+1)*cols], rm.Data[i*rm.Stride:i*rm.Stride+cols])
		}
		return
	}
	for i := start; i < end; i++ {
		for j := 0; j < cols; j++ {
			dst[i*cols+j] = m.At(i, j)
		}
	}
}
