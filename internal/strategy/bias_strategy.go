package strategy

import (
	"fmt"
	"sort"
	"strings"

	apperrors "go-defect-inspector/internal/errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// BiasStrategy estimates the bias level of every row from the serial overscan
type BiasStrategy interface {
	// Levels returns one bias level per overscan row.
	Levels(overscan mat.Matrix) ([]float64, error)
	GetStrategyName() string
}

const (
	Mean   = "mean"
	Median = "median"
	Row    = "row"
)

// Names lists the available strategies
func Names() []string {
	return []string{Mean, Median, Row}
}

// NewBiasStrategy returns the strategy registered under name
func NewBiasStrategy(name string) (BiasStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Mean, "":
		return &MeanBiasStrategy{}, nil
	case Median:
		return &MedianBiasStrategy{}, nil
	case Row:
		return &RowBiasStrategy{}, nil
	default:
		return nil, apperrors.NewInvalidParameterError(
			fmt.Sprintf("unknown bias method %q (want one of %s)", name, strings.Join(Names(), ", ")), nil)
	}
}

// MeanBiasStrategy subtracts one level, the mean of the whole overscan
type MeanBiasStrategy struct{}

// Levels performs the mean estimate
func (s *MeanBiasStrategy) Levels(overscan mat.Matrix) ([]float64, error) {
	values, rows, err := flatten(overscan)
	if err != nil {
		return nil, err
	}
	return constant(stat.Mean(values, nil), rows), nil
}

// GetStrategyName returns the strategy name
func (s *MeanBiasStrategy) GetStrategyName() string {
	return Mean
}

// MedianBiasStrategy is the mean strategy made robust to cosmic rays and hot
// overscan pixels
type MedianBiasStrategy struct{}

// Levels performs the median estimate
func (s *MedianBiasStrategy) Levels(overscan mat.Matrix) ([]float64, error) {
	values, rows, err := flatten(overscan)
	if err != nil {
		return nil, err
	}
	sort.Float64s(values)
	return constant(stat.Quantile(0.5, stat.Empirical, values, nil), rows), nil
}

// GetStrategyName returns the strategy name
func (s *MedianBiasStrategy) GetStrategyName() string {
	return Median
}

// RowBiasStrategy follows bias drift along the parallel direction with a
// separate mean per row
type RowBiasStrategy struct{}

// Levels performs the per-row estimate
func (s *RowBiasStrategy) Levels(overscan mat.Matrix) ([]float64, error) {
	if _, _, err := flatten(overscan); err != nil {
		return nil, err
	}
	rows, _ := overscan.Dims()
	levels := make([]float64, rows)
	for i := 0; i < rows; i++ {
		levels[i] = stat.Mean(mat.Row(nil, i, overscan), nil)
	}
	return levels, nil
}

// GetStrategyName returns the strategy name
func (s *RowBiasStrategy) GetStrategyName() string {
	return Row
}

func flatten(m mat.Matrix) ([]float64, int, error) {
	if m == nil {
		return nil, 0, apperrors.NewInvalidParameterError("overscan must not be nil", nil)
	}
	rows, cols := m.Dims()
	if rows == 0 || cols == 0 {
		return nil, 0, apperrors.NewInvalidParameterError("overscan region is empty", nil)
	}
	values := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			values = append(values, m.At(i, j))
		}
	}
	return values, rows, nil
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
