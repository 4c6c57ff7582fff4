package service

import "gonum.org/v1/gonum/mat"

type constantBias struct {
	level float64
}

func (b *constantBias) Levels(overscan mat.Matrix) ([]float64, error) {
	rows, _ := overscan.Dims()
	levels := make([]float64, rows)
	for i := range levels {
		levels[i] = b.level
	}
	return levels, nil
}

func (b *constantBias) GetStrategyName() string { return "constant" }
