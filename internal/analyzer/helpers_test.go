package analyzer

import (
	"image"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// newImage returns a rows x cols image filled with fill.
func newImage(rows, cols int, fill float64) *mat.Dense {
	img := mat.NewDense(rows, cols, nil)
	if fill != 0 {
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				img.Set(y, x, fill)
			}
		}
	}
	return img
}

// randomDefects sprinkles hot pixels and a few hot columns over a noisy floor.
func randomDefects(seed int64, rows, cols int) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	img := mat.NewDense(rows, cols, nil)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			img.Set(y, x, rng.NormFloat64())
			if rng.Float64() < 0.03 {
				img.Set(y, x, 50+rng.Float64()*50)
			}
		}
	}
	for i := 0; i < 3; i++ {
		x := rng.Intn(cols)
		top := rng.Intn(rows / 2)
		for y := top; y < rows; y++ {
			img.Set(y, x, 80)
		}
	}
	return img
}

// testSegment is an in-memory SegmentImage.
type testSegment struct {
	amp        int
	imaging    mat.Matrix
	origin     image.Point
	fullHeight int
	fullWidth  int
}

func (s *testSegment) Amp() int             { return s.amp }
func (s *testSegment) Imaging() mat.Matrix  { return s.imaging }
func (s *testSegment) Origin() image.Point  { return s.origin }
func (s *testSegment) FullSize() (int, int) { return s.fullHeight, s.fullWidth }

// flagged lists every (x, y) of img strictly above threshold.
func flagged(img mat.Matrix, threshold float64) map[Pixel]bool {
	rows, cols := img.Dims()
	out := make(map[Pixel]bool)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if img.At(y, x) > threshold {
				out[Pixel{X: x, Y: y}] = true
			}
		}
	}
	return out
}
