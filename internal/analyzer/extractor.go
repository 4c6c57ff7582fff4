package analyzer

import (
	"image"
	"math"

	apperrors "go-defect-inspector/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// Extract returns every span of pixels strictly above ethresh*exptime/gain, ordered
// by row and then by starting column. Coordinates are relative to img.
func Extract(img mat.Matrix, ethresh, exptime, gain float64) ([]Span, error) {
	regions, _, err := extractRegions(img, ethresh, exptime, gain)
	if err != nil {
		return nil, err
	}
	return regions.runs, nil
}

// ExtractFootprints groups the spans of Extract into 8-connected footprints,
// numbered in order of their first pixel in a row-major scan.
func ExtractFootprints(img mat.Matrix, ethresh, exptime, gain float64) ([]Footprint, error) {
	regions, _, err := extractRegions(img, ethresh, exptime, gain)
	if err != nil {
		return nil, err
	}
	return regions.footprints(), nil
}

// regions is the labelled run table of one thresholded image.
type regions struct {
	runs   []Span
	peaks  []float64
	parent []int
}

func extractRegions(img mat.Matrix, ethresh, exptime, gain float64) (*regions, float64, error) {
	if img == nil {
		return nil, 0, apperrors.NewInvalidParameterError("image must not be nil", nil)
	}
	rows, cols := img.Dims()
	if rows <= 0 || cols <= 0 {
		return nil, 0, apperrors.NewInvalidParameterError("image must not be empty", nil)
	}
	threshold, err := ComputeThreshold(ethresh, exptime, gain)
	if err != nil {
		return nil, 0, err
	}
	return scanRegions(img, rows, cols, threshold), threshold, nil
}

// scanRegions finds the runs row by row and unions each run with the runs of the
// previous row it touches, including diagonally.
func scanRegions(img mat.Matrix, rows, cols int, threshold float64) *regions {
	rg := &regions{}
	prevStart, prevEnd := 0, 0

	for y := 0; y < rows; y++ {
		rowStart := len(rg.runs)
		for x := 0; x < cols; x++ {
			v := img.At(y, x)
			if !(v > threshold) {
				continue
			}
			x0, peak := x, v
			for x+1 < cols {
				next := img.At(y, x+1)
				if !(next > threshold) {
					break
				}
				x++
				peak = math.Max(peak, next)
			}
			rg.runs = append(rg.runs, Span{Row: y, X0: x0, X1: x})
			rg.peaks = append(rg.peaks, peak)
			rg.parent = append(rg.parent, len(rg.parent))
		}
		rowEnd := len(rg.runs)

		if prevEnd > prevStart && rowEnd > rowStart {
			rg.linkRows(prevStart, prevEnd, rowStart, rowEnd)
		}
		prevStart, prevEnd = rowStart, rowEnd
	}
	return rg
}

// linkRows walks two row-sorted run lists in step; runs touch when their column
// ranges overlap after widening by one pixel.
func (rg *regions) linkRows(aStart, aEnd, bStart, bEnd int) {
	a, b := aStart, bStart
	for a < aEnd && b < bEnd {
		ra, rb := rg.runs[a], rg.runs[b]
		if ra.X0 <= rb.X1+1 && rb.X0 <= ra.X1+1 {
			rg.union(a, b)
		}
		if ra.X1 < rb.X1 {
			a++
		} else {
			b++
		}
	}
}

func (rg *regions) find(i int) int {
	for rg.parent[i] != i {
		rg.parent[i] = rg.parent[rg.parent[i]]
		i = rg.parent[i]
	}
	return i
}

// union keeps the lower index as root so labels follow scan order.
func (rg *regions) union(a, b int) {
	ra, rb := rg.find(a), rg.find(b)
	switch {
	case ra == rb:
	case ra < rb:
		rg.parent[rb] = ra
	default:
		rg.parent[ra] = rb
	}
}

func (rg *regions) count() int {
	n := 0
	for i := range rg.runs {
		if rg.find(i) == i {
			n++
		}
	}
	return n
}

func (rg *regions) footprints() []Footprint {
	index := make(map[int]int)
	var fps []Footprint
	for i, run := range rg.runs {
		root := rg.find(i)
		id, ok := index[root]
		if !ok {
			id = len(fps)
			index[root] = id
			fps = append(fps, Footprint{
				ID:   id,
				BBox: image.Rect(run.X0, run.Row, run.X1+1, run.Row+1),
				Peak: rg.peaks[i],
			})
		}
		fp := &fps[id]
		fp.Spans = append(fp.Spans, run)
		fp.Area += run.Len()
		fp.BBox = fp.BBox.Union(image.Rect(run.X0, run.Row, run.X1+1, run.Row+1))
		fp.Peak = math.Max(fp.Peak, rg.peaks[i])
	}
	return fps
}
