package analyzer

import (
	"fmt"

	apperrors "go-defect-inspector/internal/errors"
)

// DefectMask is a row-major boolean raster.
type DefectMask struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bits   []bool `json:"-"`
}

// At reports whether (x, y) is masked; out-of-range coordinates are not.
func (m *DefectMask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Bits[y*m.Width+x]
}

// Count returns the number of masked pixels.
func (m *DefectMask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Render builds the mask of result on a fullHeight x fullWidth raster. Bright
// columns are masked over the raster's full height. Every coordinate is checked
// before the raster is built.
func Render(result Result, fullHeight, fullWidth int) (*DefectMask, error) {
	if fullHeight <= 0 || fullWidth <= 0 {
		return nil, apperrors.NewInvalidParameterError(
			fmt.Sprintf("mask dimensions must be > 0 (got %dx%d)", fullWidth, fullHeight), nil)
	}
	for _, x := range result.BrightColumns {
		if x < 0 || x >= fullWidth {
			return nil, apperrors.NewDimensionError("bright column outside mask", nil).
				WithDetails("column=%d width=%d", x, fullWidth)
		}
	}
	for _, p := range result.BrightPixels {
		if p.X < 0 || p.X >= fullWidth || p.Y < 0 || p.Y >= fullHeight {
			return nil, apperrors.NewDimensionError("bright pixel outside mask", nil).
				WithDetails("x=%d y=%d size=%dx%d", p.X, p.Y, fullWidth, fullHeight)
		}
	}

	mask := &DefectMask{
		Width:  fullWidth,
		Height: fullHeight,
		Bits:   make([]bool, fullWidth*fullHeight),
	}
	for _, p := range result.BrightPixels {
		mask.Bits[p.Y*fullWidth+p.X] = true
	}
	for _, x := range result.BrightColumns {
		for y := 0; y < fullHeight; y++ {
			mask.Bits[y*fullWidth+x] = true
		}
	}
	return mask, nil
}
