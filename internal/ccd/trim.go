package ccd

import (
	"fmt"
	"image"

	apperrors "go-defect-inspector/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// BiasModel estimates one bias level per row of a serial overscan region.
type BiasModel interface {
	Levels(overscan mat.Matrix) ([]float64, error)
}

// TrimmedSegment is the bias-corrected imaging region of a segment. It keeps
// the imaging origin and the untrimmed size so results can be mapped back onto
// the raw segment.
type TrimmedSegment struct {
	amp     int
	imaging *mat.Dense
	origin  image.Point
	height  int
	width   int
	// BiasLevels holds the level subtracted from each imaging row.
	BiasLevels []float64
}

func (t *TrimmedSegment) Amp() int             { return t.amp }
func (t *TrimmedSegment) Imaging() mat.Matrix  { return t.imaging }
func (t *TrimmedSegment) Origin() image.Point  { return t.origin }
func (t *TrimmedSegment) FullSize() (int, int) { return t.height, t.width }

// UnbiasAndTrim subtracts the overscan bias from every imaging row and returns
// a copy of the imaging region. seg is not modified.
func UnbiasAndTrim(seg *Segment, geom Geometry, bias BiasModel) (*TrimmedSegment, error) {
	if seg == nil || seg.Pixels == nil {
		return nil, apperrors.NewInvalidParameterError("segment must not be nil", nil)
	}
	if bias == nil {
		return nil, apperrors.NewInvalidParameterError("bias model must not be nil", nil)
	}
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	rows, cols := seg.Pixels.Dims()
	if rows != geom.Height || cols != geom.Width {
		return nil, apperrors.NewDimensionError("segment size does not match geometry", nil).
			WithDetails("amp=%d got=%dx%d want=%dx%d", seg.Amp, cols, rows, geom.Width, geom.Height)
	}

	ov := geom.SerialOverscan
	overscan := seg.Pixels.Slice(ov.Min.Y, ov.Max.Y, ov.Min.X, ov.Max.X)
	levels, err := bias.Levels(overscan)
	if err != nil {
		return nil, fmt.Errorf("amp %d bias: %w", seg.Amp, err)
	}
	if len(levels) != ov.Dy() {
		return nil, apperrors.NewInternalError(
			fmt.Sprintf("bias model returned %d levels for %d rows", len(levels), ov.Dy()), nil)
	}

	im := geom.Imaging
	imaging := mat.DenseCopyOf(seg.Pixels.Slice(im.Min.Y, im.Max.Y, im.Min.X, im.Max.X))
	rowLevels := make([]float64, im.Dy())
	for i := range rowLevels {
		rowLevels[i] = levels[im.Min.Y+i-ov.Min.Y]
	}
	imaging.Apply(func(i, _ int, v float64) float64 {
		return v - rowLevels[i]
	}, imaging)

	return &TrimmedSegment{
		amp:        seg.Amp,
		imaging:    imaging,
		origin:     im.Min,
		height:     geom.Height,
		width:      geom.Width,
		BiasLevels: rowLevels,
	}, nil
}
