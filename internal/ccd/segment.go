package ccd

import (
	"fmt"
	"sort"

	apperrors "go-defect-inspector/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// Segment is the raw readout of one amplifier, rows by columns in DN.
type Segment struct {
	Amp    int
	Pixels *mat.Dense
}

// Exposure is one multi-amplifier sensor readout.
type Exposure struct {
	ExpTime  float64
	SensorID string
	// Header holds the primary header cards that were kept, keyed by name.
	Header   map[string]string
	Segments []Segment
}

// Segment returns the readout of amp.
func (e *Exposure) Segment(amp int) (*Segment, bool) {
	for i := range e.Segments {
		if e.Segments[i].Amp == amp {
			return &e.Segments[i], true
		}
	}
	return nil, false
}

// Amps returns the amplifiers present, ascending.
func (e *Exposure) Amps() []int {
	amps := make([]int, 0, len(e.Segments))
	for _, s := range e.Segments {
		amps = append(amps, s.Amp)
	}
	sort.Ints(amps)
	return amps
}

// Validate checks the exposure time and that every segment matches geom.
func (e *Exposure) Validate(geom Geometry) error {
	if !(e.ExpTime > 0) {
		return apperrors.NewInvalidParameterError(fmt.Sprintf("exposure time must be > 0 (got %g)", e.ExpTime), nil)
	}
	if len(e.Segments) == 0 {
		return apperrors.NewValidationError("exposure has no amplifier segments", nil)
	}
	seen := make(map[int]bool, len(e.Segments))
	for _, s := range e.Segments {
		if err := checkAmp(s.Amp); err != nil {
			return err
		}
		if seen[s.Amp] {
			return apperrors.NewValidationError(fmt.Sprintf("duplicate segment for amp %d", s.Amp), nil)
		}
		seen[s.Amp] = true
		if s.Pixels == nil {
			return apperrors.NewValidationError(fmt.Sprintf("amp %d has no pixel data", s.Amp), nil)
		}
		rows, cols := s.Pixels.Dims()
		if rows != geom.Height || cols != geom.Width {
			return apperrors.NewDimensionError("segment size does not match geometry", nil).
				WithDetails("amp=%d got=%dx%d want=%dx%d", s.Amp, cols, rows, geom.Width, geom.Height)
		}
	}
	return nil
}
