package service

import (
	"context"
	"fmt"

	"go-defect-inspector/internal/analyzer"
	"go-defect-inspector/internal/ccd"
	apperrors "go-defect-inspector/internal/errors"
	"go-defect-inspector/internal/strategy"

	"gonum.org/v1/gonum/stat"
)

// ExposureDetection holds the per-amplifier results of one exposure, ordered by amp.
type ExposureDetection struct {
	Results []*analyzer.SegmentResult
	// BiasLevels is the mean bias subtracted from each amp.
	BiasLevels map[int]float64
}

// DetectExposure unbiases and trims every segment of exp, then runs the
// detector over all of them.
func DetectExposure(ctx context.Context, exp *ccd.Exposure, geom ccd.Geometry, detector analyzer.DefectDetector, bias strategy.BiasStrategy, opts analyzer.DetectionOptions) (*ExposureDetection, error) {
	if detector == nil || bias == nil {
		return nil, apperrors.NewInternalError("detector and bias strategy are required", nil)
	}
	if err := exp.Validate(geom); err != nil {
		return nil, err
	}

	segs := make([]analyzer.SegmentImage, 0, len(exp.Segments))
	levels := make(map[int]float64, len(exp.Segments))
	for i := range exp.Segments {
		trimmed, err := ccd.UnbiasAndTrim(&exp.Segments[i], geom, bias)
		if err != nil {
			return nil, fmt.Errorf("amp %d: %w", exp.Segments[i].Amp, err)
		}
		levels[trimmed.Amp()] = stat.Mean(trimmed.BiasLevels, nil)
		segs = append(segs, trimmed)
	}

	results, err := detector.FindAll(ctx, segs, exp.ExpTime, opts)
	if err != nil {
		return nil, err
	}
	return &ExposureDetection{Results: results, BiasLevels: levels}, nil
}

// TotalBrightPixels sums the bright pixels of every amp.
func (d *ExposureDetection) TotalBrightPixels() int {
	n := 0
	for _, r := range d.Results {
		n += len(r.BrightPixels)
	}
	return n
}

// TotalBrightColumns sums the bright columns of every amp.
func (d *ExposureDetection) TotalBrightColumns() int {
	n := 0
	for _, r := range d.Results {
		n += len(r.BrightColumns)
	}
	return n
}
