package analyzer

import (
	"context"
	"fmt"
	"sort"
	"time"

	apperrors "go-defect-inspector/internal/errors"
)

// brightPixels implements DefectDetector. It holds no per-call state; the pool
// only bounds how many segments run at once.
type brightPixels struct {
	workerPool *WorkerPool
	stats      StatsCalculator
}

// NewDefectDetector creates a detector running at most workers segments at a
// time (workers <= 0 uses the CPU count).
func NewDefectDetector(workers int) DefectDetector {
	pool := NewWorkerPool(workers)
	pool.Start()
	return &brightPixels{workerPool: pool, stats: NewStatsCalculator()}
}

// FindSegment thresholds the imaging region, classifies the flagged pixels in
// segment columns and renders the mask over the untrimmed segment. Reported
// coordinates are relative to the imaging region.
func (bp *brightPixels) FindSegment(seg SegmentImage, exptime float64, opts DetectionOptions) (*SegmentResult, error) {
	start := time.Now()
	if seg == nil {
		return nil, apperrors.NewInvalidParameterError("segment must not be nil", nil)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	fullHeight, fullWidth := seg.FullSize()
	if fullHeight <= 0 || fullWidth <= 0 {
		return nil, apperrors.NewInvalidParameterError(
			fmt.Sprintf("segment dimensions must be > 0 (got %dx%d)", fullWidth, fullHeight), nil)
	}

	gain := opts.GainFor(seg.Amp())
	imaging := seg.Imaging()
	rg, threshold, err := extractRegions(imaging, opts.Ethresh, exptime, gain)
	if err != nil {
		return nil, err
	}

	origin := seg.Origin()
	spans := make([]Span, len(rg.runs))
	for i, s := range rg.runs {
		spans[i] = s.Offset(origin.X, origin.Y)
	}

	tally, err := Tally(spans, fullWidth)
	if err != nil {
		return nil, err
	}
	result := classifyTally(tally, opts.Colthresh, origin.X, origin.Y)

	mask, err := Render(result.Translate(origin.X, origin.Y), fullHeight, fullWidth)
	if err != nil {
		return nil, err
	}

	rows, cols := imaging.Dims()
	counts := tally.Counts()
	imagingCounts := make([]int, cols)
	for x := 0; x < cols && origin.X+x < len(counts); x++ {
		imagingCounts[x] = counts[origin.X+x]
	}

	return &SegmentResult{
		Amp:            seg.Amp(),
		Threshold:      threshold,
		Gain:           gain,
		Result:         result,
		Footprints:     rg.count(),
		ColumnCounts:   imagingCounts,
		ImagingArea:    rows * cols,
		ImagingHeight:  rows,
		Stats:          bp.stats.Calculate(imaging),
		Mask:           mask,
		ProcessingTime: time.Since(start),
	}, nil
}

// FindAll fans the segments out over the worker pool. The first failing segment
// aborts the call; cancelling ctx abandons segments that have not started.
func (bp *brightPixels) FindAll(ctx context.Context, segs []SegmentImage, exptime float64, opts DetectionOptions) ([]*SegmentResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	results := make([]*SegmentResult, len(segs))
	errs := make([]error, len(segs))
	done := make(chan struct{}, len(segs))

	for i, seg := range segs {
		i, seg := i, seg
		job := func() {
			defer func() { done <- struct{}{} }()
			defer func() {
				if r := recover(); r != nil {
					results[i] = nil
					errs[i] = apperrors.NewInternalError(fmt.Sprintf("segment analysis panicked: %v", r), nil)
				}
			}()
			if ctx.Err() != nil {
				errs[i] = apperrors.NewTimeoutError("segment analysis cancelled", ctx.Err())
				return
			}
			results[i], errs[i] = bp.FindSegment(seg, exptime, opts)
		}
		if !bp.workerPool.Submit(job) {
			return nil, apperrors.NewInternalError("detector is closed", nil)
		}
	}

	for range segs {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, apperrors.NewTimeoutError("segment analysis cancelled", ctx.Err())
		}
	}

	for i, err := range errs {
		if err != nil {
			amp := 0
			if segs[i] != nil {
				amp = segs[i].Amp()
			}
			return nil, fmt.Errorf("amp %d: %w", amp, err)
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Amp < results[j].Amp })
	return results, nil
}

func (bp *brightPixels) Close() error {
	bp.workerPool.Close()
	return nil
}
