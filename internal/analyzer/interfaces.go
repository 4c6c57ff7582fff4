package analyzer

import (
	"context"
	"image"

	"gonum.org/v1/gonum/mat"
)

// SegmentImage is one amplifier segment after bias subtraction and trimming.
type SegmentImage interface {
	// Amp is the 1-based amplifier number.
	Amp() int
	// Imaging holds the trimmed imaging region, row-major.
	Imaging() mat.Matrix
	// Origin is the imaging region's top-left corner within the untrimmed segment.
	Origin() image.Point
	// FullSize is the untrimmed segment's height and width.
	FullSize() (height, width int)
}

// DefectDetector finds bright pixels and bright columns
type DefectDetector interface {
	// FindSegment runs extract, classify and render on one segment.
	FindSegment(seg SegmentImage, exptime float64, opts DetectionOptions) (*SegmentResult, error)

	// FindAll runs FindSegment for every segment concurrently. Results are ordered by amp.
	FindAll(ctx context.Context, segs []SegmentImage, exptime float64, opts DetectionOptions) ([]*SegmentResult, error)

	// Lifecycle management
	Close() error
}
