package analyzer

import (
	"image"
	"time"
)

// Span is a maximal run of over-threshold pixels in one row, X0..X1 inclusive.
type Span struct {
	Row int `json:"row"`
	X0  int `json:"x0"`
	X1  int `json:"x1"`
}

// Len returns the number of pixels covered by the span.
func (s Span) Len() int {
	return s.X1 - s.X0 + 1
}

// Offset shifts the span by (dx, dy).
func (s Span) Offset(dx, dy int) Span {
	return Span{Row: s.Row + dy, X0: s.X0 + dx, X1: s.X1 + dx}
}

// Pixel is a (column, row) coordinate.
type Pixel struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Footprint is one 8-connected region of over-threshold pixels.
type Footprint struct {
	ID    int             `json:"id"`
	Spans []Span          `json:"spans"`
	BBox  image.Rectangle `json:"bbox"`
	Area  int             `json:"area"`
	Peak  float64         `json:"peak"`
}

// Result partitions every flagged pixel into bright columns or bright pixels.
// BrightColumns is ascending; BrightPixels is ascending on (X, Y).
type Result struct {
	BrightColumns []int   `json:"bright_columns"`
	BrightPixels  []Pixel `json:"bright_pixels"`
}

// Translate returns a copy of r with every coordinate shifted by (dx, dy).
func (r Result) Translate(dx, dy int) Result {
	out := Result{
		BrightColumns: make([]int, len(r.BrightColumns)),
		BrightPixels:  make([]Pixel, len(r.BrightPixels)),
	}
	for i, x := range r.BrightColumns {
		out.BrightColumns[i] = x + dx
	}
	for i, p := range r.BrightPixels {
		out.BrightPixels[i] = Pixel{X: p.X + dx, Y: p.Y + dy}
	}
	return out
}

// SegmentResult is everything the per-amplifier pipeline produces.
type SegmentResult struct {
	Amp       int     `json:"amp"`
	Threshold float64 `json:"threshold"`
	Gain      float64 `json:"gain"`
	Result

	// Footprints is the number of connected regions found.
	Footprints int `json:"footprints"`
	// ColumnCounts holds the flagged-pixel count of every imaging column.
	ColumnCounts []int `json:"column_counts,omitempty"`
	// ImagingArea is the pixel count of the trimmed imaging region.
	ImagingArea int `json:"imaging_area"`
	// ImagingHeight is the row count of a bright column inside the imaging region.
	ImagingHeight int `json:"imaging_height"`
	// Stats describes the bias-subtracted imaging pixels, flagged ones included.
	Stats ImagingStats `json:"stats"`

	Mask           *DefectMask   `json:"-"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// DefectPixels counts the imaging pixels covered by the result: bright pixels
// plus the full imaging height of every bright column.
func (sr *SegmentResult) DefectPixels() int {
	return len(sr.BrightPixels) + len(sr.BrightColumns)*sr.ImagingHeight
}

// DefectFraction is DefectPixels over the imaging area.
func (sr *SegmentResult) DefectFraction() float64 {
	if sr.ImagingArea == 0 {
		return 0
	}
	return float64(sr.DefectPixels()) / float64(sr.ImagingArea)
}
