package models

import (
	"time"

	"go-defect-inspector/pkg/validation"
)

// DefectAnalysis is the stored and returned result of one exposure
type DefectAnalysis struct {
	ID          string    `json:"id"`
	SensorID    string    `json:"sensor_id,omitempty"`
	ExposureURL string    `json:"exposure_url"`
	Timestamp   time.Time `json:"timestamp"`
	ExpTime     float64   `json:"exptime"`

	// Detection settings used
	Ethresh    float64 `json:"ethresh"`
	Colthresh  int     `json:"colthresh"`
	MaskPlane  string  `json:"mask_plane"`
	BiasMethod string  `json:"bias_method"`

	Segments []SegmentDefects `json:"segments"`

	TotalBrightPixels  int  `json:"total_bright_pixels"`
	TotalBrightColumns int  `json:"total_bright_columns"`
	Accepted           bool `json:"accepted"`

	// Acceptance issues
	Issues []validation.DefectIssue `json:"issues,omitempty"`

	ProcessingTimeSec float64 `json:"processing_time_sec"`
}

// SegmentDefects is the result of one amplifier
type SegmentDefects struct {
	Amp       int     `json:"amp"`
	Channel   string  `json:"channel"`
	Threshold float64 `json:"threshold_dn"`
	Gain      float64 `json:"gain"`
	BiasLevel float64 `json:"bias_level"`

	BrightColumns []int   `json:"bright_columns"`
	BrightPixels  []Pixel `json:"bright_pixels"`
	Footprints    int     `json:"footprints"`

	DefectPixels   int     `json:"defect_pixels"`
	DefectFraction float64 `json:"defect_fraction"`
	// ColumnCounts is omitted from history listings.
	ColumnCounts     []int        `json:"column_counts,omitempty"`
	Stats            SegmentStats `json:"stats"`
	ProcessingTimeMs float64      `json:"processing_time_ms"`
}

// SegmentStats describes the bias-subtracted imaging pixels of one amplifier, in DN
type SegmentStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
}

// Pixel is an imaging-region (column, row) coordinate
type Pixel struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// AnalysisSummary is one row of a sensor's analysis history
type AnalysisSummary struct {
	ID                 string    `json:"id"`
	SensorID           string    `json:"sensor_id,omitempty"`
	ExposureURL        string    `json:"exposure_url"`
	Timestamp          time.Time `json:"timestamp"`
	TotalBrightPixels  int       `json:"total_bright_pixels"`
	TotalBrightColumns int       `json:"total_bright_columns"`
	Accepted           bool      `json:"accepted"`
}

// Summary returns the history row of a
func (a *DefectAnalysis) Summary() AnalysisSummary {
	return AnalysisSummary{
		ID:                 a.ID,
		SensorID:           a.SensorID,
		ExposureURL:        a.ExposureURL,
		Timestamp:          a.Timestamp,
		TotalBrightPixels:  a.TotalBrightPixels,
		TotalBrightColumns: a.TotalBrightColumns,
		Accepted:           a.Accepted,
	}
}
