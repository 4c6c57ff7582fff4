package validation

import (
	"fmt"
)

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// DefectThresholds defines the acceptance limits for a sensor's defects
type DefectThresholds struct {
	// MaxDefectFraction is the largest allowed share of defective imaging pixels,
	// per segment and over the whole sensor.
	MaxDefectFraction float64
	// MaxBrightColumns per segment; 0 disables the check.
	MaxBrightColumns int
}

// DefaultDefectThresholds returns the default acceptance limits
func DefaultDefectThresholds() DefectThresholds {
	return DefectThresholds{
		MaxDefectFraction: 0.005,
		MaxBrightColumns:  0,
	}
}

// DefectValidator checks detection results against acceptance limits
type DefectValidator struct {
	thresholds DefectThresholds
}

// NewDefectValidator creates a validator with default thresholds
func NewDefectValidator() *DefectValidator {
	return &DefectValidator{thresholds: DefaultDefectThresholds()}
}

// NewDefectValidatorWithThresholds creates a validator with custom thresholds
func NewDefectValidatorWithThresholds(thresholds DefectThresholds) *DefectValidator {
	return &DefectValidator{thresholds: thresholds}
}

// DefectIssue represents one failed acceptance check
type DefectIssue struct {
	Amp         int     `json:"amp,omitempty"`
	Channel     string  `json:"channel,omitempty"`
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"` // "error", "warning"
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// SegmentMetrics is what the validator needs from one amplifier's result
type SegmentMetrics struct {
	Amp           int
	Channel       string
	BrightPixels  int
	BrightColumns int
	// DefectPixels counts bright pixels plus every imaging pixel of a bright column.
	DefectPixels int
	ImagingArea  int
}

// DefectFraction returns DefectPixels over ImagingArea
func (m SegmentMetrics) DefectFraction() float64 {
	if m.ImagingArea <= 0 {
		return 0
	}
	return float64(m.DefectPixels) / float64(m.ImagingArea)
}

// ValidateSegment checks one amplifier
func (v *DefectValidator) ValidateSegment(m SegmentMetrics) []DefectIssue {
	var issues []DefectIssue

	if m.ImagingArea <= 0 {
		return append(issues, DefectIssue{
			Amp:      m.Amp,
			Channel:  m.Channel,
			Type:     "empty_segment",
			Message:  fmt.Sprintf("Amp %d has no imaging pixels", m.Amp),
			Severity: SeverityError,
		})
	}

	if f := m.DefectFraction(); f > v.thresholds.MaxDefectFraction {
		issues = append(issues, DefectIssue{
			Amp:         m.Amp,
			Channel:     m.Channel,
			Type:        "defect_fraction",
			Message:     fmt.Sprintf("Amp %d has %.4f%% defective pixels", m.Amp, 100*f),
			Severity:    SeverityError,
			ActualValue: f,
			Threshold:   v.thresholds.MaxDefectFraction,
		})
	}

	if v.thresholds.MaxBrightColumns > 0 && m.BrightColumns > v.thresholds.MaxBrightColumns {
		issues = append(issues, DefectIssue{
			Amp:         m.Amp,
			Channel:     m.Channel,
			Type:        "bright_columns",
			Message:     fmt.Sprintf("Amp %d has %d bright columns", m.Amp, m.BrightColumns),
			Severity:    SeverityWarning,
			ActualValue: float64(m.BrightColumns),
			Threshold:   float64(v.thresholds.MaxBrightColumns),
		})
	}

	return issues
}

// ValidateSensor checks every amplifier and then the sensor as a whole
func (v *DefectValidator) ValidateSensor(segments []SegmentMetrics) []DefectIssue {
	var issues []DefectIssue
	var defects, area int
	for _, m := range segments {
		issues = append(issues, v.ValidateSegment(m)...)
		defects += m.DefectPixels
		area += m.ImagingArea
	}

	if area > 0 {
		if f := float64(defects) / float64(area); f > v.thresholds.MaxDefectFraction {
			issues = append(issues, DefectIssue{
				Type:        "sensor_defect_fraction",
				Message:     fmt.Sprintf("Sensor has %.4f%% defective pixels", 100*f),
				Severity:    SeverityError,
				ActualValue: f,
				Threshold:   v.thresholds.MaxDefectFraction,
			})
		}
	}
	return issues
}

// ConvertIssuesToMessages flattens issues to their messages
func (v *DefectValidator) ConvertIssuesToMessages(issues []DefectIssue) []string {
	messages := make([]string, 0, len(issues))
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasCriticalIssues reports whether any issue is an error
func (v *DefectValidator) HasCriticalIssues(issues []DefectIssue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}
