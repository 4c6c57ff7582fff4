package analyzer

import (
	"fmt"
	"strings"

	apperrors "go-defect-inspector/internal/errors"
)

// DetectionOptions configures one bright pixel / bright column search
type DetectionOptions struct {
	// Ethresh is the bright pixel rate threshold in e-/s/pixel.
	Ethresh float64
	// Colthresh is the flagged pixel count a column must exceed to be bright.
	Colthresh int
	// MaskPlane labels the mask for the persistence layer; not used by detection.
	MaskPlane string

	// Gain in e-/DN, used for every amplifier without an entry in AmpGains.
	Gain     float64
	AmpGains map[int]float64
}

// DefaultOptions returns the standard dark-frame settings
func DefaultOptions() DetectionOptions {
	return DetectionOptions{
		Ethresh:   5,
		Colthresh: 20,
		MaskPlane: "BAD",
	}
}

// WithThresholds returns options with the rate and column thresholds replaced
func (opts DetectionOptions) WithThresholds(ethresh float64, colthresh int) DetectionOptions {
	opts.Ethresh = ethresh
	opts.Colthresh = colthresh
	return opts
}

// WithGain sets the gain shared by all amplifiers
func (opts DetectionOptions) WithGain(gain float64) DetectionOptions {
	opts.Gain = gain
	return opts
}

// WithAmpGains sets per-amplifier gains. The map is copied.
func (opts DetectionOptions) WithAmpGains(gains map[int]float64) DetectionOptions {
	opts.AmpGains = make(map[int]float64, len(gains))
	for amp, g := range gains {
		opts.AmpGains[amp] = g
	}
	return opts
}

// WithMaskPlane sets the mask plane label
func (opts DetectionOptions) WithMaskPlane(plane string) DetectionOptions {
	opts.MaskPlane = strings.ToUpper(strings.TrimSpace(plane))
	return opts
}

// GainFor returns the gain to use for amp.
func (opts DetectionOptions) GainFor(amp int) float64 {
	if g, ok := opts.AmpGains[amp]; ok {
		return g
	}
	return opts.Gain
}

// Validate checks the options that do not depend on a particular segment.
// Gains are checked per amplifier when the threshold is computed.
func (opts DetectionOptions) Validate() error {
	if !(opts.Ethresh > 0) {
		return apperrors.NewInvalidParameterError(fmt.Sprintf("ethresh must be > 0 (got %g)", opts.Ethresh), nil)
	}
	if opts.Colthresh < 0 {
		return apperrors.NewInvalidParameterError(fmt.Sprintf("colthresh must be >= 0 (got %d)", opts.Colthresh), nil)
	}
	if opts.MaskPlane == "" {
		return apperrors.NewInvalidParameterError("mask plane must not be empty", nil)
	}
	return nil
}
