package analyzer

import (
	"fmt"

	apperrors "go-defect-inspector/internal/errors"
)

// ComputeThreshold converts a rate of ethresh e-/s/pixel over exptime seconds into
// detector units using gain e-/DN.
func ComputeThreshold(ethresh, exptime, gain float64) (float64, error) {
	if !(ethresh > 0) {
		return 0, apperrors.NewInvalidParameterError(fmt.Sprintf("ethresh must be > 0 (got %g)", ethresh), nil)
	}
	if !(exptime > 0) {
		return 0, apperrors.NewInvalidParameterError(fmt.Sprintf("exptime must be > 0 (got %g)", exptime), nil)
	}
	if !(gain > 0) {
		return 0, apperrors.NewInvalidParameterError(fmt.Sprintf("gain must be > 0 (got %g)", gain), nil)
	}
	return ethresh * exptime / gain, nil
}
