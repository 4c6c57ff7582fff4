package analyzer

import (
	"math"
	"testing"

	apperrors "go-defect-inspector/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeThreshold(t *testing.T) {
	threshold, err := ComputeThreshold(5, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, 10.0, threshold)

	scaled, err := ComputeThreshold(5*3, 10, 5*3)
	require.NoError(t, err)
	assert.InDelta(t, threshold, scaled, 1e-12)
}

func TestComputeThreshold_InvalidParameters(t *testing.T) {
	tests := []struct {
		name                   string
		ethresh, exptime, gain float64
	}{
		{"zero ethresh", 0, 10, 5},
		{"negative ethresh", -1, 10, 5},
		{"zero exptime", 5, 0, 5},
		{"negative gain", 5, 10, -2},
		{"NaN gain", 5, 10, math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeThreshold(tt.ethresh, tt.exptime, tt.gain)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidParameter))
		})
	}
}
