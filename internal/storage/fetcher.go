package storage

import (
	"context"
	"io"

	"go-defect-inspector/internal/ccd"
	apperrors "go-defect-inspector/internal/errors"
	"go-defect-inspector/internal/fits"
)

// DefaultMaxExposureSize caps how many bytes a fetcher reads from one source.
const DefaultMaxExposureSize = 512 << 20

// ExposureFetcher retrieves and decodes a raw exposure.
type ExposureFetcher interface {
	FetchExposure(ctx context.Context, location string) (*ccd.Exposure, error)
}

// decodeLimited decodes at most limit bytes of r as an exposure.
func decodeLimited(r io.Reader, limit int64) (*ccd.Exposure, error) {
	if limit <= 0 {
		limit = DefaultMaxExposureSize
	}
	lr := &io.LimitedReader{R: r, N: limit + 1}
	exp, err := fits.DecodeExposure(lr)
	if lr.N <= 0 {
		return nil, apperrors.NewValidationError("exposure exceeds size limit", nil).
			WithDetails("limit=%d bytes", limit)
	}
	if err != nil {
		return nil, err
	}
	return exp, nil
}
