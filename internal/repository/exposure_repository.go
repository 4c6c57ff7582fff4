package repository

import (
	"context"
	"fmt"

	"go-defect-inspector/internal/ccd"
	"go-defect-inspector/internal/storage"
	"go-defect-inspector/pkg/validation"
)

// FetchingExposureRepository implements ExposureRepository on top of an
// exposure fetcher
type FetchingExposureRepository struct {
	fetcher   storage.ExposureFetcher
	validator *validation.URLValidator
}

// NewExposureRepository creates a new exposure repository
func NewExposureRepository(fetcher storage.ExposureFetcher, validator *validation.URLValidator) ExposureRepository {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &FetchingExposureRepository{
		fetcher:   fetcher,
		validator: validator,
	}
}

// FetchExposure validates the location and retrieves the exposure
func (r *FetchingExposureRepository) FetchExposure(ctx context.Context, exposureURL string) (*ccd.Exposure, error) {
	if err := r.ValidateExposureURL(exposureURL); err != nil {
		return nil, err
	}
	return r.fetcher.FetchExposure(ctx, exposureURL)
}

// ValidateExposureURL validates if the provided URL is acceptable
func (r *FetchingExposureRepository) ValidateExposureURL(exposureURL string) error {
	if err := r.validator.ValidateExposureURL(exposureURL); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidExposureURL, err)
	}
	return nil
}
