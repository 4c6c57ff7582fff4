package repository

import (
	"context"

	"go-defect-inspector/internal/ccd"
	"go-defect-inspector/pkg/models"
)

// ExposureRepository defines the interface for exposure data access operations
type ExposureRepository interface {
	// FetchExposure retrieves and decodes an exposure
	FetchExposure(ctx context.Context, exposureURL string) (*ccd.Exposure, error)

	// ValidateExposureURL validates if the provided URL is acceptable
	ValidateExposureURL(exposureURL string) error
}

// DefectRepository defines the interface for analysis result operations
type DefectRepository interface {
	// SaveAnalysis stores an analysis and its encoded mask file
	SaveAnalysis(ctx context.Context, analysis *models.DefectAnalysis, mask []byte) error

	// GetAnalysis retrieves a stored analysis
	GetAnalysis(ctx context.Context, id string) (*models.DefectAnalysis, error)

	// GetMask retrieves the mask file of a stored analysis
	GetMask(ctx context.Context, id string) ([]byte, error)

	// GetAnalysisHistory retrieves the analyses of a sensor, newest first
	GetAnalysisHistory(ctx context.Context, sensorID string, limit int) ([]models.AnalysisSummary, error)

	Close() error
}
