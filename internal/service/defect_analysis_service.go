package service

import (
	"bytes"
	"context"
	"errors"
	"time"

	"go-defect-inspector/internal/analyzer"
	"go-defect-inspector/internal/ccd"
	apperrors "go-defect-inspector/internal/errors"
	"go-defect-inspector/internal/fits"
	"go-defect-inspector/internal/logger"
	"go-defect-inspector/internal/observer"
	"go-defect-inspector/internal/repository"
	"go-defect-inspector/internal/strategy"
	"go-defect-inspector/pkg/models"
	"go-defect-inspector/pkg/validation"

	"github.com/google/uuid"
)

// DefectAnalysisService runs and serves bright pixel analyses
type DefectAnalysisService interface {
	// AnalyzeExposure fetches an exposure, finds its defects and stores the result
	AnalyzeExposure(ctx context.Context, request models.DefectAnalysisRequest) (*models.DefectAnalysis, error)

	// Catalog lookups
	GetAnalysis(ctx context.Context, id string) (*models.DefectAnalysis, error)
	GetMask(ctx context.Context, id string) ([]byte, error)
	GetHistory(ctx context.Context, sensorID string, limit int) ([]models.AnalysisSummary, error)

	ValidateExposureURL(exposureURL string) error
}

// Settings are the service-wide defaults
type Settings struct {
	Defaults        analyzer.DetectionOptions
	BiasMethod      string
	AnalysisTimeout time.Duration
	Geometry        ccd.Geometry
	Thresholds      validation.DefectThresholds
}

// DefaultSettings returns the defaults for an e2v sensor
func DefaultSettings() Settings {
	return Settings{
		Defaults:        analyzer.DefaultOptions(),
		BiasMethod:      strategy.Mean,
		AnalysisTimeout: 45 * time.Second,
		Geometry:        ccd.DefaultGeometry(),
		Thresholds:      validation.DefaultDefectThresholds(),
	}
}

type defectAnalysisService struct {
	exposures repository.ExposureRepository
	catalog   repository.DefectRepository
	detector  analyzer.DefectDetector
	validator *validation.DefectValidator
	events    observer.Subject
	settings  Settings
}

// NewDefectAnalysisService creates the service. catalog and events may be nil.
func NewDefectAnalysisService(
	exposures repository.ExposureRepository,
	catalog repository.DefectRepository,
	detector analyzer.DefectDetector,
	events observer.Subject,
	settings Settings,
) DefectAnalysisService {
	return &defectAnalysisService{
		exposures: exposures,
		catalog:   catalog,
		detector:  detector,
		validator: validation.NewDefectValidatorWithThresholds(settings.Thresholds),
		events:    events,
		settings:  settings,
	}
}

// AnalyzeExposure runs the full pipeline for one exposure
func (s *defectAnalysisService) AnalyzeExposure(ctx context.Context, request models.DefectAnalysisRequest) (*models.DefectAnalysis, error) {
	start := time.Now()
	analysis := &models.DefectAnalysis{
		ID:          uuid.NewString(),
		SensorID:    request.SensorID,
		ExposureURL: request.URL,
		Timestamp:   start.UTC(),
	}
	log := logger.ForAnalysis(analysis.ID).WithField("exposure_url", request.URL)

	opts, biasMethod := s.optionsFor(request)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	bias, err := strategy.NewBiasStrategy(biasMethod)
	if err != nil {
		return nil, err
	}
	analysis.Ethresh = opts.Ethresh
	analysis.Colthresh = opts.Colthresh
	analysis.MaskPlane = opts.MaskPlane
	analysis.BiasMethod = bias.GetStrategyName()

	if err := s.ValidateExposureURL(request.URL); err != nil {
		return nil, apperrors.NewValidationError("invalid exposure URL", err)
	}

	if s.settings.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.AnalysisTimeout)
		defer cancel()
	}

	s.publish(ctx, observer.AnalysisEvent{
		EventType:   observer.AnalysisStarted,
		AnalysisID:  analysis.ID,
		ExposureURL: request.URL,
		SensorID:    request.SensorID,
	})
	fail := func(err error) (*models.DefectAnalysis, error) {
		log.WithError(err).Error("Defect analysis failed")
		s.publish(ctx, observer.AnalysisEvent{
			EventType:      observer.AnalysisFailed,
			AnalysisID:     analysis.ID,
			ExposureURL:    request.URL,
			SensorID:       analysis.SensorID,
			ProcessingTime: time.Since(start),
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}

	fetchStart := time.Now()
	exp, err := s.exposures.FetchExposure(ctx, request.URL)
	if err != nil {
		s.publish(ctx, observer.AnalysisEvent{
			EventType:      observer.ExposureFetchFailed,
			AnalysisID:     analysis.ID,
			ExposureURL:    request.URL,
			ProcessingTime: time.Since(fetchStart),
			ErrorMessage:   err.Error(),
		})
		return fail(fetchError(ctx, err))
	}
	if analysis.SensorID == "" {
		analysis.SensorID = exp.SensorID
	}
	analysis.ExpTime = exp.ExpTime
	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.ExposureFetched,
		AnalysisID:     analysis.ID,
		ExposureURL:    request.URL,
		SensorID:       analysis.SensorID,
		ProcessingTime: time.Since(fetchStart),
		Success:        true,
		Metadata:       map[string]interface{}{"segments": len(exp.Segments)},
	})

	detection, err := DetectExposure(ctx, exp, s.settings.Geometry, s.detector, bias, opts)
	if err != nil {
		if ctx.Err() != nil && !apperrors.IsType(err, apperrors.ErrorTypeTimeout) {
			err = apperrors.NewTimeoutError("analysis timed out", err)
		}
		return fail(err)
	}

	metrics := make([]validation.SegmentMetrics, 0, len(detection.Results))
	for _, res := range detection.Results {
		seg := segmentDefects(res, detection.BiasLevels[res.Amp])
		analysis.Segments = append(analysis.Segments, seg)
		metrics = append(metrics, validation.SegmentMetrics{
			Amp:           res.Amp,
			Channel:       seg.Channel,
			BrightPixels:  len(res.BrightPixels),
			BrightColumns: len(res.BrightColumns),
			DefectPixels:  res.DefectPixels(),
			ImagingArea:   res.ImagingArea,
		})
		s.publish(ctx, observer.AnalysisEvent{
			EventType:      observer.SegmentAnalyzed,
			AnalysisID:     analysis.ID,
			ExposureURL:    request.URL,
			SensorID:       analysis.SensorID,
			Amp:            res.Amp,
			BrightPixels:   len(res.BrightPixels),
			BrightColumns:  len(res.BrightColumns),
			ProcessingTime: res.ProcessingTime,
			Success:        true,
		})
	}
	analysis.TotalBrightPixels = detection.TotalBrightPixels()
	analysis.TotalBrightColumns = detection.TotalBrightColumns()
	analysis.Issues = s.validator.ValidateSensor(metrics)
	analysis.Accepted = !s.validator.HasCriticalIssues(analysis.Issues)

	var mask bytes.Buffer
	if err := fits.EncodeMasks(&mask, detection.Results, opts, s.settings.Geometry); err != nil {
		return fail(apperrors.NewProcessingError("failed to encode mask file", err))
	}

	analysis.ProcessingTimeSec = time.Since(start).Seconds()
	if s.catalog != nil {
		if err := s.catalog.SaveAnalysis(ctx, analysis, mask.Bytes()); err != nil {
			return fail(apperrors.NewInternalError("failed to store analysis", err))
		}
	}

	log.WithField("n_pixels", analysis.TotalBrightPixels).
		WithField("n_columns", analysis.TotalBrightColumns).
		WithField("accepted", analysis.Accepted).
		Info("Defect analysis finished")
	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		AnalysisID:     analysis.ID,
		ExposureURL:    request.URL,
		SensorID:       analysis.SensorID,
		BrightPixels:   analysis.TotalBrightPixels,
		BrightColumns:  analysis.TotalBrightColumns,
		ProcessingTime: time.Since(start),
		Success:        true,
	})
	return analysis, nil
}

// GetAnalysis returns a stored analysis
func (s *defectAnalysisService) GetAnalysis(ctx context.Context, id string) (*models.DefectAnalysis, error) {
	if s.catalog == nil {
		return nil, catalogDisabled()
	}
	a, err := s.catalog.GetAnalysis(ctx, id)
	if err != nil {
		return nil, catalogError(id, err)
	}
	return a, nil
}

// GetMask returns the mask file of a stored analysis
func (s *defectAnalysisService) GetMask(ctx context.Context, id string) ([]byte, error) {
	if s.catalog == nil {
		return nil, catalogDisabled()
	}
	mask, err := s.catalog.GetMask(ctx, id)
	if err != nil {
		return nil, catalogError(id, err)
	}
	return mask, nil
}

// GetHistory lists the analyses of a sensor, newest first
func (s *defectAnalysisService) GetHistory(ctx context.Context, sensorID string, limit int) ([]models.AnalysisSummary, error) {
	if sensorID == "" {
		return nil, apperrors.NewValidationError("sensor_id is required", nil)
	}
	if s.catalog == nil {
		return nil, catalogDisabled()
	}
	history, err := s.catalog.GetAnalysisHistory(ctx, sensorID, limit)
	if err != nil {
		return nil, catalogError(sensorID, err)
	}
	return history, nil
}

// ValidateExposureURL validates the exposure location
func (s *defectAnalysisService) ValidateExposureURL(exposureURL string) error {
	return s.exposures.ValidateExposureURL(exposureURL)
}

// optionsFor merges the request overrides into the service defaults
func (s *defectAnalysisService) optionsFor(request models.DefectAnalysisRequest) (analyzer.DetectionOptions, string) {
	opts := s.settings.Defaults
	if request.Ethresh != nil || request.Colthresh != nil {
		ethresh, colthresh := opts.Ethresh, opts.Colthresh
		if request.Ethresh != nil {
			ethresh = *request.Ethresh
		}
		if request.Colthresh != nil {
			colthresh = *request.Colthresh
		}
		opts = opts.WithThresholds(ethresh, colthresh)
	}
	if request.MaskPlane != "" {
		opts = opts.WithMaskPlane(request.MaskPlane)
	}
	opts = opts.WithGain(request.Gain)
	if len(request.Gains) > 0 {
		opts = opts.WithAmpGains(request.Gains)
	}

	biasMethod := s.settings.BiasMethod
	if request.BiasMethod != "" {
		biasMethod = request.BiasMethod
	}
	return opts, biasMethod
}

func (s *defectAnalysisService) publish(ctx context.Context, event observer.AnalysisEvent) {
	if s.events != nil {
		s.events.NotifyObservers(ctx, event)
	}
}

func segmentDefects(res *analyzer.SegmentResult, biasLevel float64) models.SegmentDefects {
	// Amps come from a validated exposure, so the lookup cannot fail.
	channel, _ := ccd.ChannelID(res.Amp)
	pixels := make([]models.Pixel, len(res.BrightPixels))
	for i, p := range res.BrightPixels {
		pixels[i] = models.Pixel{X: p.X, Y: p.Y}
	}
	columns := make([]int, len(res.BrightColumns))
	copy(columns, res.BrightColumns)

	return models.SegmentDefects{
		Amp:            res.Amp,
		Channel:        channel,
		Threshold:      res.Threshold,
		Gain:           res.Gain,
		BiasLevel:      biasLevel,
		BrightColumns:  columns,
		BrightPixels:   pixels,
		Footprints:     res.Footprints,
		DefectPixels:   res.DefectPixels(),
		DefectFraction: res.DefectFraction(),
		ColumnCounts:   res.ColumnCounts,
		Stats: models.SegmentStats{
			Mean:   res.Stats.Mean,
			Median: res.Stats.Median,
			StdDev: res.Stats.StdDev,
		},
		ProcessingTimeMs: float64(res.ProcessingTime.Microseconds()) / 1000,
	}
}

func fetchError(ctx context.Context, err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case ctx.Err() != nil:
		return apperrors.NewTimeoutError("exposure fetch timed out", err)
	default:
		return apperrors.NewNetworkError("failed to fetch exposure", err)
	}
}

func catalogError(key string, err error) error {
	if errors.Is(err, repository.ErrAnalysisNotFound) {
		return apperrors.NewNotFoundError("analysis not found", err).WithDetails("key=%s", key)
	}
	return apperrors.NewInternalError("defect catalog lookup failed", err)
}

func catalogDisabled() error {
	return apperrors.NewNotFoundError("defect catalog is disabled", repository.ErrRepositoryUnavailable)
}
