package container

import (
	"errors"
	"fmt"
	"net/http"

	"go-defect-inspector/internal/analyzer"
	"go-defect-inspector/internal/ccd"
	"go-defect-inspector/internal/config"
	"go-defect-inspector/internal/factory"
	"go-defect-inspector/internal/logger"
	"go-defect-inspector/internal/observer"
	"go-defect-inspector/internal/repository"
	"go-defect-inspector/internal/service"
	"go-defect-inspector/internal/transport"
	"go-defect-inspector/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config             *config.Config
	detector           analyzer.DefectDetector
	exposureRepository repository.ExposureRepository
	defectRepository   repository.DefectRepository
	events             *observer.EventPublisher
	metrics            *observer.MetricsObserver
	analysisService    service.DefectAnalysisService
	handler            http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	logger.SetLevel(cfg.LogLevel)

	// Build dependency graph
	components := factory.NewComponentFactory(factory.StorageOptions{
		FetchTimeout:     cfg.ImageFetchTimeout,
		MaxExposureSize:  cfg.MaxExposureSize,
		AzureAccountName: cfg.AzureAccountName,
		AzureAccountKey:  cfg.AzureAccountKey,
		LocalRoot:        cfg.LocalRoot,
	})

	detector, err := components.DetectorFactory.CreateDetector(factory.BrightPixelDetector, cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}

	urlValidator := validation.NewURLValidator()
	if cfg.LocalRoot != "" {
		urlValidator = validation.NewURLValidatorWithFiles()
	}
	exposureRepository := repository.NewExposureRepository(
		factory.NewRoutingFetcher(components.StorageFactory), urlValidator)

	var defectRepository repository.DefectRepository
	if cfg.CatalogPath != "" {
		catalog, err := repository.NewSQLiteDefectRepository(cfg.CatalogPath)
		if err != nil {
			detector.Close()
			return nil, fmt.Errorf("failed to open defect catalog: %w", err)
		}
		defectRepository = catalog
	} else {
		logger.Warn("CATALOG_PATH is empty; analyses will not be stored")
	}

	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	settings := service.Settings{
		Defaults: analyzer.DefaultOptions().
			WithThresholds(cfg.Ethresh, cfg.Colthresh).
			WithMaskPlane(cfg.MaskPlane),
		BiasMethod:      cfg.BiasMethod,
		AnalysisTimeout: cfg.AnalysisTimeout,
		Geometry:        ccd.DefaultGeometry(),
		Thresholds: validation.DefectThresholds{
			MaxDefectFraction: cfg.MaxDefectFraction,
			MaxBrightColumns:  cfg.MaxBrightColumns,
		},
	}
	analysisService := service.NewDefectAnalysisService(
		exposureRepository, defectRepository, detector, events, settings)
	handler := transport.NewHandler(analysisService, metrics, cfg)

	return &Container{
		config:             cfg,
		detector:           detector,
		exposureRepository: exposureRepository,
		defectRepository:   defectRepository,
		events:             events,
		metrics:            metrics,
		analysisService:    analysisService,
		handler:            handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the defect analysis service
func (c *Container) Service() service.DefectAnalysisService {
	return c.analysisService
}

// Metrics returns the analysis counters
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// Close drains pending events and releases the detector and the catalog
func (c *Container) Close() error {
	c.events.Flush()
	var errs []error
	if err := c.detector.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.defectRepository != nil {
		if err := c.defectRepository.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
