package factory

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go-defect-inspector/internal/analyzer"
	"go-defect-inspector/internal/ccd"
	"go-defect-inspector/internal/storage"
)

// DetectorType represents different types of defect detectors
type DetectorType string

const (
	// BrightPixelDetector finds bright pixels and bright columns in dark frames
	BrightPixelDetector DetectorType = "bright_pixels"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based exposure fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
	// LocalStorage for local file system
	LocalStorage StorageType = "local"
)

// DetectorFactory creates defect detectors
type DetectorFactory interface {
	CreateDetector(detectorType DetectorType, workers int) (analyzer.DefectDetector, error)
}

// StorageFactory creates storage implementations
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ExposureFetcher, error)
}

// StorageOptions configures the storage backends a StorageFactory can build
type StorageOptions struct {
	FetchTimeout     time.Duration
	MaxExposureSize  int64
	AzureAccountName string
	AzureAccountKey  string
	// LocalRoot enables LocalStorage below this directory.
	LocalRoot string
	// AllowAnyLocalPath enables LocalStorage without a root; used by the CLI.
	AllowAnyLocalPath bool
}

type detectorFactory struct{}

// NewDetectorFactory creates a new detector factory
func NewDetectorFactory() DetectorFactory {
	return &detectorFactory{}
}

// CreateDetector creates a detector based on the specified type
func (f *detectorFactory) CreateDetector(detectorType DetectorType, workers int) (analyzer.DefectDetector, error) {
	switch detectorType {
	case BrightPixelDetector, "":
		return analyzer.NewDefectDetector(workers), nil
	default:
		return nil, fmt.Errorf("unsupported detector type: %s", detectorType)
	}
}

type storageFactory struct {
	opts StorageOptions
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(opts StorageOptions) StorageFactory {
	return &storageFactory{opts: opts}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ExposureFetcher, error) {
	switch storageType {
	case HTTPStorage:
		return storage.NewHTTPExposureFetcher(f.opts.FetchTimeout, storage.WithMaxSize(f.opts.MaxExposureSize)), nil
	case AzureStorage:
		if f.opts.AzureAccountName == "" || f.opts.AzureAccountKey == "" {
			return nil, fmt.Errorf("azure storage is not configured")
		}
		return storage.NewAzureStorage(f.opts.AzureAccountName, f.opts.AzureAccountKey, f.opts.MaxExposureSize)
	case LocalStorage:
		if f.opts.LocalRoot == "" && !f.opts.AllowAnyLocalPath {
			return nil, fmt.Errorf("local storage is not configured")
		}
		return storage.NewLocalExposureFetcher(f.opts.LocalRoot, f.opts.MaxExposureSize), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// StorageTypeFor picks the backend serving location: file URLs and bare paths
// are local, blob hosts are Azure, everything else is plain HTTP.
func StorageTypeFor(location string) StorageType {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		return LocalStorage
	}
	if strings.EqualFold(u.Scheme, "https") && storage.IsBlobHost(u.Hostname()) {
		return AzureStorage
	}
	return HTTPStorage
}

// routingFetcher dispatches every location to the backend that serves it. Azure
// falls back to HTTP when no credentials are configured, which works for public
// and SAS-signed blobs.
type routingFetcher struct {
	fetchers map[StorageType]storage.ExposureFetcher
}

// NewRoutingFetcher builds every backend the factory can create
func NewRoutingFetcher(f StorageFactory) storage.ExposureFetcher {
	r := &routingFetcher{fetchers: make(map[StorageType]storage.ExposureFetcher)}
	for _, st := range []StorageType{HTTPStorage, AzureStorage, LocalStorage} {
		if fetcher, err := f.CreateStorage(st); err == nil {
			r.fetchers[st] = fetcher
		}
	}
	return r
}

func (r *routingFetcher) FetchExposure(ctx context.Context, location string) (*ccd.Exposure, error) {
	st := StorageTypeFor(location)
	fetcher, ok := r.fetchers[st]
	if !ok && st == AzureStorage {
		fetcher, ok = r.fetchers[HTTPStorage]
	}
	if !ok {
		return nil, fmt.Errorf("no %s storage configured for %q", st, location)
	}
	return fetcher.FetchExposure(ctx, location)
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	DetectorFactory DetectorFactory
	StorageFactory  StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(opts StorageOptions) *ComponentFactory {
	return &ComponentFactory{
		DetectorFactory: NewDetectorFactory(),
		StorageFactory:  NewStorageFactory(opts),
	}
}
