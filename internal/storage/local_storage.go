package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go-defect-inspector/internal/ccd"
	apperrors "go-defect-inspector/internal/errors"
)

// LocalExposureFetcher reads exposures from the local file system. When root is
// set, only files below it are served.
type LocalExposureFetcher struct {
	root    string
	maxSize int64
}

// NewLocalExposureFetcher creates a file fetcher
func NewLocalExposureFetcher(root string, maxSize int64) *LocalExposureFetcher {
	if root != "" {
		root = filepath.Clean(root)
	}
	return &LocalExposureFetcher{root: root, maxSize: maxSize}
}

// FetchExposure accepts a plain path or a file:// URL.
func (l *LocalExposureFetcher) FetchExposure(ctx context.Context, location string) (*ccd.Exposure, error) {
	path, err := l.resolve(location)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError("exposure file not found", err)
		}
		return nil, fmt.Errorf("open exposure: %w", err)
	}
	defer f.Close()

	exp, err := decodeLimited(f, l.maxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exposure: %w", err)
	}
	return exp, nil
}

func (l *LocalExposureFetcher) resolve(location string) (string, error) {
	path := location
	if strings.HasPrefix(location, "file:") {
		u, err := url.Parse(location)
		if err != nil {
			return "", apperrors.NewValidationError("invalid file URL", err)
		}
		path = u.Path
	}
	if strings.TrimSpace(path) == "" {
		return "", apperrors.NewValidationError("file path cannot be empty", nil)
	}
	path = filepath.Clean(path)
	if l.root == "" {
		return path, nil
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(l.root, path)
	}
	rel, err := filepath.Rel(l.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperrors.NewValidationError("file path outside exposure root", nil)
	}
	return path, nil
}
