package repository

import "errors"

var (
	// ErrInvalidExposureURL indicates an invalid exposure URL
	ErrInvalidExposureURL = errors.New("invalid exposure URL")

	// ErrAnalysisNotFound indicates the analysis result was not found
	ErrAnalysisNotFound = errors.New("analysis result not found")

	// ErrRepositoryUnavailable indicates the repository is unavailable
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
