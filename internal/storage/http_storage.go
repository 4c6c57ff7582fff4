package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go-defect-inspector/internal/ccd"
	apperrors "go-defect-inspector/internal/errors"
	"go-defect-inspector/internal/logger"

	"github.com/sirupsen/logrus"
)

const maxAttempts = 3

// HTTPExposureFetcher downloads exposures over HTTP(S), retrying transient
// failures.
type HTTPExposureFetcher struct {
	client  *http.Client
	maxSize int64
	backoff func(attempt int) time.Duration
}

// HTTPOption configures an HTTPExposureFetcher
type HTTPOption func(*HTTPExposureFetcher)

// WithMaxSize caps the downloaded exposure size in bytes
func WithMaxSize(n int64) HTTPOption {
	return func(h *HTTPExposureFetcher) { h.maxSize = n }
}

// WithBackoff replaces the wait between attempts
func WithBackoff(backoff func(attempt int) time.Duration) HTTPOption {
	return func(h *HTTPExposureFetcher) { h.backoff = backoff }
}

// NewHTTPExposureFetcher creates an HTTP exposure fetcher
func NewHTTPExposureFetcher(timeout time.Duration, opts ...HTTPOption) *HTTPExposureFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	// Exposures are large single downloads; keep the pool small.
	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// FITS data is usually served compressed or not at all
		DisableCompression:     false,
		MaxResponseHeaderBytes: 4096,
	}

	h := &HTTPExposureFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxSize: DefaultMaxExposureSize,
		backoff: func(attempt int) time.Duration { return time.Duration(attempt+1) * time.Second },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPExposureFetcher) FetchExposure(ctx context.Context, location string) (*ccd.Exposure, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "application/fits, image/fits, application/octet-stream, */*")
	req.Header.Set("User-Agent", "Go-Defect-Inspector/1.0")

	// Only transient errors are retried: transport failures and 5xx.
	var resp *http.Response
	var lastErr error
	attempts := 0

	for attempt := 0; attempt < maxAttempts; attempt++ {
		attempts++
		resp, err = h.client.Do(req)
		if err != nil {
			lastErr = err
		}

		if err == nil && resp.StatusCode == http.StatusOK {
			break
		}

		if err == nil {
			resp.Body.Close()
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				lastErr = fmt.Errorf("client error: status code %d", resp.StatusCode)
				resp = nil
				break
			}
			lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
			resp = nil
		}

		if attempt < maxAttempts-1 {
			logger.WithFields(logrus.Fields{
				"source":  location,
				"attempt": attempt + 1,
				"error":   lastErr.Error(),
			}).Warn("Exposure fetch failed, retrying")

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch cancelled: %w", ctx.Err())
			case <-time.After(h.backoff(attempt)):
			}
		}
	}

	if resp == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("unknown error")
		}
		return nil, fmt.Errorf("failed to fetch exposure after %d attempt(s): %w", attempts, lastErr)
	}
	defer resp.Body.Close()

	if h.maxSize > 0 && resp.ContentLength > h.maxSize {
		return nil, apperrors.NewValidationError("exposure exceeds size limit", nil).
			WithDetails("content_length=%d limit=%d bytes", resp.ContentLength, h.maxSize)
	}
	exp, err := decodeLimited(resp.Body, h.maxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exposure: %w", err)
	}
	return exp, nil
}
