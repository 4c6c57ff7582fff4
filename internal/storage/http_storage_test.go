package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "go-defect-inspector/internal/errors"
)

func noBackoff(int) time.Duration { return time.Millisecond }

func TestHTTPExposureFetcher_RetryLogic(t *testing.T) {
	payload := exposureBytes(t)

	tests := []struct {
		name          string
		responses     []int // Status codes to return in sequence
		expectRetries int32
		expectError   bool
		errorContains string
	}{
		{
			name:          "Success on first attempt",
			responses:     []int{200},
			expectRetries: 1,
		},
		{
			name:          "Success on second attempt after 5xx",
			responses:     []int{500, 200},
			expectRetries: 2,
		},
		{
			name:          "4xx client error - no retry",
			responses:     []int{404},
			expectRetries: 1,
			expectError:   true,
			errorContains: "after 1 attempt(s): client error: status code 404",
		},
		{
			name:          "4xx after 5xx - should retry until 4xx then stop",
			responses:     []int{500, 404},
			expectRetries: 2,
			expectError:   true,
			errorContains: "after 2 attempt(s): client error: status code 404",
		},
		{
			name:          "All 5xx errors - retry all attempts",
			responses:     []int{500, 502, 503},
			expectRetries: 3,
			expectError:   true,
			errorContains: "after 3 attempt(s): server error: status code 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestCount atomic.Int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(requestCount.Add(1)) - 1
				if n >= len(tt.responses) {
					w.WriteHeader(500)
					w.Write([]byte("Unexpected request"))
					return
				}
				if statusCode := tt.responses[n]; statusCode != 200 {
					w.WriteHeader(statusCode)
					w.Write([]byte(fmt.Sprintf("Error %d", statusCode)))
					return
				}
				w.Header().Set("Content-Type", "application/fits")
				w.Write(payload)
			}))
			defer server.Close()

			fetcher := NewHTTPExposureFetcher(5*time.Second, WithBackoff(noBackoff))
			exp, err := fetcher.FetchExposure(context.Background(), server.URL)

			if got := requestCount.Load(); got != tt.expectRetries {
				t.Errorf("Expected %d requests, got %d", tt.expectRetries, got)
			}

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error, but got none")
				} else if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain '%s', got: %s", tt.errorContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got: %s", err.Error())
			}
			if exp.ExpTime != 10 || len(exp.Segments) != 16 {
				t.Errorf("Unexpected exposure: exptime=%g segments=%d", exp.ExpTime, len(exp.Segments))
			}
		})
	}
}

func TestHTTPExposureFetcher_NetworkError_Retry(t *testing.T) {
	payload := exposureBytes(t)
	var requestCount atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestCount.Add(1) < 3 {
			// Simulate network error by closing connection
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
			}
			return
		}
		w.Write(payload)
	}))
	defer server.Close()

	var waits []time.Duration
	fetcher := NewHTTPExposureFetcher(5*time.Second, WithBackoff(func(attempt int) time.Duration {
		d := time.Duration(attempt+1) * time.Millisecond
		waits = append(waits, d)
		return d
	}))

	if _, err := fetcher.FetchExposure(context.Background(), server.URL); err != nil {
		t.Errorf("Expected success after retries, got error: %s", err.Error())
	}
	if got := requestCount.Load(); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}
	if len(waits) != 2 || waits[0] != time.Millisecond || waits[1] != 2*time.Millisecond {
		t.Errorf("Expected linear backoff of 1ms then 2ms, got %v", waits)
	}
}

func TestHTTPExposureFetcher_NotFITS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not an exposure</html>"))
	}))
	defer server.Close()

	fetcher := NewHTTPExposureFetcher(time.Second, WithBackoff(noBackoff))
	_, err := fetcher.FetchExposure(context.Background(), server.URL)
	if err == nil || !strings.Contains(err.Error(), "failed to decode exposure") {
		t.Errorf("Expected decode error, got %v", err)
	}
}

func TestHTTPExposureFetcher_SizeLimit(t *testing.T) {
	payload := exposureBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	fetcher := NewHTTPExposureFetcher(time.Second, WithMaxSize(1024))
	_, err := fetcher.FetchExposure(context.Background(), server.URL)
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got: %v", err)
	}
}

func TestHTTPExposureFetcher_SizeLimitFromContentLength(t *testing.T) {
	payload := exposureBytes(t)
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	}))
	defer server.Close()

	fetcher := NewHTTPExposureFetcher(time.Second, WithMaxSize(1024))
	_, err := fetcher.FetchExposure(context.Background(), server.URL)
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Fatalf("Expected validation error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "exceeds size limit") {
		t.Errorf("Unexpected error: %s", err.Error())
	}
	if got := requestCount.Load(); got != 1 {
		t.Errorf("Expected 1 request, got %d", got)
	}
}

func TestHTTPExposureFetcher_CancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	fetcher := NewHTTPExposureFetcher(time.Second, WithBackoff(func(int) time.Duration { return time.Minute }))
	start := time.Now()
	_, err := fetcher.FetchExposure(ctx, server.URL)
	if err == nil {
		t.Fatal("Expected error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Expected cancellation to interrupt the backoff")
	}
}
