package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go-defect-inspector/internal/config"
	apperrors "go-defect-inspector/internal/errors"
	"go-defect-inspector/internal/logger"
	"go-defect-inspector/internal/service"
	"go-defect-inspector/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// FITSContentType is the media type of mask downloads
const FITSContentType = "application/fits"

const defaultHistoryLimit = 50

// MetricsSource exposes the collected analysis counters
type MetricsSource interface {
	GetMetrics() map[string]interface{}
}

// NewHandler builds the HTTP routes. metrics may be nil.
func NewHandler(svc service.DefectAnalysisService, metrics MetricsSource, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	r.GET("/v1/stats", stats(metrics))

	v1 := r.Group("/v1/defects")
	v1.POST("", analyzeExposure(svc, cfg))
	v1.GET("", analysisHistory(svc))
	v1.GET("/:id", getAnalysis(svc))
	v1.GET("/:id/mask", getMask(svc))

	return r
}

func analyzeExposure(svc service.DefectAnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		// Log request start
		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing defect analysis request")

		var req models.DefectAnalysisRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			code := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				code = http.StatusRequestEntityTooLarge
			}
			respondError(c, code, "invalid request format", err)
			return
		}

		analysis, err := svc.AnalyzeExposure(ctx, req)
		if err != nil {
			respondError(c, determineStatusCode(err), "defect analysis failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"analysis_id": analysis.ID,
			"url":         req.URL,
			"duration_ms": time.Since(startTime).Milliseconds(),
			"n_pixels":    analysis.TotalBrightPixels,
			"n_columns":   analysis.TotalBrightColumns,
			"accepted":    analysis.Accepted,
		}).Info("Defect analysis request completed")

		c.JSON(http.StatusOK, analysis)
	}
}

func getAnalysis(svc service.DefectAnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		analysis, err := svc.GetAnalysis(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, determineStatusCode(err), "analysis lookup failed", err)
			return
		}
		c.JSON(http.StatusOK, analysis)
	}
}

func getMask(svc service.DefectAnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		mask, err := svc.GetMask(c.Request.Context(), id)
		if err != nil {
			respondError(c, determineStatusCode(err), "mask lookup failed", err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+"_bright_pixel_mask.fits"))
		c.Data(http.StatusOK, FITSContentType, mask)
	}
}

func analysisHistory(svc service.DefectAnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sensorID := c.Query("sensor_id")
		limit := defaultHistoryLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				respondError(c, http.StatusBadRequest, "invalid limit",
					apperrors.NewValidationError("limit must be a non-negative integer", err))
				return
			}
			limit = n
		}

		analyses, err := svc.GetHistory(c.Request.Context(), sensorID, limit)
		if err != nil {
			respondError(c, determineStatusCode(err), "history lookup failed", err)
			return
		}
		c.JSON(http.StatusOK, models.HistoryResponse{SensorID: sensorID, Analyses: analyses})
	}
}

func stats(metrics MetricsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, metrics.GetMetrics())
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
