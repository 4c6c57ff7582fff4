package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64
	LogLevel           string

	// Detection defaults, overridable per request.
	Ethresh    float64
	Colthresh  int
	MaskPlane  string
	BiasMethod string
	Workers    int

	// Acceptance thresholds applied to each segment's result.
	MaxDefectFraction float64
	MaxBrightColumns  int

	// CatalogPath is the SQLite defect catalog; empty disables persistence.
	CatalogPath string

	AzureAccountName string
	AzureAccountKey  string

	// LocalRoot enables file:// exposure URLs below this directory.
	LocalRoot       string
	MaxExposureSize int64
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether blob credentials were supplied.
func (c *Config) AzureEnabled() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != ""
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 60*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 30*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 45*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 1024*1024), // 1MB of JSON
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		Ethresh:            parseFloatOrDefault("ETHRESH", 5),
		Colthresh:          int(parseIntOrDefault("COLTHRESH", 20)),
		MaskPlane:          getEnvOrDefault("MASK_PLANE", "BAD"),
		BiasMethod:         strings.ToLower(getEnvOrDefault("BIAS_METHOD", "mean")),
		Workers:            int(parseIntOrDefault("WORKERS", 0)),
		MaxDefectFraction:  parseFloatOrDefault("MAX_DEFECT_FRACTION", 0.005),
		MaxBrightColumns:   int(parseIntOrDefault("MAX_BRIGHT_COLUMNS", 0)),
		CatalogPath:        os.Getenv("CATALOG_PATH"),
		AzureAccountName:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureAccountKey:    os.Getenv("AZURE_STORAGE_KEY"),
		LocalRoot:          os.Getenv("LOCAL_EXPOSURE_ROOT"),
		MaxExposureSize:    parseIntOrDefault("MAX_EXPOSURE_SIZE", 512*1024*1024),
	}
	if _, set := os.LookupEnv("CATALOG_PATH"); !set {
		cfg.CatalogPath = "defects.db"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that cannot be defaulted away.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.MaxExposureSize <= 0 {
		return fmt.Errorf("MAX_EXPOSURE_SIZE must be > 0 (got %d)", c.MaxExposureSize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.AnalysisTimeout)
	}
	if c.Ethresh <= 0 {
		return fmt.Errorf("ETHRESH must be > 0 (got %g)", c.Ethresh)
	}
	if c.Colthresh < 0 {
		return fmt.Errorf("COLTHRESH must be >= 0 (got %d)", c.Colthresh)
	}
	if strings.TrimSpace(c.MaskPlane) == "" {
		return fmt.Errorf("MASK_PLANE must not be empty")
	}
	switch c.BiasMethod {
	case "mean", "median", "row":
	default:
		return fmt.Errorf("BIAS_METHOD must be one of mean, median, row (got %q)", c.BiasMethod)
	}
	if c.MaxDefectFraction <= 0 || c.MaxDefectFraction > 1 {
		return fmt.Errorf("MAX_DEFECT_FRACTION must be in (0, 1] (got %g)", c.MaxDefectFraction)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}
