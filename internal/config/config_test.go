package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddress())
	assert.Equal(t, 5.0, cfg.Ethresh)
	assert.Equal(t, 20, cfg.Colthresh)
	assert.Equal(t, "BAD", cfg.MaskPlane)
	assert.Equal(t, "mean", cfg.BiasMethod)
	assert.Equal(t, "defects.db", cfg.CatalogPath)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.AzureEnabled())
	assert.Empty(t, cfg.LocalRoot)
	assert.Equal(t, int64(512*1024*1024), cfg.MaxExposureSize)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ETHRESH", "2.5")
	t.Setenv("COLTHRESH", "100")
	t.Setenv("BIAS_METHOD", "Median")
	t.Setenv("CATALOG_PATH", "")
	t.Setenv("AZURE_STORAGE_ACCOUNT", "sensorlab")
	t.Setenv("AZURE_STORAGE_KEY", "a2V5")
	t.Setenv("ANALYSIS_TIMEOUT", "not-a-duration")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 2.5, cfg.Ethresh)
	assert.Equal(t, 100, cfg.Colthresh)
	assert.Equal(t, "median", cfg.BiasMethod)
	assert.Empty(t, cfg.CatalogPath, "explicitly empty CATALOG_PATH disables the catalog")
	assert.True(t, cfg.AzureEnabled())
	assert.Equal(t, 45*time.Second, cfg.AnalysisTimeout, "unparseable durations fall back to the default")
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "PORT", "70000"},
		{"port not numeric", "PORT", "http"},
		{"non-positive ethresh", "ETHRESH", "0"},
		{"negative colthresh", "COLTHRESH", "-1"},
		{"unknown bias method", "BIAS_METHOD", "spline"},
		{"defect fraction above one", "MAX_DEFECT_FRACTION", "1.5"},
		{"zero body size", "MAX_REQUEST_BODY_SIZE", "0"},
		{"negative exposure size", "MAX_EXPOSURE_SIZE", "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}
