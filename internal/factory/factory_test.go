package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageTypeFor(t *testing.T) {
	tests := []struct {
		location string
		want     StorageType
	}{
		{"https://example.org/darks/e2v.fits", HTTPStorage},
		{"http://10.0.0.4:8000/e2v.fits", HTTPStorage},
		{"https://lab.blob.core.windows.net/darks/e2v.fits", AzureStorage},
		{"file:///data/darks/e2v.fits", LocalStorage},
		{"darks/e2v.fits", LocalStorage},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StorageTypeFor(tt.location), tt.location)
	}
}

func TestCreateStorage(t *testing.T) {
	f := NewStorageFactory(StorageOptions{})

	fetcher, err := f.CreateStorage(HTTPStorage)
	require.NoError(t, err)
	assert.NotNil(t, fetcher)

	_, err = f.CreateStorage(AzureStorage)
	assert.Error(t, err)
	_, err = f.CreateStorage(LocalStorage)
	assert.Error(t, err)
	_, err = f.CreateStorage("ftp")
	assert.Error(t, err)

	f = NewStorageFactory(StorageOptions{AllowAnyLocalPath: true})
	_, err = f.CreateStorage(LocalStorage)
	assert.NoError(t, err)
}

func TestRoutingFetcher_Unconfigured(t *testing.T) {
	r := NewRoutingFetcher(NewStorageFactory(StorageOptions{}))

	_, err := r.FetchExposure(context.Background(), "file:///tmp/e2v.fits")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no local storage configured")
}

func TestCreateDetector(t *testing.T) {
	f := NewDetectorFactory()

	d, err := f.CreateDetector(BrightPixelDetector, 2)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	_, err = f.CreateDetector("qr", 1)
	assert.Error(t, err)
}
