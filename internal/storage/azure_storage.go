package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go-defect-inspector/internal/ccd"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

type azureStorage struct {
	client  *azblob.Client
	maxSize int64
}

// NewAzureStorage creates a fetcher for blobs of one storage account
func NewAzureStorage(accountName string, accountKey string, maxSize int64) (ExposureFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}

	return &azureStorage{client: client, maxSize: maxSize}, nil
}

// FetchExposure accepts https://<account>.blob.core.windows.net/<container>/<blob>
// and the older /<container>?blob=<blob> form.
func (s *azureStorage) FetchExposure(ctx context.Context, blobURL string) (*ccd.Exposure, error) {
	containerName, blobName, err := ParseBlobURL(blobURL)
	if err != nil {
		return nil, err
	}

	downloadResponse, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	retryReader := downloadResponse.Body
	defer retryReader.Close()

	exp, err := decodeLimited(retryReader, s.maxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exposure: %w", err)
	}
	return exp, nil
}

// ParseBlobURL splits a blob URL into container and blob name.
func ParseBlobURL(blobURL string) (container, blob string, err error) {
	parsedURL, err := url.Parse(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}

	path := strings.TrimPrefix(parsedURL.Path, "/")
	if b := parsedURL.Query().Get("blob"); b != "" {
		container, blob = path, b
	} else if i := strings.Index(path, "/"); i > 0 {
		container, blob = path[:i], path[i+1:]
	}
	if container == "" || blob == "" {
		return "", "", fmt.Errorf("invalid blob URL: %q has no container/blob path", blobURL)
	}
	return container, blob, nil
}

// IsBlobHost reports whether host belongs to Azure blob storage.
func IsBlobHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(host), ".blob.core.windows.net")
}
