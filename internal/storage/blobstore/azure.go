package blobstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/skypro1111/transcript-worker/internal/job"
)

// AzureStore is a BlobStore backed by an Azure Storage account
type AzureStore struct {
	client *azblob.Client
	logger *slog.Logger

	ready map[string]bool // containers known to exist
	mu    sync.Mutex
}

// NewAzureStore connects using a storage account connection string
func NewAzureStore(connectionString string, logger *slog.Logger) (*AzureStore, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("azure connection string cannot be empty")
	}

	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure blob client: %w", err)
	}

	return NewAzureStoreFromClient(client, logger), nil
}

// NewAzureStoreFromClient wraps an existing client
func NewAzureStoreFromClient(client *azblob.Client, logger *slog.Logger) *AzureStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &AzureStore{client: client, logger: logger, ready: make(map[string]bool)}
}

// Get downloads a blob
func (s *AzureStore) Get(ctx context.Context, container, key string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("blob %s/%s: %w", container, key, job.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download blob %s/%s: %w", container, key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s/%s: %w", container, key, err)
	}

	s.logger.Debug("Downloaded blob",
		slog.String("container", container),
		slog.String("key", key),
		slog.Int("bytes", len(data)),
	)
	return data, nil
}

// Put uploads data as a block blob, replacing any existing blob, and
// returns the blob URL
func (s *AzureStore) Put(ctx context.Context, container, name string, data []byte) (string, error) {
	if err := s.ensureContainer(ctx, container); err != nil {
		return "", err
	}

	if _, err := s.client.UploadBuffer(ctx, container, name, data, nil); err != nil {
		return "", fmt.Errorf("failed to upload blob %s/%s: %w", container, name, err)
	}

	url := s.URL(container, name)
	s.logger.Debug("Uploaded blob",
		slog.String("container", container),
		slog.String("name", name),
		slog.Int("bytes", len(data)),
	)
	return url, nil
}

// URL returns the address of a blob in this account
func (s *AzureStore) URL(container, name string) string {
	return s.client.ServiceClient().NewContainerClient(container).NewBlobClient(name).URL()
}

func (s *AzureStore) ensureContainer(ctx context.Context, container string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready[container] {
		return nil
	}

	_, err := s.client.CreateContainer(ctx, container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("failed to create container %s: %w", container, err)
	}
	if err == nil {
		s.logger.Info("Created blob container", slog.String("container", container))
	}

	s.ready[container] = true
	return nil
}
