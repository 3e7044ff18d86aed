package blobstore

import (
	"fmt"
	"log/slog"

	"github.com/skypro1111/transcript-worker/internal/job"
)

// Open returns the store for backend ("azure" or "local")
func Open(backend, connectionString, localDir string, logger *slog.Logger) (job.BlobStore, error) {
	switch backend {
	case "azure":
		s, err := NewAzureStore(connectionString, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "local":
		s, err := NewLocalStore(localDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
