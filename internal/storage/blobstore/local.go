package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/skypro1111/transcript-worker/internal/job"
)

// LocalStore is a BlobStore keeping each container as a subdirectory of root
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir, creating it if needed
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// Get reads a stored object
func (s *LocalStore) Get(ctx context.Context, container, key string) ([]byte, error) {
	path, err := s.path(container, key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("blob %s/%s: %w", container, key, job.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read blob %s/%s: %w", container, key, err)
	}
	return data, nil
}

// Put writes an object atomically and returns its file URL
func (s *LocalStore) Put(ctx context.Context, container, name string, data []byte) (string, error) {
	path, err := s.path(container, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create container %s: %w", container, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to stage blob %s/%s: %w", container, name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write blob %s/%s: %w", container, name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write blob %s/%s: %w", container, name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to store blob %s/%s: %w", container, name, err)
	}

	return "file://" + filepath.ToSlash(path), nil
}

// path resolves container/key under root, refusing escapes
func (s *LocalStore) path(container, key string) (string, error) {
	if container == "" || key == "" {
		return "", fmt.Errorf("container and key cannot be empty")
	}
	if strings.ContainsAny(container, `/\`) || container == "." || container == ".." {
		return "", fmt.Errorf("invalid container name %q", container)
	}

	base := filepath.Join(s.root, container)
	path := filepath.Join(base, filepath.FromSlash(key))
	if !strings.HasPrefix(path, base+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return path, nil
}
