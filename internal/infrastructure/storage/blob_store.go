// Package storage provides the byte and metadata stores underneath
// document artifacts: a filesystem (or in-memory) blob store, an S3 blob
// store and an in-memory artifact repository.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/shared"
)

// FileBlobStore implements document.BlobStore on a filesystem rooted at a
// base directory. Writes go to a temporary file that is renamed into place,
// so readers never observe a partial artifact.
type FileBlobStore struct {
	fs     afero.Fs
	logger *zap.Logger
}

// NewFileBlobStore creates a blob store under basePath on the OS filesystem
func NewFileBlobStore(basePath string, logger *zap.Logger) (*FileBlobStore, error) {
	if basePath == "" {
		return nil, errors.New("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return newFileBlobStore(afero.NewBasePathFs(afero.NewOsFs(), basePath), logger), nil
}

// NewMemoryBlobStore creates a blob store held in process memory
func NewMemoryBlobStore(logger *zap.Logger) *FileBlobStore {
	return newFileBlobStore(afero.NewMemMapFs(), logger)
}

func newFileBlobStore(fsys afero.Fs, logger *zap.Logger) *FileBlobStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileBlobStore{fs: fsys, logger: logger}
}

// cleanKey rejects keys that would escape the store root
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: storage key is required", shared.ErrInvalidInput)
	}
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: invalid storage key %q", shared.ErrInvalidInput, key)
	}
	return clean, nil
}

// Put writes data under key, replacing any previous content
func (s *FileBlobStore) Put(ctx context.Context, key string, data []byte, _ string) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := path.Dir(name)
	if err := s.fs.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to sync object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to close object: %w", err)
	}
	if err := s.fs.Rename(tmpName, name); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to move object into place: %w", err)
	}
	return nil
}

// Get reads the bytes stored under key
func (s *FileBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	name, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// Delete removes the object; a missing key is not an error
func (s *FileBlobStore) Delete(_ context.Context, key string) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	s.logger.Debug("Deleted object", zap.String("key", key))
	return nil
}

// Ensure FileBlobStore implements document.BlobStore
var _ document.BlobStore = (*FileBlobStore)(nil)
