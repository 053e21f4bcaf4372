// Package storage provides persistence for the ticker registry.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/interfaces"
)

// Compile-time interface check
var _ interfaces.BlobStore = (*FileStore)(nil)

// FileStore keeps one document in a file with optional version backups.
type FileStore struct {
	path     string
	versions int
	logger   *common.Logger
}

// NewFileStore creates a FileStore and ensures the parent directory exists.
func NewFileStore(logger *common.Logger, config *common.FileConfig) (*FileStore, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("file store path is empty")
	}

	versions := config.Versions
	if versions < 0 {
		versions = 0
	}

	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	logger.Debug().Str("path", config.Path).Int("versions", versions).Msg("FileStore opened")

	return &FileStore{
		path:     config.Path,
		versions: versions,
		logger:   logger,
	}, nil
}

// Path returns the document location.
func (fs *FileStore) Path() string {
	return fs.path
}

// ReadAll reads the document. A missing file is reported as absent.
func (fs *FileStore) ReadAll(_ context.Context) ([]byte, bool, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s: %w", fs.path, err)
	}
	return data, true, nil
}

// WriteAll replaces the document atomically: the data goes to a temp file in
// the same directory which is then renamed over the target.
func (fs *FileStore) WriteAll(_ context.Context, data []byte) error {
	dir := filepath.Dir(fs.path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if fs.versions > 0 {
		fs.rotateVersions()
	}

	if err := os.Rename(tmpPath, fs.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// rotateVersions shifts existing backups up and copies the current document to v1.
// v{N} -> deleted, v{N-1} -> v{N}, ..., v1 -> v2, current -> v1 (copy)
// The current file is copied rather than moved so readers never see it missing.
func (fs *FileStore) rotateVersions() {
	os.Remove(fmt.Sprintf("%s.v%d", fs.path, fs.versions))

	for i := fs.versions; i > 1; i-- {
		src := fmt.Sprintf("%s.v%d", fs.path, i-1)
		dst := fmt.Sprintf("%s.v%d", fs.path, i)
		os.Rename(src, dst) // may not exist yet
	}

	current, err := os.ReadFile(fs.path)
	if err != nil {
		return
	}
	if err := os.WriteFile(fs.path+".v1", current, 0644); err != nil {
		fs.logger.Warn().Err(err).Str("path", fs.path).Msg("Failed to write registry backup")
	}
}

// Close is a no-op; files are opened per call.
func (fs *FileStore) Close() error {
	return nil
}
