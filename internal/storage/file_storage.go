package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Document categories map to subdirectories under the storage base dir,
// partitioned by year/month the way uploads accumulate.
const (
	CategoryProforma      = "proformas"
	CategoryPurchaseOrder = "purchase_orders"
	CategoryReceipt       = "receipts"
)

// FileStorage persists uploaded and generated documents on disk and returns
// paths relative to the base dir for storage in the database.
type FileStorage interface {
	Save(category, filename string, content []byte) (string, error)
	Read(relPath string) ([]byte, error)
	Remove(relPath string) error
	AbsPath(relPath string) (string, error)
}

// LocalFileStorage implements FileStorage for the local filesystem
type LocalFileStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileStorage creates a new LocalFileStorage
func NewLocalFileStorage(baseDir string, logger *zap.Logger) *LocalFileStorage {
	return &LocalFileStorage{baseDir: baseDir, logger: logger}
}

// Save writes content under <base>/<category>/<year>/<month>/ and returns the
// path relative to the base dir. The stored name is uuid-prefixed so two
// uploads carrying the same client filename never overwrite each other.
func (s *LocalFileStorage) Save(category, filename string, content []byte) (string, error) {
	filename = filepath.Base(filename) // strip any client-supplied directories
	filename = uuid.New().String() + "_" + filename
	now := time.Now()
	relPath := filepath.Join(category, now.Format("2006"), now.Format("01"), filename)

	fullPath, err := s.AbsPath(relPath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create storage directories",
			zap.String("path", filepath.Dir(fullPath)),
			zap.Error(err))
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("File saved",
		zap.String("path", relPath),
		zap.Int("size", len(content)))

	return relPath, nil
}

// Remove deletes a stored document. A missing file is not an error.
func (s *LocalFileStorage) Remove(relPath string) error {
	fullPath, err := s.AbsPath(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// Read loads a previously stored document.
func (s *LocalFileStorage) Read(relPath string) ([]byte, error) {
	fullPath, err := s.AbsPath(relPath)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(fullPath)
}

// AbsPath resolves a relative document path and rejects traversal outside
// the base dir.
func (s *LocalFileStorage) AbsPath(relPath string) (string, error) {
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(absBase, relPath))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if absPath != absBase && !strings.HasPrefix(absPath, absBase+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes storage directory: %s", relPath)
	}

	return absPath, nil
}
