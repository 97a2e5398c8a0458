/**
 * Local file storage
 *
 * Files are keyed by exam, submission and filename under a configured
 * root. Every write records a SHA-256 checksum; reads can verify it.
 */

package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/arjun-kshirsagar/annotex/internal/errors"
)

// FileStorage stores submission and output files on local disk
type FileStorage struct {
	root string
}

// NewFileStorage creates a file storage rooted at dir
func NewFileStorage(root string) (*FileStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FileStorage{root: root}, nil
}

// ComputeChecksum returns the hex SHA-256 of data
func ComputeChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SaveBytes writes data under exam/submission scope and returns the
// stored path and checksum
func (f *FileStorage) SaveBytes(data []byte, examID, submissionID, filename string) (string, string, error) {
	if examID == "" || submissionID == "" || filename == "" {
		return "", "", apperrors.NewValidationError("exam ID, submission ID and filename are required")
	}

	dir := filepath.Join(f.root, sanitizeKey(examID), sanitizeKey(submissionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", apperrors.NewStorageFailedError("", err)
	}

	path := filepath.Join(dir, sanitizeKey(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", apperrors.NewStorageFailedError("", err)
	}

	return path, ComputeChecksum(data), nil
}

// LoadBytes reads a stored file
func (f *FileStorage) LoadBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError("file", path)
		}
		return nil, apperrors.NewStorageFailedError("", err)
	}
	return data, nil
}

// LoadVerified reads a stored file and checks its SHA-256 checksum
func (f *FileStorage) LoadVerified(path, expectedChecksum string) ([]byte, error) {
	data, err := f.LoadBytes(path)
	if err != nil {
		return nil, err
	}

	actual := ComputeChecksum(data)
	if expectedChecksum != "" && actual != expectedChecksum {
		return nil, apperrors.NewChecksumMismatchError(path, expectedChecksum, actual)
	}
	return data, nil
}

// sanitizeKey keeps path components free of separators
func sanitizeKey(key string) string {
	key = strings.ReplaceAll(key, "/", "_")
	key = strings.ReplaceAll(key, "\\", "_")
	key = strings.ReplaceAll(key, "..", "_")
	return key
}
