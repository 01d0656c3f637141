// Package storage holds the evidence blob collaborator boundary. The engine
// only ever deletes and stat-checks blobs; uploads happen in the external
// intake/response surface.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore abstracts the evidence file store. Delete must be idempotent:
// the retry worker may re-run the same deletion after a partial failure.
type BlobStore interface {
	// Delete removes the blob for the given reference. Deleting a reference
	// that no longer exists is not an error.
	Delete(ctx context.Context, reference string) error

	// Exists reports whether a blob is present for the reference.
	Exists(ctx context.Context, reference string) (bool, error)
}

// FilesystemBlobStore stores blobs as files under a root directory, keyed by
// their reference.
type FilesystemBlobStore struct {
	root string
}

// NewFilesystemBlobStore creates a FilesystemBlobStore rooted at dir.
func NewFilesystemBlobStore(dir string) (*FilesystemBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FilesystemBlobStore{root: dir}, nil
}

// Delete removes the blob file. A missing file is treated as already deleted.
func (s *FilesystemBlobStore) Delete(_ context.Context, reference string) error {
	path, err := s.path(reference)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob %s: %w", reference, err)
	}
	return nil
}

// Exists reports whether the blob file is present.
func (s *FilesystemBlobStore) Exists(_ context.Context, reference string) (bool, error) {
	path, err := s.path(reference)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat blob %s: %w", reference, err)
	}
	return true, nil
}

func (s *FilesystemBlobStore) path(reference string) (string, error) {
	cleaned := filepath.Clean(reference)
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid blob reference: %q", reference)
	}
	return filepath.Join(s.root, cleaned), nil
}
