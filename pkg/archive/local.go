package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/raktar-project/raktar/pkg/apperr"
)

// LocalStore keeps archives in a directory tree under the data dir,
// mirroring the object-store key layout.
type LocalStore struct {
	root string
}

// NewLocalStore creates a filesystem-backed archive store rooted at
// dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalStore{root: dir}, nil
}

func (s *LocalStore) path(crateName, version string) string {
	return filepath.Join(s.root, filepath.FromSlash(objectKey(crateName, version)))
}

// Put stores the archive bytes for a version.
func (s *LocalStore) Put(ctx context.Context, crateName, version string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.path(crateName, version)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create crate directory: %w", err)
	}

	// Write to a temp file and rename so readers never observe a
	// partial archive.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store archive: %w", err)
	}
	return nil
}

// Get returns the archive bytes.
func (s *LocalStore) Get(ctx context.Context, crateName, version string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(crateName, version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.NonExistentCrateVersion(crateName, version)
		}
		return nil, apperr.Internal(err)
	}
	return data, nil
}
