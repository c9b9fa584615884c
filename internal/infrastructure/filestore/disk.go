// Package filestore keeps uploaded dataset files on local disk.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type DiskStore struct {
	dir string
}

// NewDiskStore creates the directory if it does not exist.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dataset directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dataset directory: %w", err)
	}
	return &DiskStore{dir: abs}, nil
}

// Save writes r to <dir>/<id>.csv and returns the path and byte count.
// At most limit bytes are accepted; a larger input removes the partial file.
func (s *DiskStore) Save(id string, r io.Reader, limit int64) (string, int64, error) {
	if id == "" || filepath.Base(id) != id {
		return "", 0, fmt.Errorf("invalid file id %q", id)
	}
	path := filepath.Join(s.dir, id+".csv")

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create dataset file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > limit {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write dataset file: %w", err)
	}
	return path, n, nil
}

func (s *DiskStore) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	return f, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s *DiskStore) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove dataset file: %w", err)
	}
	return nil
}

// ErrTooLarge is returned by Save when the input exceeds the limit.
var ErrTooLarge = errors.New("file exceeds size limit")
