package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	appErrors "sensor-fleet-server/pkg/errors"
)

// FirmwareStore keeps uploaded firmware binaries on local disk. Stored
// filenames are opaque (assigned by the caller); metadata lives in the
// firmware table.
type FirmwareStore struct {
	dir string
}

// NewFirmwareStore creates the storage directory if needed.
func NewFirmwareStore(dir string) (*FirmwareStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create firmware directory: %w", err)
	}
	return &FirmwareStore{dir: dir}, nil
}

// Save streams the binary to disk, returning its size and SHA-256 hash.
func (s *FirmwareStore) Save(filename string, r io.Reader) (int64, string, error) {
	path := filepath.Join(s.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create firmware file: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hasher), r)
	if err != nil {
		os.Remove(path)
		return 0, "", fmt.Errorf("failed to write firmware file: %w", err)
	}

	return size, hex.EncodeToString(hasher.Sum(nil)), nil
}

// Open returns a reader over a stored binary and its size. A missing
// file is a server-side integrity problem, reported as
// ErrFirmwareFileMissing rather than a generic not-found.
func (s *FirmwareStore) Open(filename string) (io.ReadCloser, int64, error) {
	path := filepath.Join(s.dir, filename)

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, appErrors.ErrFirmwareFileMissing
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat firmware file: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open firmware file: %w", err)
	}

	return f, info.Size(), nil
}

// Remove deletes a stored binary. Used when an upload's database insert
// fails after the file was written.
func (s *FirmwareStore) Remove(filename string) error {
	err := os.Remove(filepath.Join(s.dir, filename))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
