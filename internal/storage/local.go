// Package storage resolves where input file bytes live on local disk.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const inputsDir = "inputs"

// LocalFileStore computes deterministic paths under a base directory. All
// reads and writes of input bytes go through Path so both sides agree.
type LocalFileStore struct {
	baseDir string
}

func NewLocalFileStore(baseDir string) *LocalFileStore {
	return &LocalFileStore{baseDir: baseDir}
}

func (s *LocalFileStore) BaseDir() string {
	return s.baseDir
}

// Path returns {baseDir}/inputs/{fileId}-{fileName}.
func (s *LocalFileStore) Path(fileID uuid.UUID, fileName string) string {
	return filepath.Join(s.baseDir, inputsDir, fmt.Sprintf("%s-%s", fileID, filepath.Base(fileName)))
}

// EnsureDir creates the writable inputs directory. It is a no-op when the
// directory already exists.
func (s *LocalFileStore) EnsureDir() error {
	dir := filepath.Join(s.baseDir, inputsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir %s: %w", dir, err)
	}
	return nil
}

// Write replaces the bytes stored for a file and returns the number written.
// The previous bytes stay in place until the new content is fully on disk.
func (s *LocalFileStore) Write(fileID uuid.UUID, fileName string, r io.Reader) (int64, error) {
	if err := s.EnsureDir(); err != nil {
		return 0, err
	}
	path := s.Path(fileID, fileName)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	return n, nil
}

// Open returns the stored bytes together with their size.
func (s *LocalFileStore) Open(fileID uuid.UUID, fileName string) (*os.File, int64, error) {
	f, err := os.Open(s.Path(fileID, fileName))
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Remove deletes the stored bytes. A missing file is not an error.
func (s *LocalFileStore) Remove(fileID uuid.UUID, fileName string) error {
	err := os.Remove(s.Path(fileID, fileName))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Rename moves stored bytes after a file name change.
func (s *LocalFileStore) Rename(fileID uuid.UUID, oldName, newName string) error {
	return os.Rename(s.Path(fileID, oldName), s.Path(fileID, newName))
}
