package localstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
)

// FileStore keeps one file per key inside a directory.
// Writes go to a temp file first and are renamed into place.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ioError("mkdir", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

// Get reads the file for key.
func (f *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, ioError("read", key, err)
	}
	return data, true, nil
}

// Set atomically replaces the file for key.
func (f *FileStore) Set(ctx context.Context, key string, value []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return ioError("create temp", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return ioError("write", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return ioError("close", key, err)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		os.Remove(tmpName)
		return ioError("rename", key, err)
	}
	return nil
}

// Ping checks that the directory is still accessible.
func (f *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return ioError("stat", f.dir, err)
	}
	if !info.IsDir() {
		return ioError("stat", f.dir, fmt.Errorf("not a directory"))
	}
	return nil
}

// Close is a no-op.
func (f *FileStore) Close() error { return nil }
