package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FilePersister stores the record as a single file named after the key inside
// dir. Writes go through a temp file and rename so a crash never leaves a torn
// record behind.
type FilePersister struct {
	path string
}

// NewFilePersister returns a persister for dir/key.json. The directory is
// created on first save.
func NewFilePersister(dir, key string) (*FilePersister, error) {
	dir = strings.TrimSpace(dir)
	key = strings.TrimSpace(key)
	if dir == "" {
		return nil, errors.New("session file dir empty")
	}
	if key == "" || strings.ContainsAny(key, `/\`) {
		return nil, fmt.Errorf("invalid session key %q", key)
	}
	return &FilePersister{path: filepath.Join(dir, key+".json")}, nil
}

// Path returns the file backing the record.
func (f *FilePersister) Path() string {
	return f.path
}

func (f *FilePersister) Load(context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (f *FilePersister) Save(_ context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, f.path)
}

func (f *FilePersister) Delete(context.Context) error {
	err := os.Remove(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
