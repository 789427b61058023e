package fs

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ValentinKolb/wKV/lib/blob"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/afero"
)

const (
	blobExt = ".blob"
	tmpExt  = ".tmp"
)

var log = logger.GetLogger("blob")

type fsStorage struct {
	fs  afero.Fs
	dir string
}

// NewStorage returns a blob storage that keeps one file per blob in dir.
// The directory is created if it does not exist.
func NewStorage(fs afero.Fs, dir string) (blob.Storage, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory %s: %w", dir, err)
	}
	return &fsStorage{fs: fs, dir: dir}, nil
}

// NewOsStorage is NewStorage on the operating system filesystem.
func NewOsStorage(dir string) (blob.Storage, error) {
	return NewStorage(afero.NewOsFs(), dir)
}

// path maps a blob name to its file, names are escaped so any string is a valid name
func (s *fsStorage) path(name string) string {
	return filepath.Join(s.dir, url.PathEscape(name)+blobExt)
}

func (s *fsStorage) Get(name string) ([]byte, bool, error) {
	data, err := afero.ReadFile(s.fs, s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read blob %q: %w", name, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, true, nil
}

// Set writes data to a temporary file and renames it over the blob file.
func (s *fsStorage) Set(name string, data []byte) error {
	tmp := filepath.Join(s.dir, uuid.NewString()+tmpExt)

	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create temporary file for blob %q: %w", name, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to write blob %q: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to sync blob %q: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to close blob %q: %w", name, err)
	}

	if err := s.fs.Rename(tmp, s.path(name)); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to replace blob %q: %w", name, err)
	}
	return nil
}

func (s *fsStorage) Keys() ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list blob directory %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), blobExt) {
			continue // temporary files and foreign entries
		}
		name, err := url.PathUnescape(strings.TrimSuffix(info.Name(), blobExt))
		if err != nil {
			log.Warningf("ignoring blob file with invalid name %s: %v", info.Name(), err)
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
