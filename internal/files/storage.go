package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage is the byte-blob collaborator: blobs are addressed by a generated
// name, never by user input. A missing blob is a distinct error, not empty
// content.
type Storage interface {
	Save(name string, src io.Reader) (path string, size int64, err error)
	Open(name string) (io.ReadCloser, error)
	Exists(name string) (bool, error)
	Remove(name string) error
}

// DiskStorage stores blobs as flat files under a root directory.
type DiskStorage struct {
	root string
}

// NewDiskStorage creates the root directory if needed.
func NewDiskStorage(root string) (*DiskStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &DiskStorage{root: root}, nil
}

func (d *DiskStorage) path(name string) (string, error) {
	// Names are generated server-side; reject anything that could escape
	// the root in case a caller ever passes one through.
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid storage name %q", name)
	}
	return filepath.Join(d.root, name), nil
}

func (d *DiskStorage) Save(name string, src io.Reader) (string, int64, error) {
	path, err := d.path(name)
	if err != nil {
		return "", 0, err
	}
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create storage object: %w", err)
	}
	size, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("failed to write storage object: %w", err)
	}
	return path, size, nil
}

func (d *DiskStorage) Open(name string) (io.ReadCloser, error) {
	path, err := d.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (d *DiskStorage) Exists(name string) (bool, error) {
	path, err := d.path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (d *DiskStorage) Remove(name string) error {
	path, err := d.path(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}
