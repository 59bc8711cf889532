// Package storage keeps uploaded files on the local disk.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrTooLarge is returned when a file exceeds the configured limit.
var ErrTooLarge = errors.New("file too large")

// Disk writes files under a single directory using generated names.
type Disk struct {
	dir      string
	maxBytes int64
}

// NewDisk creates dir when missing.
func NewDisk(dir string, maxBytes int64) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{dir: dir, maxBytes: maxBytes}, nil
}

func (d *Disk) Dir() string { return d.dir }

// Save copies r into a new file named <uuid><ext> and returns the name and
// the number of bytes written.  A partially written file is removed on error.
func (d *Disk) Save(r io.Reader, ext string) (string, int64, error) {
	name := uuid.NewString() + strings.ToLower(ext)
	path := filepath.Join(d.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, err
	}
	// read one byte past the limit to detect oversize input
	n, err := io.Copy(f, io.LimitReader(r, d.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > d.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, err
	}
	return name, n, nil
}

// Remove deletes a stored file.  Missing files are not an error.
func (d *Disk) Remove(name string) error {
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("invalid stored name %q", name)
	}
	err := os.Remove(filepath.Join(d.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
