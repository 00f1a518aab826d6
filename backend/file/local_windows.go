//go:build windows

package file

import (
	"os"

	"github.com/libfif/go-fif/volume"
)

// LocalBackend implements volume.Backend directly against an *os.File.
// Windows locking is left to the OS's default sharing mode on open; no
// advisory flock equivalent is taken here.
type LocalBackend struct {
	f        *os.File
	readOnly bool
}

var _ volume.Backend = (*LocalBackend)(nil)

// OpenLocal opens an existing archive file at path.
func OpenLocal(path string, readOnly bool) (*LocalBackend, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, err
	}
	return &LocalBackend{f: f, readOnly: readOnly}, nil
}

// CreateLocal creates a new archive file at path, truncated to size.
func CreateLocal(path string, size int64) (*LocalBackend, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	if size > 0 {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &LocalBackend{f: f}, nil
}

func (b *LocalBackend) ReadAt(p []byte, off int64) (int, error) {
	return b.f.ReadAt(p, off)
}

func (b *LocalBackend) WriteAt(p []byte, off int64) (int, error) {
	if b.readOnly {
		return 0, os.ErrPermission
	}
	return b.f.WriteAt(p, off)
}

func (b *LocalBackend) ZeroAt(off, n int64) error {
	if b.readOnly {
		return os.ErrPermission
	}
	return volume.ZeroFillWriteAt(b, off, n)
}

func (b *LocalBackend) Truncate(size int64) error {
	if b.readOnly {
		return os.ErrPermission
	}
	return b.f.Truncate(size)
}

func (b *LocalBackend) Size() (int64, error) {
	fi, err := b.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (b *LocalBackend) Close() error {
	return b.f.Close()
}
