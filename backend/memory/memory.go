// Package memory provides a []byte-backed volume.Backend for tests and
// in-process embedding, grounded on the original engine's growable
// io_memory adapter.
package memory

import (
	"github.com/libfif/go-fif/volume"
)

// Backend is an in-memory, growable byte buffer satisfying volume.Backend.
type Backend struct {
	buf []byte
}

var _ volume.Backend = (*Backend)(nil)

// New returns an empty in-memory backend.
func New() *Backend {
	return &Backend{}
}

// NewFromBytes returns an in-memory backend seeded with the contents of b;
// the backend takes ownership of the slice.
func NewFromBytes(b []byte) *Backend {
	return &Backend{buf: b}
}

// Bytes returns the backend's current contents. The returned slice aliases
// the backend's internal buffer and must not be retained across further
// writes.
func (b *Backend) Bytes() []byte {
	return b.buf
}

func (b *Backend) grow(size int64) {
	if size <= int64(len(b.buf)) {
		return
	}
	grown := make([]byte, size)
	copy(grown, b.buf)
	b.buf = grown
}

func (b *Backend) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b.buf)) {
		return 0, nil
	}
	n := copy(p, b.buf[off:])
	return n, nil
}

func (b *Backend) WriteAt(p []byte, off int64) (int, error) {
	b.grow(off + int64(len(p)))
	n := copy(b.buf[off:], p)
	return n, nil
}

func (b *Backend) ZeroAt(off, n int64) error {
	b.grow(off + n)
	for i := off; i < off+n; i++ {
		b.buf[i] = 0
	}
	return nil
}

func (b *Backend) Truncate(size int64) error {
	if size <= int64(len(b.buf)) {
		b.buf = b.buf[:size]
		return nil
	}
	b.grow(size)
	return nil
}

func (b *Backend) Size() (int64, error) {
	return int64(len(b.buf)), nil
}

func (b *Backend) Close() error {
	return nil
}
