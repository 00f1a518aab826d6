package volume

// Backend is the abstract I/O adapter a volume is mounted through: a
// bounded, byte-addressable stream offering read, write, zero-fill,
// truncate and size queries. It is the Go expression of the engine's
// 6-function virtual I/O interface. Implementations live in
// backend/file (a real OS file, advisory-locked) and backend/memory (a
// []byte-backed stream for tests and in-process embedding).
type Backend interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	ZeroAt(off, n int64) error
	Truncate(size int64) error
	Size() (int64, error)
	Close() error
}

const zeroChunkSize = 64 * 1024

// ZeroFillWriteAt is a helper concrete Backend implementations can use to
// satisfy ZeroAt in terms of WriteAt, for adapters with no dedicated
// zero-fill syscall.
func ZeroFillWriteAt(b Backend, off, n int64) error {
	return zeroFillWriteAt(b, off, n)
}

func zeroFillWriteAt(b Backend, off, n int64) error {
	if n <= 0 {
		return nil
	}
	chunk := make([]byte, zeroChunkSize)
	for n > 0 {
		write := int64(len(chunk))
		if write > n {
			write = n
		}
		if _, err := b.WriteAt(chunk[:write], off); err != nil {
			return err
		}
		off += write
		n -= write
	}
	return nil
}
