package volume

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Replayer re-executes a recorded trace against a target Mount. Handle
// indices line up naturally between recording and replay because the
// open-file table is a sparse vector that is never compacted: replaying
// the same sequence of opens/closes against an identically-shaped volume
// assigns the same slot numbers the recording saw.
type Replayer struct {
	mount   *Mount
	zr      io.ReadCloser
	handles map[int]*File
}

// NewReplayer opens the trace log stored in b and prepares to drive m.
func NewReplayer(m *Mount, b Backend) (*Replayer, error) {
	zr, err := zlib.NewReader(&backendReader{backend: b})
	if err != nil {
		return nil, newErr("replay_open", CodeIOError, err)
	}
	return &Replayer{mount: m, zr: zr, handles: make(map[int]*File)}, nil
}

// backendReader adapts a Backend into a sequential io.Reader for the
// decompressing trace reader.
type backendReader struct {
	backend Backend
	pos     int64
}

func (r *backendReader) Read(p []byte) (int, error) {
	size, err := r.backend.Size()
	if err != nil {
		return 0, err
	}
	if r.pos >= size {
		return 0, io.EOF
	}
	if want := size - r.pos; int64(len(p)) > want {
		p = p[:want]
	}
	n, err := r.backend.ReadAt(p, r.pos)
	r.pos += int64(n)
	return n, err
}

func (r *Replayer) readUint() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r.zr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (r *Replayer) readInt64() (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r.zr, b[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func (r *Replayer) readString() (string, error) {
	n, err := r.readUint()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.zr, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (r *Replayer) readBytes() ([]byte, error) {
	n, err := r.readUint()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.zr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Step replays exactly one recorded command. It returns io.EOF once the
// trace is exhausted.
func (r *Replayer) Step() error {
	cmdVal, err := r.readUint()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return err
	}

	switch TraceCommand(cmdVal) {
	case TraceStat:
		path, err := r.readString()
		if err != nil {
			return err
		}
		_, _ = r.mount.Stat(path)

	case TraceFstat:
		h, err := r.readUint()
		if err != nil {
			return err
		}
		if f := r.handles[int(h)]; f != nil {
			_, _ = r.mount.Fstat(f)
		}

	case TraceOpen:
		path, err := r.readString()
		if err != nil {
			return err
		}
		mode, err := r.readUint()
		if err != nil {
			return err
		}
		if f, err := r.mount.Open(path, OpenMode(mode)); err == nil {
			r.handles[f.of.handleIndex] = f
		}

	case TraceRead:
		h, err := r.readUint()
		if err != nil {
			return err
		}
		count, err := r.readUint()
		if err != nil {
			return err
		}
		if f := r.handles[int(h)]; f != nil {
			buf := make([]byte, count)
			_, _ = r.mount.Read(f, buf, int(count))
		}

	case TraceWrite:
		h, err := r.readUint()
		if err != nil {
			return err
		}
		buf, err := r.readBytes()
		if err != nil {
			return err
		}
		if f := r.handles[int(h)]; f != nil {
			_, _ = r.mount.Write(f, buf, len(buf))
		}

	case TraceSeek:
		h, err := r.readUint()
		if err != nil {
			return err
		}
		offset, err := r.readInt64()
		if err != nil {
			return err
		}
		mode, err := r.readUint()
		if err != nil {
			return err
		}
		if f := r.handles[int(h)]; f != nil {
			_, _ = r.mount.Seek(f, offset, SeekMode(mode))
		}

	case TraceTell:
		h, err := r.readUint()
		if err != nil {
			return err
		}
		if f := r.handles[int(h)]; f != nil {
			_ = r.mount.Tell(f)
		}

	case TraceFtruncate:
		h, err := r.readUint()
		if err != nil {
			return err
		}
		size, err := r.readInt64()
		if err != nil {
			return err
		}
		if f := r.handles[int(h)]; f != nil {
			_ = r.mount.Ftruncate(f, size)
		}

	case TraceClose:
		h, err := r.readUint()
		if err != nil {
			return err
		}
		if f := r.handles[int(h)]; f != nil {
			_ = r.mount.Close(f)
			delete(r.handles, int(h))
		}

	case TraceUnlink:
		path, err := r.readString()
		if err != nil {
			return err
		}
		_ = r.mount.Unlink(path)

	case TraceGetFileContents:
		path, err := r.readString()
		if err != nil {
			return err
		}
		maxCount, err := r.readUint()
		if err != nil {
			return err
		}
		buf := make([]byte, maxCount)
		_, _ = r.mount.GetFileContents(path, buf, int(maxCount))

	case TracePutFileContents:
		path, err := r.readString()
		if err != nil {
			return err
		}
		buf, err := r.readBytes()
		if err != nil {
			return err
		}
		_ = r.mount.PutFileContents(path, buf, len(buf))

	case TraceCompressFile:
		path, err := r.readString()
		if err != nil {
			return err
		}
		alg, err := r.readUint()
		if err != nil {
			return err
		}
		level, err := r.readUint()
		if err != nil {
			return err
		}
		_ = r.mount.CompressFile(path, Algorithm(alg), level)

	case TraceEnumdir:
		dirname, err := r.readString()
		if err != nil {
			return err
		}
		_ = r.mount.Enumdir(dirname, func(string) error { return nil })

	case TraceMkdir:
		dirname, err := r.readString()
		if err != nil {
			return err
		}
		_ = r.mount.Mkdir(dirname)

	case TraceRmdir:
		dirname, err := r.readString()
		if err != nil {
			return err
		}
		_ = r.mount.Rmdir(dirname)

	default:
		return newErr("replay_step", CodeGeneric, errors.New("unknown trace command"))
	}
	return nil
}

// Run drives the trace to completion.
func (r *Replayer) Run() error {
	for {
		if err := r.Step(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (r *Replayer) Close() error {
	return r.zr.Close()
}
