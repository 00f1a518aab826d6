package volume

import "io"

// Compressor and Decompressor are the capability pair the open-file handle
// drives. Both enforce strictly monotonic offsets: a compressor's Write
// offset must equal its running uncompressed byte total; a decompressor's
// Read offset must equal its running delivered byte total. Reverse seeks
// are impossible against either — the handle layer hides this by
// materializing the whole logical file in FULLY_BUFFERED mode instead of
// ever seeking backward against a codec.
type Compressor interface {
	Write(offset uint32, buf []byte) error
	End() error
	Cleanup() error
}

type Decompressor interface {
	Read(offset uint32, buf []byte) (int, error)
	Skip(count uint32) error
	Cleanup() error
}

// compressedSink is the append-only raw payload a Compressor writes its
// compressed bytes into; it is the inode's on-disk data stream.
type compressedSink struct {
	mount *Mount
	inode inodeIndex
	node  *rawInode
	pos   uint32
}

func (s *compressedSink) Write(p []byte) (int, error) {
	if err := s.mount.writeFileData(s.inode, s.node, s.pos, p); err != nil {
		return 0, err
	}
	s.pos += uint32(len(p))
	return len(p), nil
}

// compressedSource is the read side: a forward-only reader over the
// inode's raw (compressed) payload.
type compressedSource struct {
	mount *Mount
	node  *rawInode
	pos   uint32
}

func (s *compressedSource) Read(p []byte) (int, error) {
	remaining := s.node.dataSize - s.pos
	if remaining == 0 {
		return 0, io.EOF
	}
	if uint32(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := s.mount.readFileData(s.node, s.pos, p)
	s.pos += uint32(n)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// newCompressor constructs the compressor for alg/level writing into idx's
// raw payload, or nil for AlgorithmNone.
func newCompressor(m *Mount, idx inodeIndex, n *rawInode, alg Algorithm, level uint32) (Compressor, error) {
	sink := &compressedSink{mount: m, inode: idx, node: n}
	switch alg {
	case AlgorithmNone:
		return nil, nil
	case AlgorithmZlib:
		return newZlibCompressor(sink, int(level))
	case AlgorithmLZMA:
		return newLZMACompressor(sink, int(level))
	case AlgorithmLZ4:
		return newLZ4Compressor(sink)
	default:
		return nil, newErr("compressor_init", CodeCompressorNotFound, nil)
	}
}

// newDecompressor constructs the decompressor reading idx's raw payload.
func newDecompressor(m *Mount, idx inodeIndex, n *rawInode, alg Algorithm) (Decompressor, error) {
	source := &compressedSource{mount: m, node: n}
	switch alg {
	case AlgorithmNone:
		return nil, nil
	case AlgorithmZlib:
		return newZlibDecompressor(source)
	case AlgorithmLZMA:
		return newLZMADecompressor(source)
	case AlgorithmLZ4:
		return newLZ4Decompressor(source)
	default:
		return nil, newErr("decompressor_init", CodeCompressorNotFound, nil)
	}
}
