package volume

import (
	"io"

	"github.com/klauspost/compress/zlib"
)

// zlibCompressor wraps klauspost/compress/zlib's streaming writer, the
// maintained drop-in replacement for the standard library's own
// compress/zlib used for the archive's deflate-based codec.
type zlibCompressor struct {
	sink    *compressedSink
	writer  *zlib.Writer
	totalIn uint32
}

func newZlibCompressor(sink *compressedSink, level int) (Compressor, error) {
	w, err := zlib.NewWriterLevel(sink, level)
	if err != nil {
		return nil, newErr("compressor_init", CodeCompressorError, err)
	}
	return &zlibCompressor{sink: sink, writer: w}, nil
}

func (c *zlibCompressor) Write(offset uint32, buf []byte) error {
	if offset != c.totalIn {
		return newErr("compressor_write", CodeCompressorError, nil)
	}
	n, err := c.writer.Write(buf)
	if err != nil {
		return newErr("compressor_write", CodeCompressorError, err)
	}
	c.totalIn += uint32(n)
	return nil
}

func (c *zlibCompressor) End() error {
	if err := c.writer.Close(); err != nil {
		return newErr("compressor_end", CodeCompressorError, err)
	}
	return nil
}

func (c *zlibCompressor) Cleanup() error { return nil }

type zlibDecompressor struct {
	source   *compressedSource
	reader   io.ReadCloser
	totalOut uint32
}

func newZlibDecompressor(source *compressedSource) (Decompressor, error) {
	r, err := zlib.NewReader(source)
	if err != nil {
		return nil, newErr("decompressor_init", CodeCompressorError, err)
	}
	return &zlibDecompressor{source: source, reader: r}, nil
}

func (d *zlibDecompressor) Read(offset uint32, buf []byte) (int, error) {
	if offset != d.totalOut {
		return 0, newErr("decompressor_read", CodeCompressorError, nil)
	}
	n, err := io.ReadFull(d.reader, buf)
	d.totalOut += uint32(n)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return n, newErr("decompressor_read", CodeCompressorError, err)
	}
	return n, nil
}

// Skip discards count bytes of decompressed output, the only way to move
// forward on a stream whose codec forbids backward seeks.
func (d *zlibDecompressor) Skip(count uint32) error {
	n, err := io.CopyN(io.Discard, d.reader, int64(count))
	d.totalOut += uint32(n)
	if err != nil {
		return newErr("decompressor_skip", CodeCompressorError, err)
	}
	return nil
}

func (d *zlibDecompressor) Cleanup() error {
	return d.reader.Close()
}
