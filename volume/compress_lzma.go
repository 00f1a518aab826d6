package volume

import (
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// lzmaCompressor fills in the algorithm the original engine declared but
// never implemented (its compressor dispatch table returns NULL for LZMA).
type lzmaCompressor struct {
	sink    *compressedSink
	writer  *lzma.Writer
	totalIn uint32
}

// lzmaLevelToDictCap maps a 0-9 compression level onto a dictionary size,
// the knob the xz package exposes in place of a single preset number.
func lzmaLevelToDictCap(level int) int {
	if level <= 0 {
		level = 6
	}
	if level > 9 {
		level = 9
	}
	return (1 << 20) * (1 << uint(level/2))
}

func newLZMACompressor(sink *compressedSink, level int) (Compressor, error) {
	cfg := lzma.WriterConfig{
		Properties: &lzma.Properties{LC: 3, LP: 0, PB: 2},
		DictCap:    lzmaLevelToDictCap(level),
	}
	w, err := cfg.NewWriter(sink)
	if err != nil {
		return nil, newErr("compressor_init", CodeCompressorError, err)
	}
	return &lzmaCompressor{sink: sink, writer: w}, nil
}

func (c *lzmaCompressor) Write(offset uint32, buf []byte) error {
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

func (c *lzmaCompressor) End() error {
	if err := c.writer.Close(); err != nil {
		return newErr("compressor_end", CodeCompressorError, err)
	}
	return nil
}

func (c *lzmaCompressor) Cleanup() error { return nil }

type lzmaDecompressor struct {
	source   *compressedSource
	reader   *lzma.Reader
	totalOut uint32
}

func newLZMADecompressor(source *compressedSource) (Decompressor, error) {
	r, err := lzma.NewReader(source)
	if err != nil {
		return nil, newErr("decompressor_init", CodeCompressorError, err)
	}
	return &lzmaDecompressor{source: source, reader: r}, nil
}

func (d *lzmaDecompressor) Read(offset uint32, buf []byte) (int, error) {
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

func (d *lzmaDecompressor) Skip(count uint32) error {
	n, err := io.CopyN(io.Discard, d.reader, int64(count))
	d.totalOut += uint32(n)
	if err != nil {
		return newErr("decompressor_skip", CodeCompressorError, err)
	}
	return nil
}

func (d *lzmaDecompressor) Cleanup() error { return nil }
