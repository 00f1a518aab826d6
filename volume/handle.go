package volume

// Open-file handle: buffered/streamed/fully-buffered/direct modes, one
// buffer window per handle, and the compressor/decompressor wrapper that
// drives file data for COMPRESSED inodes.

// OpenMode is the open-mode bitset.
type OpenMode uint32

const (
	ModeCreate        OpenMode = 1 << 0
	ModeRead          OpenMode = 1 << 1
	ModeWrite         OpenMode = 1 << 2
	ModeTruncate      OpenMode = 1 << 3
	ModeAppend        OpenMode = 1 << 4
	modeDirectory     OpenMode = 1 << 5 // internal use only
	ModeStreamed      OpenMode = 1 << 6
	ModeDirect        OpenMode = 1 << 7
	ModeFullyBuffered OpenMode = 1 << 8
	ModeAtomicRewrite OpenMode = 1 << 9
)

func (m OpenMode) has(f OpenMode) bool { return m&f != 0 }

// SeekMode selects the seek origin.
type SeekMode int

const (
	SeekSet SeekMode = iota
	SeekCur
	SeekEnd
)

// File is a public handle to an open file.
type File struct {
	mount *Mount
	of    *openFile
}

type openFile struct {
	inodeIndex inodeIndex
	node       *rawInode

	handleIndex int
	mode        OpenMode
	offset      uint32
	fileSize    uint32

	bufferData       []byte
	bufferSize       uint32
	bufferRangeStart uint32
	bufferRangeSize  uint32
	bufferDirty      bool

	compressor   Compressor
	decompressor Decompressor
}

func (n *rawInode) compressed() bool { return n.hasAttr(AttrCompressed) }

// canOpenFile enforces the sharing rule: WRITE excludes any other READ or
// WRITE handle on the same inode; READ excludes any other WRITE handle.
func (m *Mount) canOpenFile(idx inodeIndex, mode OpenMode) error {
	for _, o := range m.openFiles {
		if o == nil || o.inodeIndex != idx {
			continue
		}
		if mode.has(ModeWrite) && (o.mode.has(ModeRead) || o.mode.has(ModeWrite)) {
			return newErr("open", CodeSharingViolation, nil)
		}
		if mode.has(ModeRead) && o.mode.has(ModeWrite) {
			return newErr("open", CodeSharingViolation, nil)
		}
	}
	return nil
}

func (m *Mount) registerHandle(of *openFile) {
	for i, slot := range m.openFiles {
		if slot == nil {
			of.handleIndex = i
			m.openFiles[i] = of
			return
		}
	}
	of.handleIndex = len(m.openFiles)
	m.openFiles = append(m.openFiles, of)
}

// openFileByInode opens idx under mode, enforcing sharing rules, selecting
// the buffering strategy, and initializing the codec pair for compressed
// inodes.
func (m *Mount) openFileByInode(idx inodeIndex, mode OpenMode) (*File, error) {
	if (mode.has(ModeWrite) || mode.has(ModeTruncate)) && m.readOnly {
		return nil, newErr("open", CodeReadOnly, nil)
	}
	if err := m.canOpenFile(idx, mode); err != nil {
		return nil, err
	}

	n, err := m.readInode(idx)
	if err != nil {
		return nil, err
	}

	if mode.has(ModeTruncate) {
		if err := m.resizeFile(idx, n, 0); err != nil {
			return nil, err
		}
		n.uncompressedSize = 0
	}

	compressed := n.compressed()
	nonEmptyWriteWithoutTruncate := mode.has(ModeWrite) && !mode.has(ModeTruncate) && n.dataSize > 0
	readWrite := mode.has(ModeRead) && mode.has(ModeWrite)
	notStreamed := !mode.has(ModeStreamed)
	if compressed && (nonEmptyWriteWithoutTruncate || readWrite || notStreamed) {
		mode |= ModeFullyBuffered
	}

	logicalSize := n.dataSize
	if compressed {
		logicalSize = n.uncompressedSize
	}

	var bufferSize uint32
	switch {
	case mode.has(ModeFullyBuffered):
		bufferSize = logicalSize
		if bufferSize < m.blockSize {
			bufferSize = m.blockSize
		}
	case mode.has(ModeDirect):
		bufferSize = 0
	default:
		bufferSize = m.blockSize
	}

	of := &openFile{
		inodeIndex: idx,
		node:       n,
		mode:       mode,
		fileSize:   logicalSize,
		bufferSize: bufferSize,
	}
	if mode.has(ModeAppend) {
		of.offset = logicalSize
	}

	if compressed && mode.has(ModeWrite) {
		c, err := newCompressor(m, idx, n, Algorithm(n.compressionAlgorithm), n.compressionLevel)
		if err != nil {
			return nil, err
		}
		of.compressor = c
	}
	if compressed && mode.has(ModeRead) {
		d, err := newDecompressor(m, idx, n, Algorithm(n.compressionAlgorithm))
		if err != nil {
			return nil, err
		}
		of.decompressor = d
	}

	if mode.has(ModeFullyBuffered) {
		of.bufferData = make([]byte, bufferSize)
		of.bufferRangeStart = 0
		of.bufferRangeSize = logicalSize
		if mode.has(ModeRead) && logicalSize > 0 {
			if of.decompressor != nil {
				if _, err := of.decompressor.Read(0, of.bufferData[:logicalSize]); err != nil {
					return nil, err
				}
			} else {
				if _, err := m.readFileData(n, 0, of.bufferData[:logicalSize]); err != nil {
					return nil, err
				}
			}
		}
	} else if bufferSize > 0 {
		of.bufferData = make([]byte, bufferSize)
	}

	m.registerHandle(of)
	return &File{mount: m, of: of}, nil
}

// refillBuffer loads the window starting at start into the buffer,
// replacing its current contents; callers must flush a dirty buffer first.
func (m *Mount) refillBuffer(of *openFile, start uint32) error {
	size := of.bufferSize
	if start+size > of.fileSize {
		size = of.fileSize - start
	}
	if of.decompressor != nil {
		// the caller issues Skip to cover any forward gap before refilling;
		// the decompressor's own monotonic-offset check enforces this.
		if size > 0 {
			if _, err := of.decompressor.Read(start, of.bufferData[:size]); err != nil {
				return err
			}
		}
	} else if size > 0 {
		if _, err := m.readFileData(of.node, start, of.bufferData[:size]); err != nil {
			return err
		}
	}
	of.bufferRangeStart = start
	of.bufferRangeSize = size
	of.bufferDirty = false
	return nil
}

// flushBuffer writes a dirty buffer window back through the compressor (if
// any) or directly to the raw payload.
func (m *Mount) flushBuffer(of *openFile) error {
	if !of.bufferDirty || of.bufferRangeSize == 0 {
		of.bufferDirty = false
		return nil
	}
	if of.compressor != nil {
		if err := of.compressor.Write(of.bufferRangeStart, of.bufferData[:of.bufferRangeSize]); err != nil {
			return err
		}
	} else {
		if err := m.writeFileData(of.inodeIndex, of.node, of.bufferRangeStart, of.bufferData[:of.bufferRangeSize]); err != nil {
			return err
		}
	}
	of.bufferDirty = false
	return nil
}

// Read copies up to len(p) bytes starting at the handle's current offset.
func (f *File) Read(p []byte) (int, error) {
	of := f.of
	m := f.mount
	if !of.mode.has(ModeRead) {
		return 0, newErr("read", CodeGeneric, nil)
	}
	if of.offset >= of.fileSize {
		return 0, newErr("read", CodeEndOfFile, nil)
	}

	n := uint32(len(p))
	if of.offset+n > of.fileSize {
		n = of.fileSize - of.offset
	}

	if of.mode.has(ModeFullyBuffered) {
		copy(p, of.bufferData[of.offset:of.offset+n])
		of.offset += n
		return int(n), nil
	}

	if of.bufferSize == 0 {
		// DIRECT: no window buffer at all, transfer straight through.
		// bufferRangeStart doubles as the decompressor's expected cursor
		// since there is no buffer to track it with.
		if of.decompressor != nil {
			if of.offset > of.bufferRangeStart {
				if err := of.decompressor.Skip(of.offset - of.bufferRangeStart); err != nil {
					return 0, err
				}
				of.bufferRangeStart = of.offset
			}
			if _, err := of.decompressor.Read(of.offset, p[:n]); err != nil {
				return 0, err
			}
			of.bufferRangeStart += n
		} else if _, err := m.readFileData(of.node, of.offset, p[:n]); err != nil {
			return 0, err
		}
		of.offset += n
		return int(n), nil
	}

	delivered := uint32(0)
	for delivered < n {
		if of.offset < of.bufferRangeStart || of.offset >= of.bufferRangeStart+of.bufferRangeSize {
			if of.bufferDirty {
				if err := m.flushBuffer(of); err != nil {
					return int(delivered), err
				}
			}
			if of.decompressor != nil && of.offset > of.bufferRangeStart+of.bufferRangeSize {
				gap := of.offset - (of.bufferRangeStart + of.bufferRangeSize)
				if err := of.decompressor.Skip(gap); err != nil {
					return int(delivered), err
				}
			}
			if err := m.refillBuffer(of, of.offset); err != nil {
				return int(delivered), err
			}
			if of.bufferRangeSize == 0 {
				break
			}
		}
		avail := (of.bufferRangeStart + of.bufferRangeSize) - of.offset
		want := n - delivered
		if want > avail {
			want = avail
		}
		srcStart := of.offset - of.bufferRangeStart
		copy(p[delivered:delivered+want], of.bufferData[srcStart:srcStart+want])
		delivered += want
		of.offset += want
	}
	return int(delivered), nil
}

// Write copies len(p) bytes into the file starting at the handle's current
// offset, growing the file as needed.
func (f *File) Write(p []byte) (int, error) {
	of := f.of
	m := f.mount
	if !of.mode.has(ModeWrite) {
		return 0, newErr("write", CodeGeneric, nil)
	}
	if err := m.checkWritable("write"); err != nil {
		return 0, err
	}

	if of.mode.has(ModeFullyBuffered) {
		end := of.offset + uint32(len(p))
		if end > uint32(len(of.bufferData)) {
			grown := make([]byte, end)
			copy(grown, of.bufferData)
			of.bufferData = grown
			of.bufferSize = end
		}
		copy(of.bufferData[of.offset:end], p)
		of.offset = end
		if end > of.fileSize {
			of.fileSize = end
		}
		of.bufferRangeSize = of.fileSize
		of.bufferDirty = true
		return len(p), nil
	}

	if of.bufferSize == 0 {
		// DIRECT: no window buffer, so there is nothing to align a write
		// window against; transfer straight through instead.
		if of.compressor != nil {
			if err := of.compressor.Write(of.offset, p); err != nil {
				return 0, err
			}
		} else if err := m.writeFileData(of.inodeIndex, of.node, of.offset, p); err != nil {
			return 0, err
		}
		of.offset += uint32(len(p))
		if of.offset > of.fileSize {
			of.fileSize = of.offset
		}
		return len(p), nil
	}

	written := uint32(0)
	total := uint32(len(p))
	for written < total {
		if of.offset < of.bufferRangeStart || of.offset >= of.bufferRangeStart+of.bufferSize {
			if of.bufferDirty {
				if err := m.flushBuffer(of); err != nil {
					return int(written), err
				}
			}
			windowStart := (of.offset / of.bufferSize) * of.bufferSize
			if err := m.refillBuffer(of, windowStart); err != nil {
				return int(written), err
			}
		}
		localOff := of.offset - of.bufferRangeStart
		room := of.bufferSize - localOff
		want := total - written
		if want > room {
			want = room
		}
		copy(of.bufferData[localOff:localOff+want], p[written:written+want])
		if localOff+want > of.bufferRangeSize {
			of.bufferRangeSize = localOff + want
		}
		of.bufferDirty = true
		of.offset += want
		written += want
		if of.offset > of.fileSize {
			of.fileSize = of.offset
		}
	}
	return int(written), nil
}

// Seek repositions the handle's offset. Per the documented contract,
// STREAMED+WRITE rejects every seek, and STREAMED+READ permits only
// forward seeks.
func (f *File) Seek(offset int64, mode SeekMode) (int64, error) {
	of := f.of
	var target int64
	switch mode {
	case SeekSet:
		target = offset
	case SeekCur:
		target = int64(of.offset) + offset
	case SeekEnd:
		target = int64(of.fileSize) + offset
	default:
		return 0, newErr("seek", CodeBadOffset, nil)
	}
	if target < 0 || target > int64(of.fileSize) {
		return 0, newErr("seek", CodeBadOffset, nil)
	}

	if of.mode.has(ModeStreamed) {
		if of.mode.has(ModeWrite) {
			return 0, newErr("seek", CodeBadOffset, nil)
		}
		if of.mode.has(ModeRead) && target < int64(of.offset) {
			return 0, newErr("seek", CodeBadOffset, nil)
		}
	}

	of.offset = uint32(target)
	return target, nil
}

// Tell returns the handle's current offset.
func (f *File) Tell() int64 { return int64(f.of.offset) }

// Truncate resizes the underlying file and sets the logical file size.
func (f *File) Truncate(size int64) error {
	of := f.of
	m := f.mount
	if err := m.checkWritable("ftruncate"); err != nil {
		return err
	}
	if err := m.resizeFile(of.inodeIndex, of.node, uint32(size)); err != nil {
		return err
	}
	of.fileSize = uint32(size)
	if of.offset > of.fileSize {
		of.offset = of.fileSize
	}
	return nil
}

// Close flushes any dirty buffer through the compressor (if any), finishes
// the codec, persists the inode's size/timestamp fields, and releases the
// handle's slot in the mount's open-file table.
func (f *File) Close() error {
	of := f.of
	m := f.mount

	if of.mode.has(ModeWrite) {
		if err := m.flushBuffer(of); err != nil {
			return err
		}
		if of.compressor != nil {
			if err := of.compressor.End(); err != nil {
				return err
			}
		}
		of.node.uncompressedSize = of.fileSize
		of.node.modificationTimestamp = currentTimestamp()
		if err := m.writeInode(of.inodeIndex, of.node); err != nil {
			return err
		}
	}
	if of.compressor != nil {
		_ = of.compressor.Cleanup()
	}
	if of.decompressor != nil {
		_ = of.decompressor.Cleanup()
	}

	if of.handleIndex < len(m.openFiles) {
		m.openFiles[of.handleIndex] = nil
	}
	return nil
}
