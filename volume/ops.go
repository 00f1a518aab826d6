package volume

// Public operations: trace append (when a recorder is attached) -> path
// resolve -> directory read -> inode read -> allocator work -> block I/O ->
// descriptor rewrite (when a descriptor field changes).

// FileInfo is the result of Stat/Fstat.
type FileInfo struct {
	Attributes           Attribute
	BlockCount           uint32
	CompressionAlgorithm Algorithm
	CompressionLevel     uint32
	DataSize             uint32
	Size                 uint32
	Checksum             uint32
	CreationTimestamp    uint64
	ModifyTimestamp      uint64
}

func fileInfoFromInode(n *rawInode) FileInfo {
	size := n.dataSize
	if n.compressed() {
		size = n.uncompressedSize
	}
	return FileInfo{
		Attributes:           Attribute(n.attributes),
		BlockCount:           n.blockCount,
		CompressionAlgorithm: Algorithm(n.compressionAlgorithm),
		CompressionLevel:     n.compressionLevel,
		DataSize:             n.dataSize,
		Size:                 size,
		Checksum:             n.checksum,
		CreationTimestamp:    n.creationTimestamp,
		ModifyTimestamp:      n.modificationTimestamp,
	}
}

// Stat resolves path and returns its metadata.
func (m *Mount) Stat(path string) (FileInfo, error) {
	if m.recorder != nil {
		m.recorder.writeStat(path)
	}
	idx, _, err := m.resolveFileName(path)
	if err != nil {
		return FileInfo{}, err
	}
	n, err := m.readInode(idx)
	if err != nil {
		return FileInfo{}, err
	}
	return fileInfoFromInode(n), nil
}

// Fstat returns metadata for an already-open handle.
func (m *Mount) Fstat(f *File) (FileInfo, error) {
	if m.recorder != nil {
		m.recorder.writeFstat(f.of.handleIndex)
	}
	return fileInfoFromInode(f.of.node), nil
}

// Open resolves path and opens it under mode, creating it in its parent
// directory when CREATE is set and it does not already exist.
func (m *Mount) Open(path string, mode OpenMode) (*File, error) {
	if m.recorder != nil {
		m.recorder.writeOpen(path, mode)
	}
	return m.open(path, mode)
}

// open is Open without the trace record, for operations that have already
// recorded themselves.
func (m *Mount) open(path string, mode OpenMode) (*File, error) {
	mode &^= modeDirectory // the directory bit is internal-only

	fileInode, dirInode, err := m.resolveFileName(path)
	if err != nil {
		fifErr, ok := err.(*Error)
		if !ok || fifErr.Code != CodeFileNotFound || !mode.has(ModeCreate) {
			return nil, err
		}
		_, base, serr := splitDirBaseFromPath(path)
		if serr != nil {
			return nil, serr
		}
		if err := m.checkWritable("open"); err != nil {
			return nil, err
		}
		fileInode, err = m.createFile(base, dirInode)
		if err != nil {
			return nil, err
		}
	}
	return m.openFileByInode(fileInode, mode)
}

func splitDirBaseFromPath(path string) ([]string, string, error) {
	parts, err := canonicalizePath(path)
	if err != nil {
		return nil, "", err
	}
	dir, base, err := splitDirBase(parts)
	return dir, base, err
}

// Read reads up to count bytes from file into buf.
func (m *Mount) Read(f *File, buf []byte, count int) (int, error) {
	if m.recorder != nil {
		m.recorder.writeRead(f.of.handleIndex, count)
	}
	return f.Read(buf[:count])
}

// Write writes count bytes from buf into file.
func (m *Mount) Write(f *File, buf []byte, count int) (int, error) {
	if m.recorder != nil {
		m.recorder.writeWrite(f.of.handleIndex, buf[:count])
	}
	return f.Write(buf[:count])
}

// Seek repositions file's offset.
func (m *Mount) Seek(f *File, offset int64, mode SeekMode) (int64, error) {
	if m.recorder != nil {
		m.recorder.writeSeek(f.of.handleIndex, offset, mode)
	}
	return f.Seek(offset, mode)
}

// Tell returns file's current offset.
func (m *Mount) Tell(f *File) int64 {
	if m.recorder != nil {
		m.recorder.writeTell(f.of.handleIndex)
	}
	return f.Tell()
}

// Ftruncate resizes file to size.
func (m *Mount) Ftruncate(f *File, size int64) error {
	if m.recorder != nil {
		m.recorder.writeFtruncate(f.of.handleIndex, size)
	}
	return f.Truncate(size)
}

// Close closes file.
func (m *Mount) Close(f *File) error {
	if m.recorder != nil {
		m.recorder.writeClose(f.of.handleIndex)
	}
	return f.Close()
}

// Unlink removes the directory entry for path and frees its inode when its
// reference count drops to zero.
func (m *Mount) Unlink(path string) error {
	if m.recorder != nil {
		m.recorder.writeUnlink(path)
	}
	if err := m.checkWritable("unlink"); err != nil {
		return err
	}
	fileInode, dirInode, err := m.resolveFileName(path)
	if err != nil {
		return err
	}
	_, base, err := splitDirBaseFromPath(path)
	if err != nil {
		return err
	}
	n, err := m.readInode(fileInode)
	if err != nil {
		return err
	}
	if err := m.removeFileFromDirectory(dirInode, base); err != nil {
		return err
	}
	n.referenceCount--
	if n.referenceCount == 0 {
		if err := m.freeFileBlocks(fileInode, n); err != nil {
			return err
		}
		return m.freeInode(fileInode)
	}
	return m.writeInode(fileInode, n)
}

// GetFileContents is a whole-file convenience read.
func (m *Mount) GetFileContents(path string, buf []byte, maxCount int) (int, error) {
	if m.recorder != nil {
		m.recorder.writeGetFileContents(path, maxCount)
	}
	f, err := m.open(path, ModeRead|ModeStreamed)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n, err := f.Read(buf[:maxCount])
	if err != nil && err.(*Error).Code != CodeEndOfFile {
		return n, err
	}
	return n, nil
}

// PutFileContents is a whole-file convenience write, creating/truncating
// the file first.
func (m *Mount) PutFileContents(path string, buf []byte, count int) error {
	if m.recorder != nil {
		m.recorder.writePutFileContents(path, buf[:count])
	}
	f, err := m.open(path, ModeCreate|ModeTruncate|ModeWrite|ModeStreamed)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(buf[:count])
	return err
}

// CompressFile is reserved; the original engine's implementation is a stub
// that always fails, and this port preserves that.
func (m *Mount) CompressFile(path string, alg Algorithm, level uint32) error {
	if m.recorder != nil {
		m.recorder.writeCompressFile(path, alg, level)
	}
	if err := m.checkWritable("compress_file"); err != nil {
		return err
	}
	return newErr("compress_file", CodeGeneric, nil)
}

// Enumdir streams each entry of dirname and invokes callback with its name.
func (m *Mount) Enumdir(dirname string, callback EnumdirCallback) error {
	if m.recorder != nil {
		m.recorder.writeEnumdir(dirname)
	}
	parts, err := canonicalizePath(dirname)
	if err != nil {
		return err
	}
	idx, err := m.resolveDirectoryName(parts)
	if err != nil {
		return err
	}
	return m.enumDirectory(idx, callback)
}

// Mkdir creates an empty directory at dirname.
func (m *Mount) Mkdir(dirname string) error {
	if m.recorder != nil {
		m.recorder.writeMkdir(dirname)
	}
	if err := m.checkWritable("mkdir"); err != nil {
		return err
	}
	parts, err := canonicalizePath(dirname)
	if err != nil {
		return err
	}
	parentParts, base, err := splitDirBase(parts)
	if err != nil {
		return err
	}
	parent, err := m.resolveDirectoryName(parentParts)
	if err != nil {
		return err
	}
	if _, _, err := m.findFileInDirectory(parent, base); err == nil {
		return newErr("mkdir", CodeAlreadyExists, nil)
	}
	idx, err := m.createDirectory(0)
	if err != nil {
		return err
	}
	return m.addFileToDirectory(parent, base, idx)
}

// Rmdir removes an empty directory at dirname.
func (m *Mount) Rmdir(dirname string) error {
	if m.recorder != nil {
		m.recorder.writeRmdir(dirname)
	}
	if err := m.checkWritable("rmdir"); err != nil {
		return err
	}
	parts, err := canonicalizePath(dirname)
	if err != nil {
		return err
	}
	parentParts, base, err := splitDirBase(parts)
	if err != nil {
		return err
	}
	parent, err := m.resolveDirectoryName(parentParts)
	if err != nil {
		return err
	}
	idx, _, err := m.findFileInDirectory(parent, base)
	if err != nil {
		return err
	}
	n, err := m.readInode(idx)
	if err != nil {
		return err
	}
	if !n.hasAttr(AttrDirectory) {
		return newErr("rmdir", CodeBadPath, nil)
	}
	hdr, err := m.readDirectoryHeader(n)
	if err != nil {
		return err
	}
	if hdr.fileCount > 0 {
		return newErr("rmdir", CodeDirectoryNotEmpty, nil)
	}
	if err := m.removeFileFromDirectory(parent, base); err != nil {
		return err
	}
	n.referenceCount--
	if n.referenceCount == 0 {
		if err := m.freeFileBlocks(idx, n); err != nil {
			return err
		}
		return m.freeInode(idx)
	}
	return m.writeInode(idx, n)
}
