package volume

import "strings"

// Directory format: an inode flagged DIRECTORY whose payload is
// { header, entry[0..file_count) }. Entries are read and written directly
// against the inode's raw payload (readFileData/writeFileData/resizeFile)
// rather than through the buffered open-file handle, since these are
// internal, single-shot, whole-entry operations.

// createDirectory allocates a fresh, empty DIRECTORY inode and writes a
// zero-entry header as its payload.
func (m *Mount) createDirectory(hint inodeIndex) (inodeIndex, error) {
	idx, err := m.allocInode(hint)
	if err != nil {
		return 0, err
	}
	now := currentTimestamp()
	n := &rawInode{
		creationTimestamp:     now,
		modificationTimestamp: now,
		attributes:            uint32(AttrDirectory),
		referenceCount:        1,
	}
	if err := m.writeInode(idx, n); err != nil {
		return 0, err
	}
	hdr := &directoryHeader{magic: magicDirectoryHeader}
	if err := m.resizeFile(idx, n, dirHeaderSize); err != nil {
		return 0, err
	}
	if err := m.writeFileData(idx, n, 0, hdr.encode()); err != nil {
		return 0, err
	}
	return idx, nil
}

func (m *Mount) readDirectoryHeader(n *rawInode) (*directoryHeader, error) {
	buf := make([]byte, dirHeaderSize)
	if _, err := m.readFileData(n, 0, buf); err != nil {
		return nil, err
	}
	hdr := decodeDirectoryHeader(buf)
	if hdr.magic != magicDirectoryHeader {
		return nil, m.poison("read_directory_header", "bad directory header magic")
	}
	return hdr, nil
}

// findFileInDirectory scans the directory's entry list for an
// ASCII-case-insensitive match of filename, returning its inode index and
// 0-based ordinal.
func (m *Mount) findFileInDirectory(directoryInode inodeIndex, filename string) (inodeIndex, int, error) {
	n, err := m.readInode(directoryInode)
	if err != nil {
		return 0, 0, err
	}
	hdr, err := m.readDirectoryHeader(n)
	if err != nil {
		return 0, 0, err
	}

	offset := uint32(dirHeaderSize)
	want := strings.ToLower(filename)
	for ordinal := uint32(0); ordinal < hdr.fileCount; ordinal++ {
		ebuf := make([]byte, dirEntryHeaderSize)
		if _, err := m.readFileData(n, offset, ebuf); err != nil {
			return 0, 0, err
		}
		eh := decodeDirectoryEntryHeader(ebuf)
		offset += dirEntryHeaderSize

		if int(eh.nameLength) == len(want) {
			nameBuf := make([]byte, eh.nameLength)
			if _, err := m.readFileData(n, offset, nameBuf); err != nil {
				return 0, 0, err
			}
			if strings.ToLower(string(nameBuf)) == want {
				return eh.inodeIndex, int(ordinal), nil
			}
		}
		offset += eh.nameLength
	}
	return 0, 0, newErr("find_file_in_directory", CodeFileNotFound, nil)
}

// addFileToDirectory appends an entry at the end of the directory's
// payload and widens the header's hint fields.
func (m *Mount) addFileToDirectory(directoryInode inodeIndex, filename string, fileInode inodeIndex) error {
	n, err := m.readInode(directoryInode)
	if err != nil {
		return err
	}
	hdr, err := m.readDirectoryHeader(n)
	if err != nil {
		return err
	}

	eh := &directoryEntryHeader{nameLength: uint32(len(filename)), inodeIndex: fileInode}
	payload := append(eh.encode(), []byte(filename)...)
	if err := m.writeFileData(directoryInode, n, n.dataSize, payload); err != nil {
		return err
	}

	hdr.fileCount++
	if uint32(len(filename)) > hdr.maxFilenameLength {
		hdr.maxFilenameLength = uint32(len(filename))
	}
	if hdr.fileCount == 1 || fileInode < hdr.firstFileInode {
		hdr.firstFileInode = fileInode
	}
	if fileInode > hdr.lastFileInode {
		hdr.lastFileInode = fileInode
	}
	return m.writeFileData(directoryInode, n, 0, hdr.encode())
}

// removeFileFromDirectory locates filename's entry, shifts the remaining
// entries down over it, truncates the payload, and decrements file_count
// (see DESIGN.md, directory file_count bookkeeping).
func (m *Mount) removeFileFromDirectory(directoryInode inodeIndex, filename string) error {
	n, err := m.readInode(directoryInode)
	if err != nil {
		return err
	}
	hdr, err := m.readDirectoryHeader(n)
	if err != nil {
		return err
	}

	offset := uint32(dirHeaderSize)
	want := strings.ToLower(filename)
	entryStart := uint32(0)
	entryLen := uint32(0)
	matched := false
	for ordinal := uint32(0); ordinal < hdr.fileCount; ordinal++ {
		ebuf := make([]byte, dirEntryHeaderSize)
		if _, err := m.readFileData(n, offset, ebuf); err != nil {
			return err
		}
		eh := decodeDirectoryEntryHeader(ebuf)
		thisStart := offset
		offset += dirEntryHeaderSize

		nameBuf := make([]byte, eh.nameLength)
		if _, err := m.readFileData(n, offset, nameBuf); err != nil {
			return err
		}
		offset += eh.nameLength

		if !matched && int(eh.nameLength) == len(want) && strings.ToLower(string(nameBuf)) == want {
			entryStart = thisStart
			entryLen = dirEntryHeaderSize + eh.nameLength
			matched = true
		}
	}
	if !matched {
		return newErr("remove_file_from_directory", CodeFileNotFound, nil)
	}

	tailLen := n.dataSize - (entryStart + entryLen)
	if tailLen > 0 {
		tail := make([]byte, tailLen)
		if _, err := m.readFileData(n, entryStart+entryLen, tail); err != nil {
			return err
		}
		if err := m.writeFileData(directoryInode, n, entryStart, tail); err != nil {
			return err
		}
	}
	if err := m.resizeFile(directoryInode, n, n.dataSize-entryLen); err != nil {
		return err
	}

	hdr.fileCount--
	return m.writeFileData(directoryInode, n, 0, hdr.encode())
}

// EnumdirCallback is invoked once per directory entry during Enumdir. A
// non-nil return aborts iteration and is forwarded to the caller.
type EnumdirCallback func(filename string) error

func (m *Mount) enumDirectory(directoryInode inodeIndex, callback EnumdirCallback) error {
	n, err := m.readInode(directoryInode)
	if err != nil {
		return err
	}
	hdr, err := m.readDirectoryHeader(n)
	if err != nil {
		return err
	}

	offset := uint32(dirHeaderSize)
	for ordinal := uint32(0); ordinal < hdr.fileCount; ordinal++ {
		ebuf := make([]byte, dirEntryHeaderSize)
		if _, err := m.readFileData(n, offset, ebuf); err != nil {
			return err
		}
		eh := decodeDirectoryEntryHeader(ebuf)
		offset += dirEntryHeaderSize

		nameBuf := make([]byte, eh.nameLength)
		if _, err := m.readFileData(n, offset, nameBuf); err != nil {
			return err
		}
		offset += eh.nameLength

		if err := callback(string(nameBuf)); err != nil {
			return err
		}
	}
	return nil
}
