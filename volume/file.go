package volume

// File payload path: a file's data occupies one contiguous run of blocks.
// There is no indirect block tree — extending a file beyond its current
// run triggers resizeBlockRange, which may relocate the extent. The
// FRAGMENTED attribute bit and the fragmentation header magic are reserved
// for a future extension and are never set by this implementation.

// resizeFile adjusts the block extent backing inode to match newSize bytes,
// persists the inode's new block_count, and finally sets data_size.
func (m *Mount) resizeFile(idx inodeIndex, n *rawInode, newSize uint32) error {
	required := (newSize + m.blockSize - 1) / m.blockSize
	if newSize == 0 {
		required = 0
	}

	if required != n.blockCount {
		if required == 0 {
			if n.blockCount > 0 {
				if err := m.freeBlocks(n.firstBlockIndex, n.blockCount); err != nil {
					return err
				}
			}
			n.firstBlockIndex = 0
		} else if n.blockCount == 0 {
			first, err := m.allocBlocks(0, required)
			if err != nil {
				return err
			}
			n.firstBlockIndex = first
		} else {
			newFirst, err := m.resizeBlockRange(n.firstBlockIndex, n.blockCount, required)
			if err != nil {
				return err
			}
			n.firstBlockIndex = newFirst
		}
		n.blockCount = required
		if err := m.writeInode(idx, n); err != nil {
			return err
		}
	}

	n.dataSize = newSize
	return m.writeInode(idx, n)
}

// readFileData reads n bytes at off from the inode's raw (on-disk, possibly
// compressed-container) payload. A short read caused by I/O failure
// returns the bytes delivered so far rather than an error, matching the
// documented contract; offset range violations are reported immediately.
func (m *Mount) readFileData(n *rawInode, off uint32, buf []byte) (int, error) {
	if off+uint32(len(buf)) > n.dataSize {
		return 0, newErr("read_file_data", CodeBadOffset, nil)
	}
	delivered := 0
	remaining := buf
	cur := off
	for len(remaining) > 0 {
		blockOff := cur % m.blockSize
		blockNum := cur / m.blockSize
		chunk := m.blockSize - blockOff
		if chunk > uint32(len(remaining)) {
			chunk = uint32(len(remaining))
		}
		if err := m.readBlock(n.firstBlockIndex+blockNum, blockOff, remaining[:chunk]); err != nil {
			return delivered, nil
		}
		delivered += int(chunk)
		remaining = remaining[chunk:]
		cur += chunk
	}
	return delivered, nil
}

// writeFileData grows the file if needed, then writes n bytes at off into
// the inode's raw payload.
func (m *Mount) writeFileData(idx inodeIndex, n *rawInode, off uint32, buf []byte) error {
	if off+uint32(len(buf)) > n.dataSize {
		if err := m.resizeFile(idx, n, off+uint32(len(buf))); err != nil {
			return err
		}
	}
	remaining := buf
	cur := off
	for len(remaining) > 0 {
		blockOff := cur % m.blockSize
		blockNum := cur / m.blockSize
		chunk := m.blockSize - blockOff
		if chunk > uint32(len(remaining)) {
			chunk = uint32(len(remaining))
		}
		if err := m.writeBlock(n.firstBlockIndex+blockNum, blockOff, remaining[:chunk]); err != nil {
			return err
		}
		remaining = remaining[chunk:]
		cur += chunk
	}
	return nil
}

// freeFileBlocks returns the file's extent to the allocator and clears the
// size/checksum/extent fields of the inode.
func (m *Mount) freeFileBlocks(idx inodeIndex, n *rawInode) error {
	if n.blockCount > 0 {
		if err := m.freeBlocks(n.firstBlockIndex, n.blockCount); err != nil {
			return err
		}
	}
	n.firstBlockIndex = 0
	n.blockCount = 0
	n.dataSize = 0
	n.uncompressedSize = 0
	n.checksum = 0
	return m.writeInode(idx, n)
}

// createFile allocates a fresh, empty FILE inode and adds it to the given
// directory under filename.
func (m *Mount) createFile(filename string, directoryInode inodeIndex) (inodeIndex, error) {
	idx, err := m.allocInode(0)
	if err != nil {
		return 0, err
	}
	now := currentTimestamp()
	n := &rawInode{
		creationTimestamp:     now,
		modificationTimestamp: now,
		attributes:            uint32(AttrFile),
		referenceCount:        1,
		compressionAlgorithm:  uint32(m.newFileCompressionAlgorithm),
		compressionLevel:      m.newFileCompressionLevel,
	}
	if m.newFileCompressionAlgorithm != AlgorithmNone {
		n.attributes |= uint32(AttrCompressed)
	}
	if err := m.writeInode(idx, n); err != nil {
		return 0, err
	}
	if err := m.addFileToDirectory(directoryInode, filename, idx); err != nil {
		return 0, err
	}
	return idx, nil
}
