package volume

// Inode tables: a chain of fixed-size blocks, each inodesPerTable slots
// wide. Slot 0 of every table is a table-descriptor inode (attributes==0,
// nextEntry chains to the next table's block, or 0 for the last table).
// Slots 1..inodesPerTable-1 are addressable user inodes. A global inode
// index addresses (tableIndex, slotIndex) as tableIndex*inodesPerTable +
// slotIndex; slot-0 addresses are never valid user inodes.

func (m *Mount) inodeLocation(idx inodeIndex) (table blockIndex, slotOffset uint32, err error) {
	tableIdx := idx / m.inodesPerTable
	slot := idx % m.inodesPerTable
	if slot == 0 {
		return 0, 0, newErr("inode_location", CodeBadPath, nil)
	}

	block := m.firstInodeTableBlock
	for i := uint32(0); i < tableIdx; i++ {
		hdr := make([]byte, inodeSize)
		if err := m.readBlock(block, 0, hdr); err != nil {
			return 0, 0, err
		}
		desc := decodeRawInode(hdr)
		if desc.nextEntry == 0 {
			return 0, 0, m.poison("inode_location", "inode table chain shorter than expected")
		}
		block = desc.nextEntry
	}
	return block, slot * inodeSize, nil
}

// readInode loads the inode at the given global index.
func (m *Mount) readInode(idx inodeIndex) (*rawInode, error) {
	block, off, err := m.inodeLocation(idx)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, inodeSize)
	if err := m.readBlock(block, off, buf); err != nil {
		return nil, err
	}
	return decodeRawInode(buf), nil
}

// writeInode persists the inode at the given global index.
func (m *Mount) writeInode(idx inodeIndex, n *rawInode) error {
	block, off, err := m.inodeLocation(idx)
	if err != nil {
		return err
	}
	return m.writeBlock(block, off, n.encode())
}

// readTableDescriptor reads slot 0 of the table whose block index is given.
func (m *Mount) readTableDescriptor(tableBlock blockIndex) (*rawInode, error) {
	buf := make([]byte, inodeSize)
	if err := m.readBlock(tableBlock, 0, buf); err != nil {
		return nil, err
	}
	return decodeRawInode(buf), nil
}

func (m *Mount) writeTableDescriptor(tableBlock blockIndex, next blockIndex) error {
	desc := &rawInode{nextEntry: next}
	return m.writeBlock(tableBlock, 0, desc.encode())
}

// allocInodeTable allocates one block, fills slot 0 with a fresh table
// descriptor, links the remaining slots as a FREE chain, and appends the
// table to both the table chain and the global free-inode list.
func (m *Mount) allocInodeTable() (blockIndex, error) {
	tableBlock, err := m.allocBlocks(0, 1)
	if err != nil {
		return 0, err
	}
	if err := m.writeTableDescriptor(tableBlock, 0); err != nil {
		return 0, err
	}

	tableIdx := m.inodeTableCount
	baseInode := tableIdx * m.inodesPerTable

	for slot := uint32(1); slot < m.inodesPerTable; slot++ {
		var next uint32
		if slot+1 < m.inodesPerTable {
			next = baseInode + slot + 1
		}
		free := &rawInode{attributes: uint32(AttrFree), nextEntry: next}
		if err := m.writeBlock(tableBlock, slot*inodeSize, free.encode()); err != nil {
			return 0, err
		}
	}

	firstNewInode := baseInode + 1
	lastNewInode := baseInode + m.inodesPerTable - 1

	if m.firstFreeInode == 0 {
		m.firstFreeInode = firstNewInode
	} else {
		tail, err := m.readInode(m.lastFreeInode)
		if err != nil {
			return 0, m.poison("alloc_inode_table", "bad free-inode tail")
		}
		tail.nextEntry = firstNewInode
		if err := m.writeInode(m.lastFreeInode, tail); err != nil {
			return 0, err
		}
	}
	m.lastFreeInode = lastNewInode
	m.freeInodeCount += m.inodesPerTable - 1

	if m.firstInodeTableBlock == 0 {
		m.firstInodeTableBlock = tableBlock
	} else {
		if err := m.writeTableDescriptor(m.lastInodeTableBlock, tableBlock); err != nil {
			return 0, err
		}
	}
	m.lastInodeTableBlock = tableBlock
	m.inodeTableCount++

	if err := m.writeDescriptor(); err != nil {
		return 0, err
	}
	return tableBlock, nil
}

// allocInode returns the free inode nearest to hint, allocating a fresh
// table if the free list is exhausted.
func (m *Mount) allocInode(hint inodeIndex) (inodeIndex, error) {
	if m.errorState {
		return 0, newErr("alloc_inode", CodeCorruptVolume, nil)
	}

	if m.firstFreeInode == 0 {
		tableBefore := m.inodeTableCount
		if _, err := m.allocInodeTable(); err != nil {
			return 0, err
		}
		// the list was empty, so the new table's first slot is its head
		first := tableBefore*m.inodesPerTable + 1
		n, err := m.readInode(first)
		if err != nil {
			return 0, err
		}
		m.firstFreeInode = n.nextEntry
		if n.nextEntry == 0 {
			m.lastFreeInode = 0
		}
		m.freeInodeCount--
		if err := m.writeDescriptor(); err != nil {
			return 0, err
		}
		return first, nil
	}

	var (
		bestIdx  inodeIndex
		bestPrev inodeIndex
		bestDist int64 = -1
		found    bool
	)

	var prev inodeIndex
	this := m.firstFreeInode
	for this != 0 {
		n, err := m.readInode(this)
		if err != nil {
			return 0, m.poison("alloc_inode", "bad free-inode entry")
		}
		if !n.hasAttr(AttrFree) {
			return 0, m.poison("alloc_inode", "free-inode chain entry missing FREE attribute")
		}
		dist := int64(this) - int64(hint)
		if dist < 0 {
			dist = -dist
		}
		if hint == 0 {
			bestIdx, bestPrev = this, prev
			found = true
			break
		}
		if !found || dist < bestDist {
			bestIdx, bestPrev, bestDist = this, prev, dist
			found = true
		}
		prev = this
		this = n.nextEntry
	}

	n, err := m.readInode(bestIdx)
	if err != nil {
		return 0, err
	}
	next := n.nextEntry

	if bestPrev == 0 {
		m.firstFreeInode = next
	} else {
		prevNode, err := m.readInode(bestPrev)
		if err != nil {
			return 0, m.poison("alloc_inode", "bad free-inode predecessor")
		}
		prevNode.nextEntry = next
		if err := m.writeInode(bestPrev, prevNode); err != nil {
			return 0, err
		}
	}
	if next == 0 {
		m.lastFreeInode = bestPrev
	}
	m.freeInodeCount--
	if err := m.writeDescriptor(); err != nil {
		return 0, err
	}
	return bestIdx, nil
}

// freeInode rewrites the inode as FREE and inserts it into the sorted
// ascending free-inode list.
func (m *Mount) freeInode(idx inodeIndex) error {
	free := &rawInode{attributes: uint32(AttrFree)}

	if m.firstFreeInode == 0 || idx < m.firstFreeInode {
		free.nextEntry = m.firstFreeInode
		if err := m.writeInode(idx, free); err != nil {
			return err
		}
		if m.firstFreeInode == 0 {
			m.lastFreeInode = idx
		}
		m.firstFreeInode = idx
		m.freeInodeCount++
		return m.writeDescriptor()
	}

	prev := m.firstFreeInode
	for {
		prevNode, err := m.readInode(prev)
		if err != nil {
			return m.poison("free_inode", "bad free-inode entry")
		}
		if prevNode.nextEntry == 0 || idx < prevNode.nextEntry {
			free.nextEntry = prevNode.nextEntry
			if err := m.writeInode(idx, free); err != nil {
				return err
			}
			prevNode.nextEntry = idx
			if err := m.writeInode(prev, prevNode); err != nil {
				return err
			}
			if free.nextEntry == 0 {
				m.freeInodeCount++
				m.lastFreeInode = idx
				return m.writeDescriptor()
			}
			m.freeInodeCount++
			return m.writeDescriptor()
		}
		prev = prevNode.nextEntry
	}
}
