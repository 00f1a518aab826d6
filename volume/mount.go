// Package volume implements the file-in-a-file archive engine: a
// block-allocated, inode-addressed payload format that lives entirely
// inside one backing byte-stream reached through the Backend interface.
package volume

import (
	"fmt"

	"github.com/google/uuid"
)

type blockIndex = uint32
type inodeIndex = uint32

// Mount is a live, mounted volume. All of a volume's mutable state —
// descriptor fields, the open-file table, the poisoned latch — lives here.
// A Mount is not safe for concurrent use from multiple goroutines; it
// models the single-threaded cooperative scheduling the format assumes.
type Mount struct {
	backend Backend
	logger  *Logger
	id      string

	readOnly   bool
	errorState bool

	newFileCompressionAlgorithm Algorithm
	newFileCompressionLevel     uint32
	fragmentationThreshold      uint32

	blockSize       uint32
	smallfileSize   uint32
	hashTableSize   uint32
	blockCount      uint32
	inodeTableCount uint32
	freeBlockCount  uint32
	freeInodeCount  uint32

	firstInodeTableBlock blockIndex
	lastInodeTableBlock  blockIndex
	firstFreeInode       inodeIndex
	lastFreeInode        inodeIndex
	firstFreeBlock       blockIndex
	lastFreeBlock        blockIndex
	rootInode            inodeIndex

	inodesPerTable uint32

	openFiles []*openFile // sparse: a closed slot is nil, never compacted

	recorder *Recorder
}

// CreateVolume truncates the backend to one block and lays down a fresh
// archive: the descriptor, the requested number of inode tables, and an
// empty root directory.
func CreateVolume(b Backend, volOpts VolumeOptions, mountOpts MountOptions) (*Mount, error) {
	if err := volOpts.validate(); err != nil {
		return nil, err
	}

	if err := b.Truncate(int64(volOpts.BlockSize)); err != nil {
		return nil, newErr("create_volume", CodeIOError, err)
	}
	if err := b.ZeroAt(0, int64(volOpts.BlockSize)); err != nil {
		return nil, newErr("create_volume", CodeIOError, err)
	}

	m := &Mount{
		backend:         b,
		id:              uuid.New().String(),
		readOnly:        mountOpts.ReadOnly,
		newFileCompressionAlgorithm: mountOpts.NewFileCompressionAlgorithm,
		newFileCompressionLevel:     mountOpts.NewFileCompressionLevel,
		fragmentationThreshold:      mountOpts.FragmentationThreshold,
		blockSize:       volOpts.BlockSize,
		smallfileSize:   volOpts.SmallfileSize,
		hashTableSize:   volOpts.HashTableSize,
		blockCount:      1,
		inodeTableCount: 0,
		recorder:        mountOpts.Recorder,
	}
	m.logger = NewLogger(mountOpts.Logger, m.id)
	m.inodesPerTable = m.blockSize / inodeSize

	for i := uint32(0); i < volOpts.InodeTableCount; i++ {
		if _, err := m.allocInodeTable(); err != nil {
			return nil, err
		}
	}

	rootIdx, err := m.createDirectory(0)
	if err != nil {
		return nil, err
	}
	m.rootInode = rootIdx

	if err := m.writeDescriptor(); err != nil {
		return nil, err
	}

	m.logger.log(LogLevelInfo, nil, "volume created")
	return m, nil
}

// MountVolume reads the descriptor at block 0 of an existing archive and
// attaches to it.
func MountVolume(b Backend, mountOpts MountOptions) (*Mount, error) {
	hdr := make([]byte, headerSize)
	if _, err := b.ReadAt(hdr, 0); err != nil {
		return nil, newErr("mount_volume", CodeIOError, err)
	}
	d := decodeDescriptor(hdr)
	if d.magic != magicHeader {
		return nil, newErr("mount_volume", CodeCorruptVolume, nil)
	}

	m := &Mount{
		backend:         b,
		id:              uuid.New().String(),
		readOnly:        mountOpts.ReadOnly,
		newFileCompressionAlgorithm: mountOpts.NewFileCompressionAlgorithm,
		newFileCompressionLevel:     mountOpts.NewFileCompressionLevel,
		fragmentationThreshold:      mountOpts.FragmentationThreshold,
		blockSize:            d.blockSize,
		smallfileSize:         d.smallfileSize,
		hashTableSize:         d.hashTableSize,
		blockCount:            d.blockCount,
		inodeTableCount:       d.inodeTableCount,
		freeBlockCount:        d.freeBlockCount,
		freeInodeCount:        d.freeInodeCount,
		firstInodeTableBlock:  d.firstInodeTableBlock,
		lastInodeTableBlock:   d.lastInodeTableBlock,
		firstFreeInode:        d.firstFreeInode,
		lastFreeInode:         d.lastFreeInode,
		firstFreeBlock:        d.firstFreeBlock,
		lastFreeBlock:         d.lastFreeBlock,
		rootInode:             d.rootInode,
		recorder:              mountOpts.Recorder,
	}
	m.logger = NewLogger(mountOpts.Logger, m.id)
	if m.blockSize == 0 || m.blockSize%inodeSize != 0 {
		return nil, newErr("mount_volume", CodeCorruptVolume, nil)
	}
	m.inodesPerTable = m.blockSize / inodeSize

	m.logger.log(LogLevelInfo, nil, "volume mounted")
	return m, nil
}

// Unmount finalizes the trace recorder (if any) and releases in-memory
// state. It does not close the backend; the caller retains ownership of it.
func (m *Mount) Unmount() error {
	if m.recorder != nil {
		if err := m.recorder.finish(); err != nil {
			return err
		}
	}
	m.openFiles = nil
	m.logger.log(LogLevelInfo, nil, "volume unmounted")
	return nil
}

// writeDescriptor is the sole durability hook: it is invoked at the end of
// every allocator-visible state change and rewrites block 0 in full.
func (m *Mount) writeDescriptor() error {
	d := &descriptor{
		magic:                magicHeader,
		version:              volumeFormatVersion,
		blockSize:            m.blockSize,
		blockCount:           m.blockCount,
		smallfileSize:        m.smallfileSize,
		hashTableSize:        m.hashTableSize,
		inodeTableCount:      m.inodeTableCount,
		freeBlockCount:       m.freeBlockCount,
		freeInodeCount:       m.freeInodeCount,
		firstInodeTableBlock: m.firstInodeTableBlock,
		lastInodeTableBlock:  m.lastInodeTableBlock,
		firstFreeInode:       m.firstFreeInode,
		lastFreeInode:        m.lastFreeInode,
		firstFreeBlock:       m.firstFreeBlock,
		lastFreeBlock:        m.lastFreeBlock,
		rootInode:            m.rootInode,
	}
	if _, err := m.backend.WriteAt(d.encode(), 0); err != nil {
		return newErr("write_descriptor", CodeIOError, err)
	}
	return nil
}

// poison sets the mount-wide sticky corruption latch. Once set, only reads
// may proceed; every mutation short-circuits with CodeCorruptVolume.
func (m *Mount) poison(op string, reason string) error {
	m.errorState = true
	m.logger.log(LogLevelError, map[string]interface{}{"op": op, "reason": reason}, "volume poisoned")
	return newErr(op, CodeCorruptVolume, fmt.Errorf("%s", reason))
}

func (m *Mount) checkWritable(op string) error {
	if m.errorState {
		return newErr(op, CodeCorruptVolume, nil)
	}
	if m.readOnly {
		return newErr(op, CodeReadOnly, nil)
	}
	return nil
}
