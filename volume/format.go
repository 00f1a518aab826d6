package volume

import "encoding/binary"

// On-disk magic numbers. All multi-byte fields in every structure below are
// little-endian and packed without padding, matching the byte layout a C
// `#pragma pack(push, 1)` struct would produce.
const (
	magicHeader              uint32 = 0x11223344
	magicInodeTableHeader     uint32 = 0x44556677 // reserved, not checked on disk
	magicDirectoryHeader      uint32 = 0x77889900
	magicFragmentationHeader  uint32 = 0x00AABBCC // reserved
	magicFreeblockHeader      uint32 = 0xCCDDEEFF
)

const (
	headerSize         = 64 // 16 * uint32
	inodeSize          = 64 // fixed regardless of block size
	dirHeaderSize      = 20 // 5 * uint32
	dirEntryHeaderSize = 8  // name_length + inode_index
	freeblockHeaderSize = 12
	volumeFormatVersion = 1
)

// descriptor is the in-memory form of block 0, the volume header.
type descriptor struct {
	magic                 uint32
	version               uint32
	blockSize             uint32
	blockCount            uint32
	smallfileSize         uint32
	hashTableSize         uint32
	inodeTableCount       uint32
	freeBlockCount        uint32
	freeInodeCount        uint32
	firstInodeTableBlock  uint32
	lastInodeTableBlock   uint32
	firstFreeInode        uint32
	lastFreeInode         uint32
	firstFreeBlock        uint32
	lastFreeBlock         uint32
	rootInode             uint32
}

func (d *descriptor) encode() []byte {
	b := make([]byte, headerSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:4], d.magic)
	le.PutUint32(b[4:8], d.version)
	le.PutUint32(b[8:12], d.blockSize)
	le.PutUint32(b[12:16], d.blockCount)
	le.PutUint32(b[16:20], d.smallfileSize)
	le.PutUint32(b[20:24], d.hashTableSize)
	le.PutUint32(b[24:28], d.inodeTableCount)
	le.PutUint32(b[28:32], d.freeBlockCount)
	le.PutUint32(b[32:36], d.freeInodeCount)
	le.PutUint32(b[36:40], d.firstInodeTableBlock)
	le.PutUint32(b[40:44], d.lastInodeTableBlock)
	le.PutUint32(b[44:48], d.firstFreeInode)
	le.PutUint32(b[48:52], d.lastFreeInode)
	le.PutUint32(b[52:56], d.firstFreeBlock)
	le.PutUint32(b[56:60], d.lastFreeBlock)
	le.PutUint32(b[60:64], d.rootInode)
	return b
}

func decodeDescriptor(b []byte) *descriptor {
	le := binary.LittleEndian
	return &descriptor{
		magic:                le.Uint32(b[0:4]),
		version:              le.Uint32(b[4:8]),
		blockSize:            le.Uint32(b[8:12]),
		blockCount:           le.Uint32(b[12:16]),
		smallfileSize:        le.Uint32(b[16:20]),
		hashTableSize:        le.Uint32(b[20:24]),
		inodeTableCount:      le.Uint32(b[24:28]),
		freeBlockCount:       le.Uint32(b[28:32]),
		freeInodeCount:       le.Uint32(b[32:36]),
		firstInodeTableBlock: le.Uint32(b[36:40]),
		lastInodeTableBlock:  le.Uint32(b[40:44]),
		firstFreeInode:       le.Uint32(b[44:48]),
		lastFreeInode:        le.Uint32(b[48:52]),
		firstFreeBlock:       le.Uint32(b[52:56]),
		lastFreeBlock:        le.Uint32(b[56:60]),
		rootInode:            le.Uint32(b[60:64]),
	}
}

// Attribute is the inode attribute bitfield.
type Attribute uint32

const (
	AttrFree       Attribute = 1 << 0
	AttrFile       Attribute = 1 << 1
	AttrDirectory  Attribute = 1 << 2
	AttrSmallFile  Attribute = 1 << 3
	AttrCompressed Attribute = 1 << 4
	AttrFragmented Attribute = 1 << 5
)

// Algorithm identifies a compression codec.
type Algorithm uint32

const (
	AlgorithmNone Algorithm = 0
	AlgorithmZlib Algorithm = 1
	AlgorithmLZMA Algorithm = 2
	AlgorithmLZ4  Algorithm = 3
)

// rawInode is the fixed 64-byte on-disk inode record.
type rawInode struct {
	creationTimestamp     uint64
	modificationTimestamp uint64
	attributes            uint32
	referenceCount        uint32
	nextEntry             uint32 // free-list link, or next table-descriptor block, or unused
	compressionAlgorithm  uint32
	compressionLevel      uint32
	uncompressedSize      uint32
	dataSize              uint32
	checksum              uint32
	firstBlockIndex       uint32
	blockCount            uint32
}

func (n *rawInode) encode() []byte {
	b := make([]byte, inodeSize)
	le := binary.LittleEndian
	le.PutUint64(b[0:8], n.creationTimestamp)
	le.PutUint64(b[8:16], n.modificationTimestamp)
	le.PutUint32(b[16:20], n.attributes)
	le.PutUint32(b[20:24], n.referenceCount)
	le.PutUint32(b[24:28], n.nextEntry)
	le.PutUint32(b[28:32], n.compressionAlgorithm)
	le.PutUint32(b[32:36], n.compressionLevel)
	le.PutUint32(b[36:40], n.uncompressedSize)
	le.PutUint32(b[40:44], n.dataSize)
	le.PutUint32(b[44:48], n.checksum)
	le.PutUint32(b[48:52], n.firstBlockIndex)
	le.PutUint32(b[52:56], n.blockCount)
	// bytes [56:64] are reserved padding, left zero
	return b
}

func decodeRawInode(b []byte) *rawInode {
	le := binary.LittleEndian
	return &rawInode{
		creationTimestamp:     le.Uint64(b[0:8]),
		modificationTimestamp: le.Uint64(b[8:16]),
		attributes:            le.Uint32(b[16:20]),
		referenceCount:        le.Uint32(b[20:24]),
		nextEntry:             le.Uint32(b[24:28]),
		compressionAlgorithm:  le.Uint32(b[28:32]),
		compressionLevel:      le.Uint32(b[32:36]),
		uncompressedSize:      le.Uint32(b[36:40]),
		dataSize:              le.Uint32(b[40:44]),
		checksum:              le.Uint32(b[44:48]),
		firstBlockIndex:       le.Uint32(b[48:52]),
		blockCount:            le.Uint32(b[52:56]),
	}
}

func (n *rawInode) hasAttr(a Attribute) bool {
	return Attribute(n.attributes)&a != 0
}

// freeblockHeader sits at the first block of every free extent.
type freeblockHeader struct {
	magic         uint32
	blockCount    uint32
	nextFreeBlock uint32
}

func (h *freeblockHeader) encode() []byte {
	b := make([]byte, freeblockHeaderSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:4], h.magic)
	le.PutUint32(b[4:8], h.blockCount)
	le.PutUint32(b[8:12], h.nextFreeBlock)
	return b
}

func decodeFreeblockHeader(b []byte) *freeblockHeader {
	le := binary.LittleEndian
	return &freeblockHeader{
		magic:         le.Uint32(b[0:4]),
		blockCount:    le.Uint32(b[4:8]),
		nextFreeBlock: le.Uint32(b[8:12]),
	}
}

// directoryHeader is the fixed prefix of a directory inode's payload.
type directoryHeader struct {
	magic             uint32
	fileCount         uint32
	maxFilenameLength uint32
	firstFileInode    uint32
	lastFileInode     uint32
}

func (h *directoryHeader) encode() []byte {
	b := make([]byte, dirHeaderSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:4], h.magic)
	le.PutUint32(b[4:8], h.fileCount)
	le.PutUint32(b[8:12], h.maxFilenameLength)
	le.PutUint32(b[12:16], h.firstFileInode)
	le.PutUint32(b[16:20], h.lastFileInode)
	return b
}

func decodeDirectoryHeader(b []byte) *directoryHeader {
	le := binary.LittleEndian
	return &directoryHeader{
		magic:             le.Uint32(b[0:4]),
		fileCount:         le.Uint32(b[4:8]),
		maxFilenameLength: le.Uint32(b[8:12]),
		firstFileInode:    le.Uint32(b[12:16]),
		lastFileInode:     le.Uint32(b[16:20]),
	}
}

// directoryEntryHeader precedes the raw name bytes of each directory entry.
type directoryEntryHeader struct {
	nameLength uint32
	inodeIndex uint32
}

func (h *directoryEntryHeader) encode() []byte {
	b := make([]byte, dirEntryHeaderSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:4], h.nameLength)
	le.PutUint32(b[4:8], h.inodeIndex)
	return b
}

func decodeDirectoryEntryHeader(b []byte) *directoryEntryHeader {
	le := binary.LittleEndian
	return &directoryEntryHeader{
		nameLength: le.Uint32(b[0:4]),
		inodeIndex: le.Uint32(b[4:8]),
	}
}
