package volume

import "github.com/sirupsen/logrus"

// VolumeOptions configures a volume at creation time; they are baked into
// the descriptor and cannot change afterwards.
type VolumeOptions struct {
	BlockSize       uint32
	SmallfileSize   uint32 // reserved
	HashTableSize   uint32 // reserved
	InodeTableCount uint32
}

// DefaultVolumeOptions matches the archive format's documented defaults.
func DefaultVolumeOptions() VolumeOptions {
	return VolumeOptions{
		BlockSize:       1024,
		SmallfileSize:   64,
		HashTableSize:   512,
		InodeTableCount: 4,
	}
}

// MountOptions configures how an existing volume is mounted.
type MountOptions struct {
	BlockCacheSize             uint32 // reserved, behaves as 0
	ReadOnly                   bool
	NewFileCompressionAlgorithm Algorithm
	NewFileCompressionLevel    uint32
	FragmentationThreshold     uint32 // reserved

	// Logger receives structured log entries for volume create, mount and
	// unmount and for every poisoning event; individual allocator mutations
	// are not logged. A nil Logger falls back to logrus.StandardLogger().
	Logger *logrus.Logger

	// Recorder, when non-nil, receives a lossless append-only log of every
	// public operation issued against the resulting mount.
	Recorder *Recorder
}

// DefaultMountOptions matches the archive format's documented defaults.
func DefaultMountOptions() MountOptions {
	return MountOptions{
		BlockCacheSize:               0,
		ReadOnly:                     false,
		NewFileCompressionAlgorithm:  AlgorithmNone,
		NewFileCompressionLevel:      6,
		FragmentationThreshold:       0,
	}
}

func (o VolumeOptions) validate() error {
	if o.BlockSize < 128 || o.BlockSize&(o.BlockSize-1) != 0 {
		return newErr("create_volume", CodeGeneric, nil)
	}
	if o.BlockSize%inodeSize != 0 {
		return newErr("create_volume", CodeGeneric, nil)
	}
	if o.InodeTableCount == 0 {
		return newErr("create_volume", CodeGeneric, nil)
	}
	return nil
}
