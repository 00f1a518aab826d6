package volume

import "github.com/libfif/go-fif/util/timestamp"

// currentTimestamp returns the Unix timestamp stamped onto inode
// creation/modification fields, honoring SOURCE_DATE_EPOCH for
// reproducible volume builds the way the rest of the ambient stack does.
func currentTimestamp() uint64 {
	return uint64(timestamp.GetTime().Unix())
}
