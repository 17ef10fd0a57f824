//go:build darwin

package persist

import (
	"golang.org/x/sys/unix"
)

// fdatasync performs file descriptor sync.
//
// On macOS, if full is true, use F_FULLFSYNC so data reaches the physical
// disk, not just the drive cache. Otherwise, use regular fsync.
func fdatasync(fd int, full bool) error {
	if full {
		_, err := unix.FcntlInt(uintptr(fd), unix.F_FULLFSYNC, 0)
		return err
	}
	// macOS doesn't have fdatasync, use fsync
	return unix.Fsync(fd)
}
