//go:build linux

package persist

import (
	"golang.org/x/sys/unix"
)

// fdatasync performs file descriptor sync.
//
// On Linux, fdatasync() provides sufficient guarantees; full mode
// upgrades to fsync so metadata (size, mode) is durable too.
func fdatasync(fd int, full bool) error {
	if full {
		return unix.Fsync(fd)
	}
	return unix.Fdatasync(fd)
}
