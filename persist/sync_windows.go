//go:build windows

package persist

import (
	"golang.org/x/sys/windows"
)

// fdatasync performs file descriptor sync using FlushFileBuffers.
// The full parameter is ignored on Windows.
func fdatasync(fd int, _ bool) error {
	return windows.FlushFileBuffers(windows.Handle(fd))
}
