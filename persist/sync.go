package persist

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// SyncMode controls durability of the written file before it replaces the
// target.
type SyncMode int

const (
	// SyncAuto flushes the temp file's data (fdatasync) before the rename.
	SyncAuto SyncMode = iota

	// SyncNone skips explicit syncing. The swap is still atomic for
	// observers but may not survive power loss.
	SyncNone

	// SyncFull flushes data and metadata (F_FULLFSYNC on macOS) and syncs
	// the parent directory after the rename.
	SyncFull
)

func (m SyncMode) String() string {
	switch m {
	case SyncNone:
		return "none"
	case SyncFull:
		return "full"
	default:
		return "auto"
	}
}

// ParseSyncMode accepts the names produced by SyncMode.String.
func ParseSyncMode(s string) (SyncMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return SyncAuto, nil
	case "none", "off":
		return SyncNone, nil
	case "full":
		return SyncFull, nil
	default:
		return 0, fmt.Errorf("unknown sync mode %q", s)
	}
}

var errNoFdSync = errors.New("fd sync not supported")

type fder interface {
	Fd() uintptr
}

// syncFile flushes f according to mode, using the raw descriptor when the
// filesystem exposes one and File.Sync otherwise.
func syncFile(f afero.File, mode SyncMode) error {
	if mode == SyncNone {
		return nil
	}
	if fd, ok := f.(fder); ok {
		err := fdatasync(int(fd.Fd()), mode == SyncFull)
		if !errors.Is(err, errNoFdSync) {
			return err
		}
	}
	return f.Sync()
}

// syncDir makes a completed rename durable.
func syncDir(fsys afero.Fs, dir string) error {
	d, err := fsys.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
