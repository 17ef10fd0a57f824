//go:build !linux && !darwin && !windows

package persist

// fdatasync is unavailable; syncFile falls back to File.Sync.
func fdatasync(int, bool) error { return errNoFdSync }
