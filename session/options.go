package session

import (
	"log/slog"

	"github.com/spf13/afero"

	"github.com/joshuapare/hexkit/display"
	"github.com/joshuapare/hexkit/history"
	"github.com/joshuapare/hexkit/persist"
	"github.com/joshuapare/hexkit/search"
)

// Options configures a Session.
type Options struct {
	// HistoryCap bounds the undo log. Non-positive means history.DefaultCap.
	HistoryCap int

	// Fs is the filesystem files are opened from and saved to. Nil means the
	// OS filesystem.
	Fs afero.Fs

	// Logger receives session events. Nil discards.
	Logger *slog.Logger

	// Mmap maps opened files read-only instead of reading them onto the heap.
	// A file rewritten in place by another process shows through the
	// mapping, so mapped sessions always verify the original before saving
	// and refuse with types.ErrExternalChange, whatever CheckExternalChange
	// says.
	Mmap bool

	// Sync is the durability mode used by Save and SaveAs.
	Sync persist.SyncMode

	// Backup keeps <path>.bak with the previous content on every save.
	Backup bool

	// CheckExternalChange refuses to Save over a file that was modified on
	// disk since it was opened or last saved (types.ErrExternalChange).
	CheckExternalChange bool

	// SearchChunk is the search window size. Non-positive means
	// search.DefaultChunkSize.
	SearchChunk int

	// Display is presentation configuration stored for the caller.
	Display display.Options
}

// DefaultOptions returns the recommended options for interactive editing.
func DefaultOptions() Options {
	return Options{
		HistoryCap:          history.DefaultCap,
		Sync:                persist.SyncAuto,
		CheckExternalChange: true,
		SearchChunk:         search.DefaultChunkSize,
		Display:             display.DefaultOptions(),
	}
}
