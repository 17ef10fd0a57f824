package hexkit

import (
	"log/slog"

	"github.com/spf13/afero"

	"github.com/joshuapare/hexkit/persist"
)

// OperationOptions controls individual high-level operation behavior.
type OperationOptions struct {
	// CreateBackup keeps the previous content at <path>.bak when a patch is
	// saved.
	CreateBackup bool

	// DryRun applies patches in memory and reports the result without
	// writing the file.
	DryRun bool

	// Sync is the durability mode for saves. Default: persist.SyncAuto.
	Sync persist.SyncMode

	// Mmap maps the file read-only instead of reading it onto the heap.
	Mmap bool

	// Fs is the filesystem to operate on. Nil means the OS filesystem.
	Fs afero.Fs

	// Logger receives operation events. Nil discards.
	Logger *slog.Logger
}

// FindOptions controls Find.
type FindOptions struct {
	// Start is the offset the scan begins at. Backward scans default to the
	// end of the file when Start is negative.
	Start int64

	// Backward scans towards offset zero.
	Backward bool

	// MaxResults limits the number of offsets returned (0 = unlimited).
	MaxResults int

	// ChunkSize overrides the search window size.
	ChunkSize int
}

func (o *OperationOptions) orDefault() *OperationOptions {
	if o == nil {
		return &OperationOptions{}
	}
	return o
}
