package buffer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	"github.com/joshuapare/hexkit/internal/mmfile"
	"github.com/joshuapare/hexkit/pkg/types"
)

// OpenOptions controls how the original snapshot is loaded.
type OpenOptions struct {
	// Mmap maps the file read-only instead of reading it onto the heap.
	// Only honoured for the OS filesystem on platforms with mmap support;
	// otherwise the file is read normally.
	//
	// A private mapping does not isolate the original from processes that
	// write the file in place: their bytes show through pages this process
	// has not copied. Verify detects such a change; it cannot undo it.
	Mmap bool

	// Logger receives debug events. Nil discards.
	Logger *slog.Logger
}

// Buffer is an original byte snapshot plus a piece-table overlay of pending
// edits.
type Buffer struct {
	view

	release func() error // unmaps the original, nil for heap snapshots
	mapped  bool
	logger  *slog.Logger

	fingerprint uint64 // xxhash64 of original, taken at load
}

var discard = slog.New(slog.DiscardHandler)

// Open reads the file at path into a new Buffer.
//
// Empty files are valid and produce a zero-length buffer. Any failure
// (missing file, permission, short read) is returned as a types.ErrIO error
// that also wraps the underlying cause.
func Open(fsys afero.Fs, path string, opts OpenOptions) (*Buffer, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	logger := opts.Logger
	if logger == nil {
		logger = discard
	}

	if opts.Mmap && mmfile.Supported {
		if _, ok := fsys.(*afero.OsFs); ok {
			data, release, err := mmfile.Map(path)
			if err != nil {
				return nil, types.IOError("open", path, err)
			}
			b := newBuffer(data, logger)
			b.release = release
			b.mapped = true
			logger.Debug("buffer opened", "path", path, "size", len(data), "mmap", true)
			return b, nil
		}
	}

	data, err := readAll(fsys, path)
	if err != nil {
		return nil, types.IOError("open", path, err)
	}
	b := newBuffer(data, logger)
	logger.Debug("buffer opened", "path", path, "size", len(data), "mmap", false)
	return b, nil
}

func readAll(fsys afero.Fs, path string) ([]byte, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, errors.New("is a directory")
	}
	size := st.Size()
	if size > int64(^uint(0)>>1) {
		return nil, fmt.Errorf("file too large (%d bytes)", size)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		// A file that shrank between Stat and read surfaces as ErrUnexpectedEOF.
		return nil, fmt.Errorf("read: %w", err)
	}
	return data, nil
}

// FromBytes wraps data as the original snapshot. The Buffer takes ownership;
// the caller must not modify data afterwards.
func FromBytes(data []byte) *Buffer {
	if data == nil {
		data = []byte{}
	}
	return newBuffer(data, discard)
}

// New returns an untitled buffer of size zero bytes.
func New(size int64) (*Buffer, error) {
	if size < 0 {
		return nil, types.RangeError(0, size, 0)
	}
	return newBuffer(make([]byte, size), discard), nil
}

func newBuffer(data []byte, logger *slog.Logger) *Buffer {
	b := &Buffer{logger: logger, fingerprint: xxhash.Sum64(data)}
	b.original = data
	b.resetPieces()
	return b
}

// SetLogger replaces the debug logger. Nil discards.
func (b *Buffer) SetLogger(l *slog.Logger) {
	if l == nil {
		l = discard
	}
	b.logger = l
}

// Mapped reports whether the original snapshot is memory-mapped.
func (b *Buffer) Mapped() bool { return b.mapped }

// OriginalLen returns the length of the snapshot taken at open time.
func (b *Buffer) OriginalLen() int64 { return int64(len(b.original)) }

// Fingerprint returns the xxhash64 of the original snapshot as it was when
// the buffer was loaded.
func (b *Buffer) Fingerprint() uint64 { return b.fingerprint }

// Verify fails with types.ErrExternalChange when a mapped original no longer
// matches its load-time fingerprint, i.e. another process rewrote the file in
// place. Heap snapshots never change and always verify.
func (b *Buffer) Verify() error {
	if !b.mapped {
		return nil
	}
	if xxhash.Sum64(b.original) != b.fingerprint {
		return fmt.Errorf("mapped original modified in place: %w", types.ErrExternalChange)
	}
	return nil
}

// Reset drops every pending edit. Edits returned earlier must not be
// reverted or applied afterwards.
func (b *Buffer) Reset() {
	b.add = nil
	b.resetPieces()
}

// Close releases the original snapshot. The Buffer must not be used after.
func (b *Buffer) Close() error {
	var err error
	if b.release != nil {
		err = b.release()
		b.release = nil
	}
	b.original = nil
	b.add = nil
	b.pieces = nil
	b.starts = nil
	b.size = 0
	return err
}
