// Package session ties a buffer, its edit history, search and persistence
// into the editing session a presentation layer drives.
//
// A Session is Unopened until Open or Create succeeds. It is then clean or
// dirty depending on whether the history cursor sits at the last save point.
// Close refuses to drop unsaved edits; call Discard or Save first.
//
// Mutating calls must be serialised by the caller. Read, Find and the other
// read-only calls may run concurrently with each other, and Save may run on
// its own goroutine while edits continue: it writes the content captured
// when it was called.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"

	"github.com/joshuapare/hexkit/buffer"
	"github.com/joshuapare/hexkit/display"
	"github.com/joshuapare/hexkit/history"
	"github.com/joshuapare/hexkit/internal/buf"
	"github.com/joshuapare/hexkit/pkg/types"
	"github.com/joshuapare/hexkit/search"
)

// State is the lifecycle state of a Session.
type State int

const (
	Unopened State = iota
	Clean
	Dirty
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	default:
		return "unopened"
	}
}

// Change describes the logical region affected by an undo or redo: Removed
// bytes at Offset were replaced by Inserted bytes.
type Change struct {
	Offset   int64
	Removed  int64
	Inserted int64
}

// Session is one open file with its pending edits.
type Session struct {
	opts   Options
	fs     afero.Fs
	logger *slog.Logger

	mu     sync.RWMutex
	buf    *buffer.Buffer
	log    *history.Log
	path   string
	saves  int    // successful saves since buf was loaded
	diskFP uint64 // fingerprint of the file at path after the last save

	saving atomic.Bool
}

// New returns an Unopened session.
func New(opts Options) *Session {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{opts: opts, fs: fsys, logger: logger}
}

// Open loads path. An open clean session is closed first; a dirty one is
// refused with types.ErrUnsavedChanges.
func (s *Session) Open(path string) error {
	b, err := buffer.Open(s.fs, path, buffer.OpenOptions{Mmap: s.opts.Mmap, Logger: s.logger})
	if err != nil {
		return err
	}
	if err := s.attach(b, path); err != nil {
		_ = b.Close()
		return err
	}
	s.logger.Info("session opened", "path", path, "size", b.Len(), "mmap", b.Mapped())
	return nil
}

// Create starts an untitled buffer of size zero bytes. It has no path, so
// it can only be persisted with SaveAs.
func (s *Session) Create(size int64) error {
	b, err := buffer.New(size)
	if err != nil {
		return err
	}
	b.SetLogger(s.logger)
	if err := s.attach(b, ""); err != nil {
		_ = b.Close()
		return err
	}
	s.logger.Info("session created", "size", size)
	return nil
}

func (s *Session) attach(b *buffer.Buffer, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf != nil {
		if err := s.closeLocked(); err != nil {
			return err
		}
	}
	lg := history.New(s.opts.HistoryCap)
	lg.SetLogger(s.logger)
	s.buf = b
	s.log = lg
	s.path = path
	s.saves = 0
	s.diskFP = 0
	return nil
}

// Close releases the buffer and returns the session to Unopened. It fails
// with types.ErrUnsavedChanges while dirty and with types.ErrSaveInProgress
// while a save is running.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil {
		return types.ErrNotOpen
	}
	path := s.path
	if err := s.closeLocked(); err != nil {
		return err
	}
	s.logger.Info("session closed", "path", path)
	return nil
}

func (s *Session) closeLocked() error {
	if s.saving.Load() {
		return types.ErrSaveInProgress
	}
	if s.log.Dirty() {
		return types.ErrUnsavedChanges
	}
	path := s.path
	err := s.buf.Close()
	s.buf = nil
	s.log = nil
	s.path = ""
	if err != nil {
		return types.IOError("close", path, err)
	}
	return nil
}

// Discard drops every unsaved edit and the undo history. The buffer returns
// to the content of the last save, or to the opened content if it was never
// saved.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil {
		return types.ErrNotOpen
	}
	if s.saving.Load() {
		return types.ErrSaveInProgress
	}

	if s.saves == 0 {
		s.buf.Reset()
	} else {
		// The original snapshot predates the last save; reload what is on disk.
		b, err := buffer.Open(s.fs, s.path, buffer.OpenOptions{Mmap: s.opts.Mmap, Logger: s.logger})
		if err != nil {
			return err
		}
		if err := s.buf.Close(); err != nil {
			s.logger.Warn("release discarded buffer", "path", s.path, "error", err)
		}
		s.buf = b
		s.saves = 0
		s.diskFP = 0
	}
	s.log.Reset()
	s.logger.Info("session discarded edits", "path", s.path)
	return nil
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.buf == nil:
		return Unopened
	case s.log.Dirty():
		return Dirty
	default:
		return Clean
	}
}

// IsDirty reports whether there are edits not yet saved.
func (s *Session) IsDirty() bool { return s.State() == Dirty }

// Len returns the logical length, or 0 when Unopened.
func (s *Session) Len() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.buf == nil {
		return 0
	}
	return s.buf.Len()
}

// Path returns the file path, empty for untitled or Unopened sessions.
func (s *Session) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// CanUndo reports whether Undo would change anything.
func (s *Session) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log != nil && s.log.CanUndo()
}

// CanRedo reports whether Redo would change anything.
func (s *Session) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log != nil && s.log.CanRedo()
}

// Display returns the stored presentation options.
func (s *Session) Display() display.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts.Display
}

// SetDisplay replaces the stored presentation options.
func (s *Session) SetDisplay(o display.Options) {
	s.mu.Lock()
	s.opts.Display = o
	s.mu.Unlock()
}

// Read returns a copy of n effective bytes at off.
func (s *Session) Read(off, n int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.buf == nil {
		return nil, types.ErrNotOpen
	}
	return s.buf.Read(off, n)
}

// ModifiedRanges lists the logical ranges holding bytes that differ in
// origin from the opened file.
func (s *Session) ModifiedRanges() ([]types.Range, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.buf == nil {
		return nil, types.ErrNotOpen
	}
	return s.buf.ModifiedRanges(), nil
}

// Goto validates off as a cursor position in [0, Len].
func (s *Session) Goto(off int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.buf == nil {
		return types.ErrNotOpen
	}
	return buf.CheckRange(off, 0, s.buf.Len())
}

// Copy renders n bytes at off in format f, for a clipboard.
func (s *Session) Copy(off, n int64, f display.Format) (string, error) {
	data, err := s.Read(off, n)
	if err != nil {
		return "", err
	}
	return f.Encode(data), nil
}

// Snapshot returns a stable view of the current effective bytes, valid
// until Close or Discard.
func (s *Session) Snapshot() (*buffer.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.buf == nil {
		return nil, types.ErrNotOpen
	}
	return s.buf.Snapshot(), nil
}

// Dump writes n bytes at off to w using the session's display options.
func (s *Session) Dump(w io.Writer, off, n int64) error {
	s.mu.RLock()
	if s.buf == nil {
		s.mu.RUnlock()
		return types.ErrNotOpen
	}
	snap := s.buf.Snapshot()
	opts := s.opts.Display
	s.mu.RUnlock()

	if err := buf.CheckRange(off, n, snap.Len()); err != nil {
		return err
	}
	return display.Dump(w, snap, off, n, opts)
}

// -----------------------------------------------------------------------------
// Edits
// -----------------------------------------------------------------------------

// Write overwrites len(data) bytes at off. It never changes the length.
func (s *Session) Write(off int64, data []byte) error {
	return s.edit(func(b *buffer.Buffer) (buffer.Edit, error) { return b.Write(off, data) })
}

// Insert inserts data before off; off may equal Len.
func (s *Session) Insert(off int64, data []byte) error {
	return s.edit(func(b *buffer.Buffer) (buffer.Edit, error) { return b.Insert(off, data) })
}

// Delete removes n bytes at off.
func (s *Session) Delete(off, n int64) error {
	return s.edit(func(b *buffer.Buffer) (buffer.Edit, error) { return b.Delete(off, n) })
}

func (s *Session) edit(fn func(*buffer.Buffer) (buffer.Edit, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil {
		return types.ErrNotOpen
	}
	e, err := fn(s.buf)
	if err != nil {
		return err
	}
	if !e.Empty() {
		s.log.Record(e)
	}
	return nil
}

// Undo reverts the most recent applied edit. At the start of history it
// returns types.ErrNotAvailable and changes nothing.
func (s *Session) Undo() (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil {
		return Change{}, types.ErrNotOpen
	}
	e, err := s.log.Undo()
	if err != nil {
		return Change{}, err
	}
	if err := s.buf.Revert(e); err != nil {
		_, _ = s.log.Redo()
		return Change{}, fmt.Errorf("undo: %w", err)
	}
	return Change{Offset: e.Offset, Removed: int64(len(e.New)), Inserted: int64(len(e.Old))}, nil
}

// Redo re-applies the most recently undone edit. At the end of history it
// returns types.ErrNotAvailable and changes nothing.
func (s *Session) Redo() (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil {
		return Change{}, types.ErrNotOpen
	}
	e, err := s.log.Redo()
	if err != nil {
		return Change{}, err
	}
	if err := s.buf.Apply(e); err != nil {
		_, _ = s.log.Undo()
		return Change{}, fmt.Errorf("redo: %w", err)
	}
	return Change{Offset: e.Offset, Removed: int64(len(e.Old)), Inserted: int64(len(e.New))}, nil
}

// -----------------------------------------------------------------------------
// Search
// -----------------------------------------------------------------------------

func (s *Session) searchOptions() search.Options {
	return search.Options{ChunkSize: s.opts.SearchChunk}
}

func (s *Session) snapshotForSearch() (*buffer.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.buf == nil {
		return nil, types.ErrNotOpen
	}
	return s.buf.Snapshot(), nil
}

// Find starts a lazy scan for pattern from start in direction dir. The
// scanner sees the effective bytes as of this call; later edits do not
// affect it. It must not be used after Close or Discard.
func (s *Session) Find(pattern []byte, start int64, dir types.Direction) (*search.Scanner, error) {
	snap, err := s.snapshotForSearch()
	if err != nil {
		return nil, err
	}
	return search.Find(snap, pattern, start, dir, s.searchOptions())
}

// FindNext returns the first match at or after from (forward) or at or
// before from (backward), wrapping around the ends when wrap is set. It returns
// types.ErrNotFound when the pattern does not occur.
func (s *Session) FindNext(ctx context.Context, pattern []byte, from int64, dir types.Direction, wrap bool) (int64, error) {
	snap, err := s.snapshotForSearch()
	if err != nil {
		return 0, err
	}
	return search.FindNext(ctx, snap, pattern, from, dir, wrap, s.searchOptions())
}

// Count returns the number of (possibly overlapping) matches of pattern.
func (s *Session) Count(ctx context.Context, pattern []byte) (int, error) {
	snap, err := s.snapshotForSearch()
	if err != nil {
		return 0, err
	}
	return search.Count(ctx, snap, pattern, s.searchOptions())
}
