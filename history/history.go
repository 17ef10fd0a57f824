// Package history provides the bounded undo/redo log of buffer edits.
//
// The log is an ordered list of edits plus a cursor: edits before the cursor
// are applied, edits at or after it can be redone. Recording a new edit drops
// the redo tail; branching history is not kept.
//
// Every recorded edit gets a serial number. A Mark names the state reached
// after a given edit, which lets the owner remember where the last save
// happened and compare it with the current state in O(1), even after
// eviction or after the saved state was discarded from the redo tail.
//
// NOT thread-safe. Only one goroutine should use a Log at a time.
package history

import (
	"log/slog"

	"github.com/joshuapare/hexkit/buffer"
	"github.com/joshuapare/hexkit/pkg/types"
)

// DefaultCap is the history length used when a non-positive cap is given.
const DefaultCap = 10000

// Mark identifies the buffer state reached after one specific edit. The zero
// Mark is the state before any edit was recorded.
type Mark uint64

type entry struct {
	edit   buffer.Edit
	serial uint64
}

// Log is an ordered, bounded history of edits with a cursor.
type Log struct {
	entries    []entry
	cursor     int    // entries[:cursor] are applied
	capacity   int    // maximum number of entries kept
	next       uint64 // serial for the next recorded edit
	baseSerial uint64 // serial of the newest evicted edit (0 if none)
	evicted    int64
	saved      Mark
	logger     *slog.Logger
}

// New creates an empty log keeping at most capacity edits.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Log{
		capacity: capacity,
		next:     1,
		logger:   slog.New(slog.DiscardHandler),
	}
}

// SetLogger replaces the debug logger. Nil discards.
func (l *Log) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l.logger = logger
}

// Record appends e after the cursor, discarding any redoable edits, and
// advances the cursor. When the log is full the oldest edit is evicted and
// can no longer be undone.
func (l *Log) Record(e buffer.Edit) {
	if dropped := len(l.entries) - l.cursor; dropped > 0 {
		clear(l.entries[l.cursor:])
		l.entries = l.entries[:l.cursor]
		l.logger.Debug("history redo tail dropped", "count", dropped)
	}

	l.entries = append(l.entries, entry{edit: e, serial: l.next})
	l.next++
	l.cursor++

	if len(l.entries) > l.capacity {
		oldest := l.entries[0]
		l.entries[0] = entry{}
		l.entries = l.entries[1:]
		l.cursor--
		l.baseSerial = oldest.serial
		l.evicted++
		l.logger.Debug("history evicted oldest edit", "edit", oldest.edit.String(), "evicted", l.evicted)
	}
}

// Undo moves the cursor back and returns the edit to revert. At the start of
// history it returns types.ErrNotAvailable.
func (l *Log) Undo() (buffer.Edit, error) {
	if l.cursor == 0 {
		return buffer.Edit{}, types.ErrNotAvailable
	}
	l.cursor--
	return l.entries[l.cursor].edit, nil
}

// Redo returns the edit at the cursor and moves the cursor forward. At the
// end of history it returns types.ErrNotAvailable.
func (l *Log) Redo() (buffer.Edit, error) {
	if l.cursor == len(l.entries) {
		return buffer.Edit{}, types.ErrNotAvailable
	}
	e := l.entries[l.cursor].edit
	l.cursor++
	return e, nil
}

// Current returns the Mark of the present state.
func (l *Log) Current() Mark {
	if l.cursor == 0 {
		return Mark(l.baseSerial)
	}
	return Mark(l.entries[l.cursor-1].serial)
}

// MarkSaved records the present state as the saved state.
func (l *Log) MarkSaved() { l.saved = l.Current() }

// SetSaved records m as the saved state. Used when a save wrote a state
// captured earlier than the present one.
func (l *Log) SetSaved(m Mark) { l.saved = m }

// Saved returns the Mark of the last saved state.
func (l *Log) Saved() Mark { return l.saved }

// Dirty reports whether the present state differs from the saved one.
func (l *Log) Dirty() bool { return l.Current() != l.saved }

// CanUndo reports whether Undo would succeed.
func (l *Log) CanUndo() bool { return l.cursor > 0 }

// CanRedo reports whether Redo would succeed.
func (l *Log) CanRedo() bool { return l.cursor < len(l.entries) }

// Len returns the number of edits kept (applied and redoable).
func (l *Log) Len() int { return len(l.entries) }

// Cursor returns the number of applied edits kept in the log.
func (l *Log) Cursor() int { return l.cursor }

// Cap returns the maximum number of edits kept.
func (l *Log) Cap() int { return l.capacity }

// Evicted returns how many edits were dropped because the log was full.
func (l *Log) Evicted() int64 { return l.evicted }

// Reset forgets every edit and treats the present state as saved.
func (l *Log) Reset() {
	clear(l.entries)
	l.entries = l.entries[:0]
	l.cursor = 0
	l.baseSerial = 0
	l.evicted = 0
	l.saved = 0
}
