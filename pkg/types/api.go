package types

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Typed Errors (stable categories for programmatic handling)
// -----------------------------------------------------------------------------

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindIO           ErrKind = iota // open/save failures (permission, disk full, rename)
	ErrKindRange                       // offset or length beyond the logical length
	ErrKindPattern                     // empty or malformed search pattern
	ErrKindNotAvailable                // undo/redo at a history boundary
	ErrKindNotFound                    // search term absent
	ErrKindState                       // invalid operation for the session state
	ErrKindConflict                    // on-disk file changed under an open session
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindIO:
		return "io"
	case ErrKindRange:
		return "range"
	case ErrKindPattern:
		return "pattern"
	case ErrKindNotAvailable:
		return "not-available"
	case ErrKindNotFound:
		return "not-found"
	case ErrKindState:
		return "state"
	case ErrKindConflict:
		return "conflict"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error // optional underlying cause
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Sentinels commonly returned by implementations. Errors built by the
// constructors below wrap one of these, so errors.Is works on the sentinel.
var (
	// ErrIO indicates a filesystem failure while opening or saving.
	ErrIO = &Error{Kind: ErrKindIO, Msg: "i/o error"}
	// ErrOutOfRange indicates an offset/length outside [0, Len()).
	ErrOutOfRange = &Error{Kind: ErrKindRange, Msg: "offset out of range"}
	// ErrInvalidPattern indicates an empty or malformed search pattern.
	ErrInvalidPattern = &Error{Kind: ErrKindPattern, Msg: "invalid search pattern"}
	// ErrNotAvailable is returned by undo/redo at a history boundary. It is a
	// reported no-op, not a failure.
	ErrNotAvailable = &Error{Kind: ErrKindNotAvailable, Msg: "nothing to undo or redo"}
	// ErrNotFound indicates the search term does not occur.
	ErrNotFound = &Error{Kind: ErrKindNotFound, Msg: "search term not found"}
	// ErrNotOpen indicates an operation on a session without an open buffer.
	ErrNotOpen = &Error{Kind: ErrKindState, Msg: "no file is open"}
	// ErrUnsavedChanges is returned by Close while the session is dirty.
	ErrUnsavedChanges = &Error{Kind: ErrKindState, Msg: "unsaved changes"}
	// ErrSaveInProgress rejects a second concurrent save on one session.
	ErrSaveInProgress = &Error{Kind: ErrKindState, Msg: "save already in progress"}
	// ErrNoPath indicates Save on an untitled buffer; use SaveAs.
	ErrNoPath = &Error{Kind: ErrKindState, Msg: "buffer has no file path"}
	// ErrExternalChange indicates the target file no longer matches the
	// snapshot the buffer was opened from.
	ErrExternalChange = &Error{Kind: ErrKindConflict, Msg: "file changed on disk since it was opened"}
)

// IOError wraps a filesystem failure. Both ErrIO and cause stay reachable
// through errors.Is.
func IOError(op, path string, cause error) error {
	return &Error{
		Kind: ErrKindIO,
		Msg:  fmt.Sprintf("%s %s", op, path),
		Err:  fmt.Errorf("%w: %w", ErrIO, cause),
	}
}

// RangeError reports the range [off, off+n) against a logical length.
func RangeError(off, n, length int64) error {
	return &Error{
		Kind: ErrKindRange,
		Msg:  fmt.Sprintf("range [%d, %d+%d) exceeds length %d", off, off, n, length),
		Err:  ErrOutOfRange,
	}
}

// PatternError reports why a search pattern was rejected.
func PatternError(reason string) error {
	return &Error{Kind: ErrKindPattern, Msg: reason, Err: ErrInvalidPattern}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrKind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return 0, false
}

// -----------------------------------------------------------------------------
// Shared enums
// -----------------------------------------------------------------------------

// Direction selects the scan order of a search.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// EditKind distinguishes length-preserving overwrites from splices.
type EditKind int

const (
	EditWrite  EditKind = iota // overwrite, logical length unchanged
	EditSplice                 // insert and/or delete, length may change
)

func (k EditKind) String() string {
	if k == EditSplice {
		return "splice"
	}
	return "write"
}

// Range is a half-open logical byte range [Off, Off+Len).
type Range struct {
	Off int64
	Len int64
}

// End returns Off+Len.
func (r Range) End() int64 { return r.Off + r.Len }
