// Package search scans the effective bytes of a buffer for a byte pattern.
//
// A Scanner produces matches lazily, one window at a time, so finding the
// first occurrence of a rare pattern in a huge file does not wait for the
// whole file to be scanned. Overlapping matches are reported. A scan can be
// resumed by starting a new Scanner at last+1 (forward) or last-1 (backward).
//
// The source is read through io.ReaderAt; pass a buffer.Buffer to see unsaved
// edits, or a buffer.Snapshot for a stable view.
package search

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"

	"github.com/joshuapare/hexkit/pkg/types"
)

// DefaultChunkSize is the window size used when Options.ChunkSize is zero.
const DefaultChunkSize = 64 << 10

// ErrDone is returned by Scanner.Next when no further match exists.
var ErrDone = errors.New("search: no more matches")

// Source is the byte sequence being searched.
type Source interface {
	io.ReaderAt
	Len() int64
}

// Options configures a scan.
type Options struct {
	// ChunkSize is the number of candidate start positions examined per
	// window. Each window reads ChunkSize+len(pattern)-1 bytes. The context
	// is checked once per window.
	ChunkSize int
}

// DefaultOptions returns the default scan options.
func DefaultOptions() Options {
	return Options{ChunkSize: DefaultChunkSize}
}

// Scanner yields matches of one pattern in one direction.
type Scanner struct {
	src     Source
	pattern []byte
	dir     types.Direction
	chunk   int64

	pos  int64 // next candidate start; forward: smallest, backward: largest
	done bool

	win      []byte // cached window
	winStart int64
}

// Find prepares a lazy scan for pattern starting at start.
//
// Forward scans yield matches beginning at or after start in ascending order;
// backward scans yield matches beginning at or before start in descending
// order. start must lie in [0, src.Len()]. An empty pattern is rejected with
// types.ErrInvalidPattern.
func Find(src Source, pattern []byte, start int64, dir types.Direction, opts Options) (*Scanner, error) {
	if len(pattern) == 0 {
		return nil, types.PatternError("empty search pattern")
	}
	size := src.Len()
	if start < 0 || start > size {
		return nil, types.RangeError(start, 0, size)
	}
	chunk := int64(opts.ChunkSize)
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	s := &Scanner{
		src:     src,
		pattern: bytes.Clone(pattern),
		dir:     dir,
		chunk:   chunk,
		pos:     start,
	}
	if last := size - int64(len(pattern)); dir == types.Backward && s.pos > last {
		s.pos = last
	}
	return s, nil
}

// Next returns the offset of the next match, ErrDone when the scan is
// exhausted, or the context error if ctx is cancelled between windows.
func (s *Scanner) Next(ctx context.Context) (int64, error) {
	if s.done {
		return 0, ErrDone
	}
	var (
		off int64
		err error
	)
	if s.dir == types.Backward {
		off, err = s.nextBackward(ctx)
	} else {
		off, err = s.nextForward(ctx)
	}
	if errors.Is(err, ErrDone) {
		s.done = true
		s.win = nil
	}
	return off, err
}

// All returns an iterator over the remaining matches. Iteration stops at the
// first error, which is yielded with a zero offset. ErrDone is not yielded.
func (s *Scanner) All(ctx context.Context) iter.Seq2[int64, error] {
	return func(yield func(int64, error) bool) {
		for {
			off, err := s.Next(ctx)
			if errors.Is(err, ErrDone) {
				return
			}
			if err != nil {
				yield(0, err)
				return
			}
			if !yield(off, nil) {
				return
			}
		}
	}
}

// Pattern returns the pattern being searched for.
func (s *Scanner) Pattern() []byte { return s.pattern }

func (s *Scanner) covers(pos int64) bool {
	m := int64(len(s.pattern))
	return s.win != nil && pos >= s.winStart && pos+m <= s.winStart+int64(len(s.win))
}

func (s *Scanner) load(start, end int64) error {
	n := end - start
	if int64(cap(s.win)) < n {
		s.win = make([]byte, n)
	}
	s.win = s.win[:n]
	s.winStart = start
	got, err := s.src.ReadAt(s.win, start)
	if int64(got) == n {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func (s *Scanner) nextForward(ctx context.Context) (int64, error) {
	m := int64(len(s.pattern))
	size := s.src.Len()
	for s.pos+m <= size {
		if !s.covers(s.pos) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			end := min(size, s.pos+s.chunk+m-1)
			if err := s.load(s.pos, end); err != nil {
				return 0, err
			}
		}
		rel := s.pos - s.winStart
		if i := bytes.Index(s.win[rel:], s.pattern); i >= 0 {
			off := s.pos + int64(i)
			s.pos = off + 1
			return off, nil
		}
		// Every start up to winEnd-m has been examined.
		s.pos = s.winStart + int64(len(s.win)) - m + 1
	}
	return 0, ErrDone
}

func (s *Scanner) nextBackward(ctx context.Context) (int64, error) {
	m := int64(len(s.pattern))
	for s.pos >= 0 {
		if !s.covers(s.pos) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			end := s.pos + m
			start := max(0, end-(s.chunk+m-1))
			if err := s.load(start, end); err != nil {
				return 0, err
			}
		}
		end := s.pos + m - s.winStart
		if i := bytes.LastIndex(s.win[:end], s.pattern); i >= 0 {
			off := s.winStart + int64(i)
			s.pos = off - 1
			return off, nil
		}
		// Every start from winStart up to pos has been examined.
		s.pos = s.winStart - 1
	}
	return 0, ErrDone
}

// FindNext returns the first match starting from from in direction dir.
// With wrap set, a forward search that reaches the end continues from the
// start and a backward search that reaches the start continues from the end.
// It returns types.ErrNotFound when the pattern does not occur.
func FindNext(ctx context.Context, src Source, pattern []byte, from int64, dir types.Direction, wrap bool, opts Options) (int64, error) {
	s, err := Find(src, pattern, from, dir, opts)
	if err != nil {
		return 0, err
	}
	off, err := s.Next(ctx)
	if err == nil {
		return off, nil
	}
	if !errors.Is(err, ErrDone) {
		return 0, err
	}
	if wrap {
		restart := int64(0)
		if dir == types.Backward {
			restart = src.Len()
		}
		s, err = Find(src, pattern, restart, dir, opts)
		if err != nil {
			return 0, err
		}
		off, err = s.Next(ctx)
		if err == nil {
			return off, nil
		}
		if !errors.Is(err, ErrDone) {
			return 0, err
		}
	}
	return 0, types.ErrNotFound
}

// Count returns the number of (possibly overlapping) matches in src.
func Count(ctx context.Context, src Source, pattern []byte, opts Options) (int, error) {
	s, err := Find(src, pattern, 0, types.Forward, opts)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, err := range s.All(ctx) {
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
