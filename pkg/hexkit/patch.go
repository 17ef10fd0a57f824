package hexkit

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/joshuapare/hexkit/display"
	"github.com/joshuapare/hexkit/pkg/types"
	"github.com/joshuapare/hexkit/session"
)

// PatchKind selects what a PatchOp does.
type PatchKind int

const (
	// PatchWrite overwrites len(Data) bytes at Offset.
	PatchWrite PatchKind = iota
	// PatchInsert inserts Data before Offset.
	PatchInsert
	// PatchDelete removes Length bytes at Offset.
	PatchDelete
)

func (k PatchKind) String() string {
	switch k {
	case PatchInsert:
		return "insert"
	case PatchDelete:
		return "delete"
	default:
		return "write"
	}
}

// PatchOp is one edit. Offsets refer to the file as modified by the
// preceding ops.
type PatchOp struct {
	Kind   PatchKind
	Offset int64
	Data   []byte
	Length int64 // PatchDelete only
}

func (op PatchOp) String() string {
	if op.Kind == PatchDelete {
		return fmt.Sprintf("%s %d@0x%x", op.Kind, op.Length, op.Offset)
	}
	return fmt.Sprintf("%s %d@0x%x", op.Kind, len(op.Data), op.Offset)
}

// PatchResult reports the outcome of Patch.
type PatchResult struct {
	Path     string        `json:"path"`
	Applied  int           `json:"applied"`
	Size     int64         `json:"size"` // logical length after all ops
	Modified []types.Range `json:"modified"`
	Saved    bool          `json:"saved"`
}

// ParsePatch parses the textual patch forms accepted by the CLI:
//
//	OFFSET=HEX   overwrite bytes at OFFSET
//	OFFSET+HEX   insert bytes before OFFSET
//	OFFSET-N     delete N bytes at OFFSET
//
// OFFSET and N accept decimal or 0x-prefixed hex.
func ParsePatch(s string) (PatchOp, error) {
	i := strings.IndexAny(s, "=+-")
	if i <= 0 {
		return PatchOp{}, fmt.Errorf("invalid patch %q: want OFFSET=HEX, OFFSET+HEX or OFFSET-N", s)
	}
	off, err := ParseOffset(s[:i])
	if err != nil {
		return PatchOp{}, fmt.Errorf("invalid patch %q: %w", s, err)
	}
	rest := s[i+1:]

	switch s[i] {
	case '-':
		n, err := ParseOffset(rest)
		if err != nil {
			return PatchOp{}, fmt.Errorf("invalid patch %q: %w", s, err)
		}
		return PatchOp{Kind: PatchDelete, Offset: off, Length: n}, nil
	default:
		data, err := display.ParseHex(rest)
		if err != nil {
			return PatchOp{}, fmt.Errorf("invalid patch %q: %w", s, err)
		}
		kind := PatchWrite
		if s[i] == '+' {
			kind = PatchInsert
		}
		return PatchOp{Kind: kind, Offset: off, Data: data}, nil
	}
}

// ParseOffset parses a non-negative decimal or 0x-prefixed offset.
func ParseOffset(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative offset %q", s)
	}
	return v, nil
}

// Patch applies ops to the file at path in order and saves the result
// atomically. If any op fails nothing is written.
func Patch(ctx context.Context, path string, ops []PatchOp, opts *OperationOptions) (PatchResult, error) {
	opts = opts.orDefault()
	s := session.New(session.Options{
		Fs:     opts.Fs,
		Logger: opts.Logger,
		Mmap:   opts.Mmap,
		Sync:   opts.Sync,
		Backup: opts.CreateBackup,
	})
	if err := s.Open(path); err != nil {
		return PatchResult{}, err
	}
	defer func() {
		// Dry runs and failed batches leave edits behind.
		if s.IsDirty() {
			_ = s.Discard()
		}
		_ = s.Close()
	}()

	res := PatchResult{Path: path}
	for i, op := range ops {
		var err error
		switch op.Kind {
		case PatchInsert:
			err = s.Insert(op.Offset, op.Data)
		case PatchDelete:
			err = s.Delete(op.Offset, op.Length)
		default:
			err = s.Write(op.Offset, op.Data)
		}
		if err != nil {
			return res, fmt.Errorf("patch %d (%s): %w", i, op, err)
		}
		res.Applied++
	}

	res.Size = s.Len()
	modified, err := s.ModifiedRanges()
	if err != nil {
		return res, err
	}
	res.Modified = modified

	if opts.DryRun || !s.IsDirty() {
		return res, nil
	}
	if err := s.Save(ctx); err != nil {
		return res, fmt.Errorf("failed to save %s: %w", path, err)
	}
	res.Saved = true
	return res, nil
}
