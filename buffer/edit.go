package buffer

import (
	"fmt"

	"github.com/joshuapare/hexkit/internal/buf"
	"github.com/joshuapare/hexkit/pkg/types"
)

// Edit is a single reversible mutation. Old is captured when the edit is
// made, so reverting never has to consult the file again. Edits are
// immutable once returned.
type Edit struct {
	Kind   types.EditKind
	Offset int64
	Old    []byte // bytes removed at Offset
	New    []byte // bytes inserted at Offset

	removed  []piece
	inserted []piece
}

// Empty reports whether the edit changed nothing structurally.
func (e Edit) Empty() bool { return len(e.Old) == 0 && len(e.New) == 0 }

// Delta returns the change in logical length caused by the edit.
func (e Edit) Delta() int64 { return int64(len(e.New)) - int64(len(e.Old)) }

func (e Edit) String() string {
	return fmt.Sprintf("%s@%d -%d +%d", e.Kind, e.Offset, len(e.Old), len(e.New))
}

// Write overwrites len(data) bytes at off. It never grows the buffer: every
// covered offset must be below Len.
func (b *Buffer) Write(off int64, data []byte) (Edit, error) {
	n := int64(len(data))
	if err := buf.CheckRange(off, n, b.size); err != nil {
		return Edit{}, err
	}
	return b.replace(types.EditWrite, off, n, data)
}

// Insert inserts data before logical offset off. off may equal Len.
func (b *Buffer) Insert(off int64, data []byte) (Edit, error) {
	if err := buf.CheckRange(off, 0, b.size); err != nil {
		return Edit{}, err
	}
	return b.replace(types.EditSplice, off, 0, data)
}

// Delete removes n bytes starting at off.
func (b *Buffer) Delete(off, n int64) (Edit, error) {
	if err := buf.CheckRange(off, n, b.size); err != nil {
		return Edit{}, err
	}
	return b.replace(types.EditSplice, off, n, nil)
}

// Replace removes n bytes at off and inserts data in their place.
func (b *Buffer) Replace(off, n int64, data []byte) (Edit, error) {
	if err := buf.CheckRange(off, n, b.size); err != nil {
		return Edit{}, err
	}
	return b.replace(types.EditSplice, off, n, data)
}

func (b *Buffer) replace(kind types.EditKind, off, n int64, data []byte) (Edit, error) {
	e := Edit{Kind: kind, Offset: off}
	if n == 0 && len(data) == 0 {
		return e, nil
	}

	old := make([]byte, n)
	b.copyOut(old, off)
	e.Old = old

	if len(data) > 0 {
		start := int64(len(b.add))
		b.add = append(b.add, data...)
		e.New = b.add[start:len(b.add):len(b.add)]
		e.inserted = []piece{{src: fromAdd, off: start, n: int64(len(data))}}
	}

	e.removed = b.splice(off, n, e.inserted)
	b.logger.Debug("buffer edit", "edit", e.String(), "pieces", len(b.pieces), "len", b.size)
	return e, nil
}

// Revert undoes e. It must be the most recent edit still applied.
func (b *Buffer) Revert(e Edit) error {
	if e.Empty() {
		return nil
	}
	if err := buf.CheckRange(e.Offset, int64(len(e.New)), b.size); err != nil {
		return fmt.Errorf("revert %s: %w", e, err)
	}
	b.splice(e.Offset, int64(len(e.New)), e.removed)
	return nil
}

// Apply re-applies a previously reverted e.
func (b *Buffer) Apply(e Edit) error {
	if e.Empty() {
		return nil
	}
	if err := buf.CheckRange(e.Offset, int64(len(e.Old)), b.size); err != nil {
		return fmt.Errorf("apply %s: %w", e, err)
	}
	b.splice(e.Offset, int64(len(e.Old)), e.inserted)
	return nil
}
