package buffer

import (
	"io"
	"slices"
	"sort"

	"github.com/joshuapare/hexkit/internal/buf"
	"github.com/joshuapare/hexkit/pkg/types"
)

type origin uint8

const (
	fromOriginal origin = iota
	fromAdd
)

// piece is a span of one backing region.
type piece struct {
	src origin
	off int64 // offset within the backing region
	n   int64 // length in bytes
}

// view is the read side of the piece table. Buffer mutates it in place;
// Snapshot holds a private copy of the piece list over the same backing
// regions.
type view struct {
	original []byte
	add      []byte
	pieces   []piece
	starts   []int64 // logical start offset of pieces[i]
	size     int64
}

func (v *view) backing(p piece) []byte {
	if p.src == fromAdd {
		return v.add[p.off : p.off+p.n]
	}
	return v.original[p.off : p.off+p.n]
}

// Len returns the logical length in O(1).
func (v *view) Len() int64 { return v.size }

// locate returns the index of the piece containing logical offset off.
// off must be in [0, size).
func (v *view) locate(off int64) int {
	return sort.Search(len(v.starts), func(i int) bool { return v.starts[i] > off }) - 1
}

// copyOut fills dst with effective bytes starting at off. The caller has
// already checked the range.
func (v *view) copyOut(dst []byte, off int64) {
	if len(dst) == 0 {
		return
	}
	i := v.locate(off)
	rel := off - v.starts[i]
	for n := 0; n < len(dst); i++ {
		src := v.backing(v.pieces[i])[rel:]
		n += copy(dst[n:], src)
		rel = 0
	}
}

// Read returns a copy of the effective bytes in [off, off+n).
func (v *view) Read(off, n int64) ([]byte, error) {
	if err := buf.CheckRange(off, n, v.size); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	v.copyOut(out, off)
	return out, nil
}

// ByteAt returns the effective byte at off.
func (v *view) ByteAt(off int64) (byte, error) {
	if off < 0 || off >= v.size {
		return 0, types.RangeError(off, 1, v.size)
	}
	i := v.locate(off)
	p := v.pieces[i]
	return v.backing(p)[off-v.starts[i]], nil
}

// ReadAt implements io.ReaderAt over the effective bytes.
func (v *view) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, types.RangeError(off, int64(len(p)), v.size)
	}
	if off >= v.size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := buf.Clamp(off, int64(len(p)), v.size)
	v.copyOut(p[:n], off)
	if n < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

// WriteTo streams the effective bytes to w, piece by piece.
func (v *view) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, p := range v.pieces {
		n, err := w.Write(v.backing(p))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Pieces returns the number of pieces in the table.
func (v *view) Pieces() int { return len(v.pieces) }

// ModifiedRanges returns sorted, non-overlapping logical ranges whose bytes
// differ in provenance from the original, i.e. come from edits. Adjacent
// ranges are merged.
func (v *view) ModifiedRanges() []types.Range {
	var out []types.Range
	for i, p := range v.pieces {
		if p.src != fromAdd {
			continue
		}
		r := types.Range{Off: v.starts[i], Len: p.n}
		if k := len(out) - 1; k >= 0 && out[k].End() == r.Off {
			out[k].Len += r.Len
			continue
		}
		out = append(out, r)
	}
	return out
}

func (v *view) resetPieces() {
	v.size = int64(len(v.original))
	v.pieces = v.pieces[:0]
	v.starts = v.starts[:0]
	if v.size > 0 {
		v.pieces = append(v.pieces, piece{src: fromOriginal, off: 0, n: v.size})
		v.starts = append(v.starts, 0)
	}
}

// split makes sure a piece boundary exists at logical offset pos and returns
// the index of the first piece starting at or after pos.
func (v *view) split(pos int64) int {
	if pos >= v.size {
		return len(v.pieces)
	}
	i := v.locate(pos)
	rel := pos - v.starts[i]
	if rel == 0 {
		return i
	}
	p := v.pieces[i]
	left := piece{src: p.src, off: p.off, n: rel}
	right := piece{src: p.src, off: p.off + rel, n: p.n - rel}
	v.pieces[i] = left
	v.pieces = slices.Insert(v.pieces, i+1, right)
	v.starts = slices.Insert(v.starts, i+1, pos)
	return i + 1
}

// splice replaces the pieces covering [off, off+n) with ins and returns the
// removed pieces. The range has been validated by the caller.
func (v *view) splice(off, n int64, ins []piece) []piece {
	i := v.split(off)
	j := v.split(off + n)
	removed := slices.Clone(v.pieces[i:j])

	v.pieces = slices.Replace(v.pieces, i, j, ins...)
	var added int64
	for _, p := range ins {
		added += p.n
	}
	v.size += added - n
	v.normalize()
	return removed
}

// normalize drops empty pieces, merges neighbours that are contiguous in the
// same backing region and rebuilds the start index.
func (v *view) normalize() {
	out := v.pieces[:0]
	for _, p := range v.pieces {
		if p.n == 0 {
			continue
		}
		if k := len(out) - 1; k >= 0 && out[k].src == p.src && out[k].off+out[k].n == p.off {
			out[k].n += p.n
			continue
		}
		out = append(out, p)
	}
	v.pieces = out

	v.starts = v.starts[:0]
	var pos int64
	for _, p := range v.pieces {
		v.starts = append(v.starts, pos)
		pos += p.n
	}
}

// Snapshot is an immutable view of a Buffer at one point in time. It stays
// valid while the Buffer keeps changing, until the Buffer is closed.
type Snapshot struct {
	view
}

// Snapshot captures the current effective content in O(pieces).
func (b *Buffer) Snapshot() *Snapshot {
	return &Snapshot{view: view{
		original: b.original,
		add:      b.add,
		pieces:   slices.Clone(b.pieces),
		starts:   slices.Clone(b.starts),
		size:     b.size,
	}}
}
