package display

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/joshuapare/hexkit/pkg/types"
)

const (
	DefaultBytesPerRow = 16
	DefaultGroup       = 1
	maxBytesPerRow     = 256
)

// Options is presentation configuration. The editing core stores it and
// hands it back; it has no effect on buffer contents.
type Options struct {
	BytesPerRow int     // bytes rendered per dump row
	Group       int     // bytes per space-separated hex group
	Format      Format  // default copy/dump representation
	Charset     Charset // text column decoding
	Hint        string  // free-form format hint from the caller, never interpreted
}

// DefaultOptions returns 16 bytes per row, ungrouped hex, ASCII text.
func DefaultOptions() Options {
	return Options{
		BytesPerRow: DefaultBytesPerRow,
		Group:       DefaultGroup,
		Format:      Hex,
		Charset:     ASCII,
	}
}

func (o Options) normalized() Options {
	if o.BytesPerRow <= 0 {
		o.BytesPerRow = DefaultBytesPerRow
	}
	o.BytesPerRow = min(o.BytesPerRow, maxBytesPerRow)
	if o.Group <= 0 || o.Group > o.BytesPerRow {
		o.Group = DefaultGroup
	}
	return o
}

// Row is one dump line: the bytes starting at Offset.
type Row struct {
	Offset int64
	Data   []byte
}

// Rows yields rows covering [off, off+n) of src. Data slices are fresh per
// row and may be retained.
func Rows(src io.ReaderAt, off, n int64, opts Options) iter.Seq2[Row, error] {
	opts = opts.normalized()
	return func(yield func(Row, error) bool) {
		if off < 0 || n < 0 {
			yield(Row{}, types.RangeError(off, n, 0))
			return
		}
		end := off + n
		for pos := off; pos < end; {
			size := min(int64(opts.BytesPerRow), end-pos)
			data := make([]byte, size)
			got, err := src.ReadAt(data, pos)
			if got > 0 && !yield(Row{Offset: pos, Data: data[:got]}, nil) {
				return
			}
			if int64(got) < size {
				if err != nil && !errors.Is(err, io.EOF) {
					yield(Row{}, err)
				}
				return
			}
			pos += size
		}
	}
}

// FormatRow renders r as "oooooooo  hh hh ...  |text|". Short rows are
// padded so the text column stays aligned.
func (o Options) FormatRow(r Row) string {
	o = o.normalized()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%08x  ", r.Offset)
	for i := range o.BytesPerRow {
		if i > 0 && i%o.Group == 0 {
			sb.WriteByte(' ')
		}
		if i < len(r.Data) {
			c := r.Data[i]
			sb.WriteByte(hexDigits[c>>4])
			sb.WriteByte(hexDigits[c&0x0f])
		} else {
			sb.WriteString("  ")
		}
	}
	sb.WriteString("  |")
	sb.WriteString(o.Charset.Text(r.Data))
	sb.WriteByte('|')
	return sb.String()
}

// Dump writes [off, off+n) of src to w. Hex produces canonical rows,
// HexStream one run of hex digits per row, Raw the bytes themselves.
func Dump(w io.Writer, src io.ReaderAt, off, n int64, opts Options) error {
	opts = opts.normalized()
	for row, err := range Rows(src, off, n, opts) {
		if err != nil {
			return err
		}
		var werr error
		switch opts.Format {
		case Raw:
			_, werr = w.Write(row.Data)
		case HexStream:
			_, werr = io.WriteString(w, HexStream.Encode(row.Data)+"\n")
		default:
			_, werr = io.WriteString(w, opts.FormatRow(row)+"\n")
		}
		if werr != nil {
			return werr
		}
	}
	return nil
}
