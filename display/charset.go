package display

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/encoding/charmap"
)

// Charset decodes bytes for the text column of a dump.
type Charset int

const (
	ASCII Charset = iota
	Latin1
	CP437
	Windows1252
)

// Placeholder replaces bytes with no single-cell printable glyph.
const Placeholder = '.'

func (c Charset) String() string {
	switch c {
	case ASCII:
		return "ascii"
	case Latin1:
		return "latin1"
	case CP437:
		return "cp437"
	case Windows1252:
		return "windows-1252"
	default:
		return fmt.Sprintf("charset(%d)", int(c))
	}
}

// ParseCharset accepts the names produced by Charset.String plus a few
// common aliases.
func ParseCharset(s string) (Charset, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ascii":
		return ASCII, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return Latin1, nil
	case "cp437", "ibm437":
		return CP437, nil
	case "windows-1252", "windows1252", "cp1252":
		return Windows1252, nil
	default:
		return 0, fmt.Errorf("unknown charset %q", s)
	}
}

var glyphTables = sync.OnceValue(func() [4][256]rune {
	var t [4][256]rune
	maps := [4]*charmap.Charmap{nil, charmap.ISO8859_1, charmap.CodePage437, charmap.Windows1252}
	for cs, cm := range maps {
		for i := range 256 {
			r := rune(i)
			if cm != nil {
				r = cm.DecodeByte(byte(i))
			} else if i > 0x7e {
				r = Placeholder
			}
			t[cs][i] = printable(r)
		}
	}
	return t
})

// narrow measures cells without East Asian ambiguous widening, so the
// column layout does not depend on the locale.
var narrow = &runewidth.Condition{}

// printable keeps r only when it draws as exactly one terminal cell.
func printable(r rune) rune {
	if r == utf8.RuneError || !unicode.IsPrint(r) || narrow.RuneWidth(r) != 1 {
		return Placeholder
	}
	return r
}

// Glyph returns the single-cell rune shown for b.
func (c Charset) Glyph(b byte) rune {
	if c < ASCII || c > Windows1252 {
		c = ASCII
	}
	return glyphTables()[c][b]
}

// Text renders b as one glyph per byte.
func (c Charset) Text(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, x := range b {
		sb.WriteRune(c.Glyph(x))
	}
	return sb.String()
}
