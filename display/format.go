package display

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"github.com/joshuapare/hexkit/pkg/types"
)

// Format selects how a byte selection is rendered as text.
type Format int

const (
	// Hex renders space separated pairs: "30 31 32".
	Hex Format = iota
	// HexStream renders contiguous pairs: "303132".
	HexStream
	// Raw renders the bytes unchanged.
	Raw
)

func (f Format) String() string {
	switch f {
	case Hex:
		return "hex"
	case HexStream:
		return "hex-stream"
	case Raw:
		return "raw"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat accepts the names produced by Format.String.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hex":
		return Hex, nil
	case "hex-stream", "hexstream", "stream":
		return HexStream, nil
	case "raw", "bytes":
		return Raw, nil
	default:
		return 0, fmt.Errorf("unknown format %q", s)
	}
}

// Encode renders b in format f.
func (f Format) Encode(b []byte) string {
	switch f {
	case HexStream:
		return hex.EncodeToString(b)
	case Raw:
		return string(b)
	default:
		if len(b) == 0 {
			return ""
		}
		var sb strings.Builder
		sb.Grow(len(b)*3 - 1)
		for i, c := range b {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteByte(hexDigits[c>>4])
			sb.WriteByte(hexDigits[c&0x0f])
		}
		return sb.String()
	}
}

const hexDigits = "0123456789abcdef"

// ParseHex parses hex digits into bytes. Whitespace, commas and colons
// separate tokens; each token may carry a 0x prefix. Every token must hold
// an even number of digits.
func ParseHex(s string) ([]byte, error) {
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ':'
	})
	var out []byte
	for _, tok := range tokens {
		tok = strings.TrimPrefix(strings.TrimPrefix(tok, "0x"), "0X")
		if len(tok)%2 != 0 {
			return nil, types.PatternError(fmt.Sprintf("odd number of hex digits in %q", tok))
		}
		b, err := hex.DecodeString(tok)
		if err != nil {
			return nil, types.PatternError(fmt.Sprintf("invalid hex %q", tok))
		}
		out = append(out, b...)
	}
	if len(out) == 0 {
		return nil, types.PatternError("empty pattern")
	}
	return out, nil
}

// ParsePattern turns user input into search bytes. Raw takes the input
// literally; both hex formats go through ParseHex.
func ParsePattern(s string, f Format) ([]byte, error) {
	if f == Raw {
		if s == "" {
			return nil, types.PatternError("empty pattern")
		}
		return []byte(s), nil
	}
	return ParseHex(s)
}
