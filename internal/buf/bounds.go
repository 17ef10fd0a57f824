// Package buf holds overflow-safe bounds helpers shared by the buffer,
// search and persistence packages.
package buf

import (
	"math"

	"github.com/joshuapare/hexkit/pkg/types"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int64.
func AddOverflowSafe(a, b int64) (int64, bool) {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return 0, false
	case b < 0 && a < math.MinInt64-b:
		return 0, false
	default:
		return a + b, true
	}
}

// InRange reports whether [off, off+n) lies within a sequence of length bytes.
// A zero-length range at off == length is in range.
func InRange(off, n, length int64) bool {
	if off < 0 || n < 0 || off > length {
		return false
	}
	end, ok := AddOverflowSafe(off, n)
	return ok && end <= length
}

// CheckRange returns a typed range error when [off, off+n) does not fit.
func CheckRange(off, n, length int64) error {
	if !InRange(off, n, length) {
		return types.RangeError(off, n, length)
	}
	return nil
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
func Slice(b []byte, off, n int64) ([]byte, bool) {
	if !InRange(off, n, int64(len(b))) {
		return nil, false
	}
	return b[off : off+n], true
}

// Clamp limits n so that off+n does not pass length. Callers use it only
// where a short result is the contract (io.ReaderAt), never for edits.
func Clamp(off, n, length int64) int64 {
	if off >= length {
		return 0
	}
	if rem := length - off; n > rem {
		return rem
	}
	return n
}
