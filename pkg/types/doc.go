// Package types holds the error taxonomy and small shared enums used across
// hexkit.
//
// Errors are typed with stable categories (io/range/pattern/state/...) so a
// presentation layer can branch on intent rather than text:
//
//	if errors.Is(err, types.ErrNotAvailable) {
//	    status("Nothing to undo")
//	}
//
// This package has no dependencies beyond the standard library.
package types
