// Package mmfile provides platform-specific helpers for memory-mapping the
// original file snapshot read-only (linux and darwin), falling back to a
// plain read elsewhere.
package mmfile
