// Package buffer implements the addressable byte buffer at the heart of the
// editor.
//
// # Overview
//
// A Buffer owns an immutable snapshot of the file as it was opened (the
// "original") and a piece table describing the effective content: an ordered
// list of pieces, each pointing either into the original or into an
// append-only "add" region that holds every byte ever written. Reads walk the
// pieces; the original is never modified and never copied a second time.
//
//	original: 00 01 02 03 04 05 06 07 08 09
//	Write(3, FF)
//	pieces:   [orig 0..3) [add 0..1) [orig 4..10)
//	effective 00 01 02 FF 04 05 06 07 08 09
//
// # Edits
//
// Every mutation is a splice: remove n bytes at an offset and insert new
// bytes. Write is the length-preserving case, Insert and Delete change the
// logical length. Each mutation returns an Edit carrying the old and new bytes
// plus the pieces it removed and inserted, so Revert and Apply restore the
// exact prior piece layout. Reverting every edit leaves a single original
// piece again.
//
// # Cost
//
// Len is O(1). Locating an offset is O(log pieces). A splice is O(pieces).
// Overlay memory grows with the number and size of edits, never with the size
// of the file.
//
// # Concurrency
//
// A Buffer is NOT thread-safe. Reads may run concurrently with each other but
// not with mutations. Snapshot returns an immutable view that stays valid while
// the Buffer keeps changing, which is what the save path streams from.
package buffer
