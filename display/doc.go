// Package display holds the closed set of byte representations used by
// presentation layers: copy formats (Hex, HexStream, Raw), text-column
// charsets, hex dump rows, and parsing of user-entered byte patterns.
//
// Nothing here touches buffer state. Options are carried by a session as
// opaque configuration and handed back to whatever renders the bytes.
package display
