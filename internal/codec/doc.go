// Package codec implements the binary record layout shared by every
// chronicle kind.
//
// A serialized chronicle is a header followed by a version stream:
//
//	header:  object-type:1 · version-type:1 · mode:1 · format-version:1 ·
//	         primordial UUID:16 · additional-count:4 · additional UUIDs:16×n ·
//	         fixed fields (assemblage, nid, subtype fields)
//	stream:  [length:4][stamp ref][payload] ... [0:4]
//
// All integers are big-endian. A record length counts the whole record,
// including its own 4-byte length field; a zero length terminates the
// stream. The stamp reference is a 4-byte stamp sequence in INTERNAL mode
// and a portable tuple (status, time, author/module/path UUIDs) in
// EXTERNAL mode.
//
// Additional UUIDs are written in sorted order and version records are
// written sorted by stamp reference, so equal chronicles always produce
// byte-identical output.
//
// Buffer carries a sticky error: once a read runs past the limit every
// further read returns zero values and Err reports the first failure.
package codec
