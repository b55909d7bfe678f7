// Package stamp interns STAMP tuples into dense stamp sequences and keeps
// the path-origin graph those stamps are resolved against.
//
// # Interning
//
// Committed tuples (real time) and pending tuples (no time yet) live in
// separate tables. Identical committed tuples always intern to the same
// sequence; pending tuples intern by (status, author, module, path) only.
// Lookup of an existing tuple is lock-free (sync.Map); allocating a new
// sequence takes a mutex held only for "increment counter + register".
//
// Sequences start at 1 and are never reused. Allocation order carries no
// meaning for visibility: ordering is always by stamp time and path
// ancestry.
//
// # Retirement
//
// A pending stamp is retired when it is canceled or committed. The
// sequence still resolves to its tuple, but new pending interns of the
// same tuple allocate a fresh sequence, and the versions left pointing at
// a retired sequence are stale.
//
// # Paths
//
// Paths form a directed acyclic graph of origins. An origin (P, t) on path
// Q means history on P up to time t is visible on Q.
package stamp
