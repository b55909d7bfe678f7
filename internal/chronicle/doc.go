// Package chronicle implements the versioned entity container and its
// versions.
//
// A Chronicle owns an append-mostly set of Versions, each bound to one
// stamp sequence. Version fields derived from the stamp are always
// resolved through the stamp registry, never cached. Payloads are a sealed
// set of variants selected by the chronicle's version type.
//
// Concurrency: the committed and uncommitted collections are copy-on-write
// slices behind atomic pointers. Appends never block readers, and readers
// iterate over an immutable snapshot. Removal is serialized per chronicle.
package chronicle
