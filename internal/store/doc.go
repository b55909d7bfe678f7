// Package store persists serialized chronicles by nid.
//
// Every backend implements DataStore and stores, per chronicle, the
// INTERNAL-mode bytes, the write sequence, and the assemblage and
// referenced-component nids used by the index queries.
//
// # Optimistic Writes
//
// A chronicle remembers the write sequence it was last read or written
// under. PutChronicleData compares it with the stored sequence:
//   - Equal (or no stored row): the bytes are written with sequence+1.
//   - Different: another writer got there first. The stored bytes are
//     merged into the chronicle and the merged bytes are written instead.
//
// Merging always succeeds for data of the same chronicle, so a writer
// never aborts; it only retries the compare-and-put after a merge.
//
// # Backends
//
//   - Memory: map guarded by a mutex. Tests and the default config.
//   - Store: SQLite with WAL mode; the compare-and-put is one conditional
//     upsert. Content digests (BLAKE3) are verified on read.
//   - Badger: embedded LSM store; compare-and-put runs in a transaction
//     and is retried on conflict. Values may be LZ4-compressed.
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
