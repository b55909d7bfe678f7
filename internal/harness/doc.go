// Package harness runs chronicle scenarios end to end against a fresh
// runtime.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	paths:
//	  - name: sandbox
//	chronicles:
//	  - name: aspirin
//	    uuid: 11111111-1111-1111-1111-111111111111
//	    type: CONCEPT
//	steps:
//	  - op: version
//	    chronicle: aspirin
//	    label: s1
//	    status: ACTIVE
//	    time: 1000
//	    path: master
//	  - op: serialize
//	    chronicle: aspirin
//	    mode: internal
//	    label: b0
//	assertions:
//	  - type: latest
//	    chronicle: aspirin
//	    coordinate: { path: master }
//	    versions: [s1]
//
// Paths listed under paths are added after the configured master and
// development paths. Chronicles without a uuid get a name-based UUID.
//
// # Step Operations
//
//   - version: add a version; a missing time leaves it uncommitted
//   - commit: commit every uncommitted version of a chronicle at time
//   - cancel: cancel the version with the given label
//   - add_uuid: add an alias UUID to a chronicle
//   - serialize: write a chronicle to a named blob (internal or external)
//   - read: read a blob into a new chronicle label
//   - merge: merge two blobs into a new blob
//   - write: persist a chronicle in the runtime's store
//   - load: load a stored chronicle into a new label
//
// Any step may set expect_error to an error code; the step then passes
// only if it fails with that code.
//
// # Assertion Types
//
//   - latest: the latest versions under a coordinate, as labels
//   - latest_active: whether the latest set contains an ACTIVE version
//   - relative: the relative position of two labelled versions
//   - versions: the version set of a chronicle or blob, as labels
//   - uuids: the primordial and alias UUIDs of a chronicle
//   - same_bytes: two blobs are byte-identical
//
// # Deterministic Testing
//
// Every scenario runs in its own runtime with an in-memory store, so stamp
// sequences and nids are identical across runs. The trace records labels
// rather than sequences and is compared against golden files.
package harness
