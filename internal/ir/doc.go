// Package ir provides the foundational types shared by every ISAAC package.
//
// This package contains type definitions, sentinel values, byte tokens and
// the structured error taxonomy. All other internal packages import ir; ir
// imports nothing internal. This keeps ir the foundational layer with no
// circular dependencies.
//
// Key constraints:
//   - Nids are dense signed 32-bit identifiers, never reused
//   - Stamp time has three regimes: real milliseconds, TimeMax (pending)
//     and TimeMin (canceled)
//   - Byte tokens are protocol constants: changing them breaks the
//     on-disk format
//   - Canonical JSON (RFC 8785, NFC strings) is the only JSON rendering
//     used for chronicle summaries and digests
package ir
