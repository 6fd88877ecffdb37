// Package store provides Redis-backed persistence for refresh-token records
// and session records, with compact binary record encoding for rotation hot
// paths.
//
// # Binary encoding
//
// Records are stored in Redis as a compact binary format (schema version v1)
// with all mutable fields at fixed offsets, so the Lua compare-and-swap
// scripts can splice them in place without a decode round-trip. The encoder
// is append-only: new versions add fields but never reinterpret old ones.
//
// # Atomicity
//
// Every stateful transition — revoke-and-link on rotation, single revoke,
// bulk revoke-by-user, session touch — is one Lua script. Callers never do
// read-then-write; two concurrent rotations of one credential always produce
// exactly one winner.
//
// # What this package must NOT do
//
//   - Import tokenlife or jwt (no upward imports).
//   - See raw refresh secrets: every operation is keyed by fingerprint.
//   - Decide the rotation state machine; it only reports record state.
package store
