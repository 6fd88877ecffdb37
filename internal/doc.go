// Package internal contains helper utilities that are intentionally private to tokenlife,
// including secure random generation, secret fingerprinting, and the opaque refresh
// credential wire codec.
//
// # What this package must NOT do
//
//   - Export types that appear in the public tokenlife API.
//   - Be imported by any package outside the tokenlife module.
//   - Access Redis or perform any I/O.
package internal
