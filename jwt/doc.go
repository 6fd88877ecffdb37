// Package jwt manages access-token issuance and verification over a single
// symmetric secret with strict validation semantics suitable for low-latency
// authentication paths.
//
// Verification is pure and lock-free: no store lookup, no revocation check.
// Revoking an access token before its natural expiry is intentionally not
// supported; the short TTL bounds the exposure window.
package jwt
