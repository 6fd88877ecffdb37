// Package tokenlife implements a session token lifecycle engine: signed
// short-lived access tokens, opaque rotating refresh tokens, reuse detection
// with cascading revocation, session tracking, and periodic garbage
// collection of expired state.
//
// The engine is embedded as a library. Callers bring their own Redis client
// and user lookup; the engine owns token issuance, rotation, and revocation.
//
// Construct an [Engine] with the fluent builder:
//
//	engine, err := tokenlife.New().
//		WithConfig(cfg).
//		WithRedis(client).
//		WithUserProvider(users).
//		Build()
//
// Refresh tokens are opaque. The store is keyed by a SHA-256 fingerprint of
// the token secret; raw secrets are never persisted. Presenting a rotated
// token is treated as replay and revokes every outstanding token for the
// user.
package tokenlife
