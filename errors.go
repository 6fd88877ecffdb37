package tokenlife

import (
	"errors"

	"github.com/vaultis-io/tokenlife/store"
)

var (
	// ErrSigningSecretMissing is returned when the engine is built without
	// an access token signing secret.
	ErrSigningSecretMissing = errors.New("signing secret missing")
	// ErrTokenMalformed is returned when an access token cannot be parsed.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenSignature is returned when an access token fails signature,
	// issuer, or audience verification.
	ErrTokenSignature = errors.New("token signature invalid")
	// ErrTokenExpired is returned when an access token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrRefreshInvalid is returned when a refresh credential is malformed
	// or unknown to the store.
	ErrRefreshInvalid = errors.New("refresh token invalid")
	// ErrRefreshExpired is returned when a refresh token is past its expiry.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrRefreshRevoked is returned when a refresh token was explicitly
	// revoked without being rotated.
	ErrRefreshRevoked = errors.New("refresh token revoked")
	// ErrRefreshReuse is returned when a rotated refresh token is presented
	// again. The engine responds by revoking every token for the user.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrPayloadMismatch is returned when a credential's embedded payload
	// disagrees with the stored record.
	ErrPayloadMismatch = errors.New("credential payload mismatch")
	// ErrSessionExpired is returned when the session backing a refresh
	// token no longer exists or is past its lifetime.
	ErrSessionExpired = errors.New("session expired")
	// ErrUserNotFound is returned when the user provider has no record for
	// the token's subject.
	ErrUserNotFound = errors.New("user not found")
	// ErrEngineNotReady is returned by Build when a required dependency is
	// missing.
	ErrEngineNotReady = errors.New("engine not ready")
)

// ErrStoreUnavailable is returned when Redis cannot be reached.
var ErrStoreUnavailable = store.ErrUnavailable
