package tokenlife

import (
	"context"
	"time"
)

// AuthMethod records how a session was initially established.
type AuthMethod uint8

const (
	// AuthMethodPassword marks a session established with a password login.
	AuthMethodPassword AuthMethod = iota
	// AuthMethodOAuth marks a session established through an OAuth flow.
	AuthMethodOAuth
	// AuthMethodWebAuthn marks a session established with a WebAuthn
	// assertion.
	AuthMethodWebAuthn
)

func (m AuthMethod) String() string {
	switch m {
	case AuthMethodPassword:
		return "password"
	case AuthMethodOAuth:
		return "oauth"
	case AuthMethodWebAuthn:
		return "webauthn"
	default:
		return "unknown"
	}
}

// UserRecord is the minimal user view the engine needs to mint tokens.
type UserRecord struct {
	UserID string
	Email  string
}

// UserProvider resolves token subjects to user records. Implementations are
// supplied by the host application and must be safe for concurrent use.
type UserProvider interface {
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
}

// SessionResult is returned by [Engine.CreateSession]: a fresh token pair
// bound to a newly created session.
type SessionResult struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// RotateResult is returned by [Engine.Rotate]: the successor token pair for
// a rotated refresh token.
type RotateResult struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// AccessIdentity is the verified content of an access token.
type AccessIdentity struct {
	UserID     string
	Email      string
	SessionID  string
	AuthMethod string
	TokenID    string
	ExpiresAt  time.Time
}
