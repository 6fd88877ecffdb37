package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrNoSecret is returned by [NewManager] when no signing secret is configured.
var ErrNoSecret = errors.New("signing secret not configured")

// Config defines a public type used by tokenlife APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Secret       []byte
	AccessTTL    time.Duration
	Issuer       string
	Audience     []string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
}

// Manager signs and verifies short-lived access tokens with one fixed
// symmetric key and one fixed algorithm (HS256). The algorithm is enforced
// by construction: verification only ever accepts HS256, so algorithm
// confusion is rejected without a denylist.
type Manager struct {
	config Config
}

// AccessClaims is the claim set carried by a signed access token. The token
// id (RegisteredClaims.ID) is random and exists for log correlation only; it
// is never checked against any revocation list.
type AccessClaims struct {
	Email      string `json:"email,omitempty"`
	AuthMethod string `json:"amr,omitempty"`
	SID        string `json:"sid"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a ready [Manager].
//
// Exactly one secret source is accepted; there is no environment-conditional
// fallback inside signing or verification.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrNoSecret
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}

	return &Manager{config: cfg}, nil
}

// CreateAccess signs a new access token bound to the given user, session,
// and authentication method. Returns the compact token and its token id.
func (j *Manager) CreateAccess(userID, email, authMethod, sessionID string) (string, string, error) {
	tokenID, err := uuid.NewRandom()
	if err != nil {
		return "", "", err
	}

	now := time.Now()
	claims := AccessClaims{
		Email:      email,
		AuthMethod: authMethod,
		SID:        sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID.String(),
			Subject:   userID,
			Issuer:    j.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.config.AccessTTL)),
		},
	}
	if len(j.config.Audience) > 0 {
		claims.Audience = jwt.ClaimStrings(j.config.Audience)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.config.Secret)
	if err != nil {
		return "", "", err
	}

	return signed, tokenID.String(), nil
}

// ParseAccess verifies signature, expiry, issuer, and audience, and returns
// the embedded claims. Only HS256 is ever accepted.
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if len(j.config.Audience) > 0 {
		options = append(options, jwt.WithAudience(j.config.Audience[0]))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return j.config.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && j.config.MaxFutureIAT > 0 {
		maxAllowed := time.Now().Add(j.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, errors.New("token iat too far in the future")
		}
	}

	return claims, nil
}

// AccessTTL reports the configured access-token lifetime.
func (j *Manager) AccessTTL() time.Duration {
	return j.config.AccessTTL
}
