package internal

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// Payload is the self-describing half of a refresh credential. It is NOT
// cryptographically signed: the fingerprint lookup against the token store is
// the authority, and the payload is only a consistency check against the
// stored record. Never trust it on its own.
type Payload struct {
	TokenID   string `json:"tid"`
	Subject   string `json:"sub"`
	SessionID string `json:"sid"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	Issuer    string `json:"iss"`
}

var (
	// ErrCredentialMalformed is returned when a credential cannot be split
	// into its secret and payload parts.
	ErrCredentialMalformed = errors.New("malformed refresh credential")
)

// EncodeCredential assembles the client-facing refresh credential:
// base64url(secret) "." base64url(json payload).
func EncodeCredential(secret [SecretSize]byte, p Payload) (string, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(base64.RawURLEncoding.EncodedLen(SecretSize) + 1 + base64.RawURLEncoding.EncodedLen(len(payload)))
	b.WriteString(base64.RawURLEncoding.EncodeToString(secret[:]))
	b.WriteByte('.')
	b.WriteString(base64.RawURLEncoding.EncodeToString(payload))

	return b.String(), nil
}

// DecodeCredential splits and decodes a presented refresh credential.
// Structural failures return [ErrCredentialMalformed]; the payload content is
// not validated here beyond being well-formed JSON.
func DecodeCredential(credential string) ([SecretSize]byte, Payload, error) {
	var secret [SecretSize]byte
	var p Payload

	secretPart, payloadPart, ok := strings.Cut(credential, ".")
	if !ok {
		return secret, p, ErrCredentialMalformed
	}

	rawSecret, err := base64.RawURLEncoding.DecodeString(secretPart)
	if err != nil {
		return secret, p, ErrCredentialMalformed
	}
	if len(rawSecret) != SecretSize {
		return secret, p, ErrCredentialMalformed
	}
	copy(secret[:], rawSecret)

	rawPayload, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return secret, p, ErrCredentialMalformed
	}
	if err := json.Unmarshal(rawPayload, &p); err != nil {
		return secret, p, ErrCredentialMalformed
	}

	return secret, p, nil
}
