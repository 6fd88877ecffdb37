package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"github.com/google/uuid"
)

// SecretSize is the byte length of the random half of a refresh credential.
const SecretSize = 32

// NewSecret returns a fresh 256-bit refresh secret.
func NewSecret() ([SecretSize]byte, error) {
	var secret [SecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// Fingerprint derives the one-way lookup key for a refresh secret.
// The raw secret is never persisted; stores are keyed by this value only.
func Fingerprint(secret [SecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// NewRecordID returns a random identifier for a refresh-token record.
// The same value doubles as the credential payload's token id.
func NewRecordID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewSessionID returns a random session identifier.
func NewSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewTokenID returns a random access-token id (jti) for log correlation.
// It is never checked against any revocation list.
func NewTokenID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ValidateRecordID rejects identifiers that cannot be spliced into the
// fixed-width replacedBy slot of an encoded refresh record.
func ValidateRecordID(id string) error {
	if len(id) != 36 {
		return errors.New("invalid record id length")
	}
	return nil
}
