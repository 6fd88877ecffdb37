package store

// RefreshRecord is the persisted state of one opaque refresh credential.
// The raw secret is never stored; records are keyed by its fingerprint.
//
// A record transitions exactly once from live to either rotated (RevokedAt
// and ReplacedBy both set) or revoked (only RevokedAt set). A RevokedAt of
// zero means live.
type RefreshRecord struct {
	ID          string
	Fingerprint [32]byte
	UserID      string
	SessionID   string

	CreatedAt int64
	ExpiresAt int64
	RevokedAt int64
	// ReplacedBy links to the record minted when this one was rotated.
	// Set only together with RevokedAt.
	ReplacedBy string
}

// Live reports whether the record has not been revoked or rotated.
func (r *RefreshRecord) Live() bool {
	return r.RevokedAt == 0
}

// Rotated reports whether the record was consumed by a rotation. Presenting
// a rotated record again is the reuse signal that triggers cascading
// revocation.
func (r *RefreshRecord) Rotated() bool {
	return r.RevokedAt != 0 && r.ReplacedBy != ""
}

// SessionRecord is the persisted state of one authenticated session.
type SessionRecord struct {
	ID         string
	UserID     string
	AuthMethod uint8

	CreatedAt    int64
	ExpiresAt    int64
	LastActiveAt int64

	// Client context captured at creation. Opaque to the engine.
	ClientIP  string
	UserAgent string
}
