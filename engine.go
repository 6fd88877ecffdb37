package tokenlife

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/vaultis-io/tokenlife/internal"
	"github.com/vaultis-io/tokenlife/jwt"
	"github.com/vaultis-io/tokenlife/store"
)

// Engine is the session token lifecycle engine. It mints access/refresh
// token pairs, rotates refresh tokens with replay detection, and tracks
// sessions. All methods are safe for concurrent use.
type Engine struct {
	cfg      Config
	jwtMgr   *jwt.Manager
	tokens   *store.TokenStore
	sessions *store.SessionStore
	users    UserProvider
	metrics  *Metrics
	audit    *auditDispatcher
	gc       *gcRunner

	closeOnce sync.Once
}

// CreateSession establishes a new session for the user and mints its
// initial token pair. Client IP and User-Agent are taken from ctx when
// attached with [WithClientIP] and [WithUserAgent].
func (e *Engine) CreateSession(ctx context.Context, userID string, method AuthMethod) (*SessionResult, error) {
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserNotFound, err)
	}

	sessionID, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &store.SessionRecord{
		ID:           sessionID,
		UserID:       user.UserID,
		AuthMethod:   uint8(method),
		CreatedAt:    now.Unix(),
		ExpiresAt:    now.Add(e.cfg.Session.Lifetime).Unix(),
		LastActiveAt: now.Unix(),
		ClientIP:     clientIPFromContext(ctx),
		UserAgent:    userAgentFromContext(ctx),
	}
	if err := e.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}

	refreshCredential, _, err := e.issueRefreshToken(ctx, user.UserID, sessionID, now, sess.ExpiresAt)
	if err != nil {
		return nil, err
	}

	accessToken, _, err := e.jwtMgr.CreateAccess(user.UserID, user.Email, method.String(), sessionID)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, true, user.UserID, sessionID, nil, func() map[string]string {
		return map[string]string{"auth_method": method.String()}
	})

	return &SessionResult{
		SessionID:    sessionID,
		AccessToken:  accessToken,
		RefreshToken: refreshCredential,
		ExpiresIn:    e.jwtMgr.AccessTTL(),
	}, nil
}

// Rotate exchanges a live refresh token for a successor token pair. The
// presented token is revoked and linked to its successor in one atomic
// store operation; of any set of concurrent callers, exactly one wins.
//
// Presenting an already-rotated token is replay: every refresh token for
// the user is revoked and [ErrRefreshReuse] is returned.
func (e *Engine) Rotate(ctx context.Context, credential string) (*RotateResult, error) {
	start := time.Now()

	result, err := e.rotate(ctx, credential)
	if err != nil {
		e.metrics.Inc(MetricRotateFailure)
		return nil, err
	}

	e.metrics.Inc(MetricRotateSuccess)
	e.metrics.Observe(MetricRotateLatency, time.Since(start))

	return result, nil
}

func (e *Engine) rotate(ctx context.Context, credential string) (*RotateResult, error) {
	secret, payload, err := internal.DecodeCredential(credential)
	if err != nil {
		e.emitAudit(ctx, auditEventRotateInvalid, false, "", "", ErrRefreshInvalid, nil)
		return nil, fmt.Errorf("%w: %v", ErrRefreshInvalid, err)
	}

	fingerprint := internal.Fingerprint(secret)

	rec, err := e.tokens.Get(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.emitAudit(ctx, auditEventRotateInvalid, false, payload.Subject, payload.SessionID, ErrRefreshInvalid, nil)
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	now := time.Now()

	// Classification order matters: a rotated record past its expiry is
	// still replay, not mere expiration.
	switch {
	case rec.Rotated():
		return nil, e.handleReuse(ctx, rec)
	case rec.RevokedAt != 0:
		e.emitAudit(ctx, auditEventRotateInvalid, false, rec.UserID, rec.SessionID, ErrRefreshRevoked, nil)
		return nil, ErrRefreshRevoked
	case now.Unix() >= rec.ExpiresAt:
		e.emitAudit(ctx, auditEventRotateInvalid, false, rec.UserID, rec.SessionID, ErrRefreshExpired, nil)
		return nil, ErrRefreshExpired
	}

	if payload.TokenID != rec.ID || payload.Subject != rec.UserID || payload.SessionID != rec.SessionID {
		e.emitAudit(ctx, auditEventRotateInvalid, false, rec.UserID, rec.SessionID, ErrPayloadMismatch, nil)
		return nil, ErrPayloadMismatch
	}

	sess, err := e.sessions.Get(ctx, rec.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.emitAudit(ctx, auditEventRotateInvalid, false, rec.UserID, rec.SessionID, ErrSessionExpired, nil)
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	if now.Unix() >= sess.ExpiresAt {
		e.emitAudit(ctx, auditEventRotateInvalid, false, rec.UserID, rec.SessionID, ErrSessionExpired, nil)
		return nil, ErrSessionExpired
	}

	user, err := e.users.GetUserByID(ctx, rec.UserID)
	if err != nil {
		e.emitAudit(ctx, auditEventRotateInvalid, false, rec.UserID, rec.SessionID, ErrUserNotFound, nil)
		return nil, fmt.Errorf("%w: %v", ErrUserNotFound, err)
	}

	successorCredential, successor, err := e.issueRefreshToken(ctx, rec.UserID, rec.SessionID, now, sess.ExpiresAt)
	if err != nil {
		return nil, err
	}

	err = e.tokens.LinkRotation(ctx, fingerprint, successor.ID, now.Unix())
	if err != nil {
		// Lost the race or the record vanished: the provisional successor
		// must not survive.
		if delErr := e.tokens.Delete(ctx, successor.Fingerprint, rec.UserID); delErr != nil {
			log.Printf("tokenlife: failed to delete provisional refresh record: %v", delErr)
		}

		if errors.Is(err, store.ErrAlreadyRevoked) {
			return nil, e.handleReuse(ctx, rec)
		}
		if errors.Is(err, store.ErrNotFound) {
			e.emitAudit(ctx, auditEventRotateInvalid, false, rec.UserID, rec.SessionID, ErrRefreshInvalid, nil)
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	accessToken, _, err := e.jwtMgr.CreateAccess(user.UserID, user.Email, AuthMethod(sess.AuthMethod).String(), rec.SessionID)
	if err != nil {
		return nil, err
	}

	if err := e.sessions.Touch(ctx, rec.SessionID, now.Unix()); err != nil {
		log.Printf("tokenlife: failed to touch session %s: %v", rec.SessionID, err)
	}

	e.emitAudit(ctx, auditEventRotateSuccess, true, user.UserID, rec.SessionID, nil, nil)

	return &RotateResult{
		SessionID:    rec.SessionID,
		AccessToken:  accessToken,
		RefreshToken: successorCredential,
		ExpiresIn:    e.jwtMgr.AccessTTL(),
	}, nil
}

func (e *Engine) handleReuse(ctx context.Context, rec *store.RefreshRecord) error {
	count, err := e.tokens.RevokeAllForUser(ctx, rec.UserID, time.Now().Unix())
	if err != nil {
		log.Printf("tokenlife: cascade revocation for user %s failed: %v", rec.UserID, err)
	}

	e.metrics.Inc(MetricReuseDetected)
	e.metrics.Add(MetricCascadeRevocation, uint64(count))
	e.emitAudit(ctx, auditEventRotateReuse, false, rec.UserID, rec.SessionID, ErrRefreshReuse, func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(count)}
	})

	return ErrRefreshReuse
}

// VerifyAccessToken verifies an access token's signature and temporal
// claims and returns the embedded identity. Verification is stateless:
// a token already inside its lifetime stays valid even after the refresh
// token or session behind it is revoked.
func (e *Engine) VerifyAccessToken(tokenStr string) (*AccessIdentity, error) {
	claims, err := e.jwtMgr.ParseAccess(tokenStr)
	if err != nil {
		mapped := mapJWTError(err)
		e.metrics.Inc(MetricVerifyFailure)
		e.emitAudit(context.Background(), auditEventVerifyFailure, false, "", "", mapped, nil)
		return nil, mapped
	}

	e.metrics.Inc(MetricVerifySuccess)

	identity := &AccessIdentity{
		UserID:     claims.Subject,
		Email:      claims.Email,
		SessionID:  claims.SID,
		AuthMethod: claims.AuthMethod,
		TokenID:    claims.ID,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}

	return identity, nil
}

// Touch records session activity. Touching a missing or expired session is
// a silent no-op.
func (e *Engine) Touch(ctx context.Context, sessionID string) error {
	return e.sessions.Touch(ctx, sessionID, time.Now().Unix())
}

// RevokeRefreshToken explicitly revokes a single refresh token. The record
// is kept, unlinked, for the retention window so later presentations map
// to [ErrRefreshRevoked] rather than replay. Revoking an already revoked
// token succeeds.
func (e *Engine) RevokeRefreshToken(ctx context.Context, credential string) error {
	secret, _, err := internal.DecodeCredential(credential)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshInvalid, err)
	}

	fingerprint := internal.Fingerprint(secret)

	rec, err := e.tokens.Get(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRefreshInvalid
		}
		return err
	}

	err = e.tokens.Revoke(ctx, fingerprint, time.Now().Unix())
	if err != nil && !errors.Is(err, store.ErrAlreadyRevoked) {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRefreshInvalid
		}
		return err
	}

	e.metrics.Inc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventTokenRevoked, true, rec.UserID, rec.SessionID, nil, nil)

	return nil
}

// RevokeAllUserTokens revokes every live refresh token belonging to the
// user and returns how many were revoked. When terminateSessions is true
// the user's sessions are removed as well. Calling it for a user with no
// live tokens succeeds with a zero count.
func (e *Engine) RevokeAllUserTokens(ctx context.Context, userID string, terminateSessions bool) (int, error) {
	count, err := e.tokens.RevokeAllForUser(ctx, userID, time.Now().Unix())
	if err != nil {
		return 0, err
	}

	if terminateSessions {
		if _, err := e.sessions.DeleteAllForUser(ctx, userID); err != nil {
			return count, err
		}
	}

	e.metrics.Inc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventRevokeAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{
			"revoked":            strconv.Itoa(count),
			"terminate_sessions": strconv.FormatBool(terminateSessions),
		}
	})

	return count, nil
}

// CleanupExpiredTokens sweeps the store once, removing refresh records past
// their retention window and sessions past their lifetime. Returns the
// total number of records removed. Running it twice in a row is harmless.
func (e *Engine) CleanupExpiredTokens(ctx context.Context) (int, error) {
	now := time.Now()

	tokensRemoved, err := e.tokens.SweepExpired(ctx, now)
	if err != nil {
		return tokensRemoved, err
	}

	sessionsRemoved, err := e.sessions.SweepExpired(ctx, now)
	if err != nil {
		return tokensRemoved + sessionsRemoved, err
	}

	removed := tokensRemoved + sessionsRemoved

	e.metrics.Inc(MetricSweepRuns)
	e.metrics.Add(MetricSweepRemoved, uint64(removed))
	e.emitAudit(ctx, auditEventSweepCompleted, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"tokens_removed":   strconv.Itoa(tokensRemoved),
			"sessions_removed": strconv.Itoa(sessionsRemoved),
		}
	})

	return removed, nil
}

// Metrics exposes the engine's metrics registry for exporters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// MetricsSnapshot returns a point-in-time copy of every counter and
// histogram. Exporters read from this.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events have been dropped because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// Close stops the garbage collector and drains the audit dispatcher. The
// Redis client is owned by the caller and stays open.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.gc.stop()
		e.audit.Close()
	})
}

func (e *Engine) issueRefreshToken(ctx context.Context, userID, sessionID string, now time.Time, sessionExpiresAt int64) (string, *store.RefreshRecord, error) {
	secret, err := internal.NewSecret()
	if err != nil {
		return "", nil, err
	}

	recordID, err := internal.NewRecordID()
	if err != nil {
		return "", nil, err
	}

	expiresAt := now.Add(e.cfg.Refresh.TTL).Unix()
	if expiresAt > sessionExpiresAt {
		expiresAt = sessionExpiresAt
	}

	rec := &store.RefreshRecord{
		ID:          recordID,
		Fingerprint: internal.Fingerprint(secret),
		UserID:      userID,
		SessionID:   sessionID,
		CreatedAt:   now.Unix(),
		ExpiresAt:   expiresAt,
	}
	if err := e.tokens.Put(ctx, rec); err != nil {
		return "", nil, err
	}

	credential, err := internal.EncodeCredential(secret, internal.Payload{
		TokenID:   recordID,
		Subject:   userID,
		SessionID: sessionID,
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt,
		Issuer:    e.cfg.Token.Issuer,
	})
	if err != nil {
		return "", nil, err
	}

	return credential, rec, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid),
		errors.Is(err, jwtlib.ErrTokenUnverifiable),
		errors.Is(err, jwtlib.ErrTokenInvalidIssuer),
		errors.Is(err, jwtlib.ErrTokenInvalidAudience),
		errors.Is(err, jwtlib.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwtlib.ErrTokenNotValidYet),
		errors.Is(err, jwtlib.ErrTokenInvalidClaims):
		return ErrTokenSignature
	default:
		return ErrTokenMalformed
	}
}
