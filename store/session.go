package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// touchScript splices lastActiveAt into a session blob iff the session has
// not passed its absolute expiry. Touching a missing or expired session is a
// silent no-op.
const touchScript = luaBE64Helpers + `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end

local expires_at = read_be64(data, 10)
local now = tonumber(ARGV[1])
if not expires_at or expires_at <= now then
  return 0
end

local updated = string.sub(data, 1, 17) .. write_be64(now) .. string.sub(data, 26)

local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then
  redis.call("SET", KEYS[1], updated, "PX", ttl)
else
  redis.call("SET", KEYS[1], updated)
end

return 1
`

var touchLua = redis.NewScript(touchScript)

// SessionStore is a Redis-backed store for session records. Session keys
// expire at the session's absolute lifetime.
type SessionStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewSessionStore creates a [SessionStore] backed by the given Redis client.
func NewSessionStore(redis redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{
		redis:  redis,
		prefix: prefix,
	}
}

func (s *SessionStore) sessionKey(sessionID string) string {
	return s.prefix + ":ss:" + sessionID
}

func (s *SessionStore) userKey(userID string) string {
	return s.prefix + ":ssu:" + userID
}

// Put persists a session record and indexes it under its user.
func (s *SessionStore) Put(ctx context.Context, sess *SessionRecord) error {
	data, err := EncodeSession(sess)
	if err != nil {
		return err
	}

	ttl := time.Until(time.Unix(sess.ExpiresAt, 0))
	if ttl < time.Second {
		ttl = time.Second
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sess.ID), data, ttl)
		pipe.SAdd(ctx, s.userKey(sess.UserID), sess.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// Get retrieves a session record by ID.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*SessionRecord, error) {
	data, err := s.redis.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return DecodeSession(data)
}

// Touch updates the session's last activity timestamp. Missing and expired
// sessions are ignored.
func (s *SessionStore) Touch(ctx context.Context, sessionID string, now int64) error {
	err := touchLua.Run(ctx, s.redis, []string{s.sessionKey(sessionID)}, now).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes a session record and its user index entry. Deleting a
// missing session is not an error.
func (s *SessionStore) Delete(ctx context.Context, sessionID, userID string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(sessionID))
		pipe.SRem(ctx, s.userKey(userID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// DeleteAllForUser removes every session belonging to the user and returns
// how many existed.
//
// ATOMICITY NOTE: the index read and the deletes are separate phases. A
// session created in between survives this call.
func (s *SessionStore) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)

	members, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(members)+1)
	for _, id := range members {
		keys = append(keys, s.sessionKey(id))
	}

	deleted, err := s.redis.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := s.redis.Del(ctx, userKey).Err(); err != nil {
		return int(deleted), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return int(deleted), nil
}

// SweepExpired removes session keys past their absolute expiry along with
// their index entries. Redis key TTLs already collect most of these; the
// sweep prunes stragglers and stale index members.
func (s *SessionStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	var removed int

	iter := s.redis.Scan(ctx, 0, s.prefix+":ss:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		data, err := s.redis.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		sess, err := DecodeSession(data)
		if err != nil {
			if delErr := s.redis.Del(ctx, key).Err(); delErr != nil {
				return removed, fmt.Errorf("%w: %v", ErrUnavailable, delErr)
			}
			removed++
			continue
		}

		if now.Unix() < sess.ExpiresAt {
			continue
		}

		if err := s.Delete(ctx, sess.ID, sess.UserID); err != nil {
			return removed, err
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return removed, nil
}
