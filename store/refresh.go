package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned when Redis cannot be reached.
var ErrUnavailable = errors.New("store unavailable")

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyRevoked is returned when a mutation targets a record that has
// already been revoked.
var ErrAlreadyRevoked = errors.New("record already revoked")

const (
	linkStatusNotFound       int64 = 0
	linkStatusAlreadyRevoked int64 = 1
	linkStatusApplied        int64 = 2
)

const luaBE64Helpers = `
local function read_be64(s, i)
  local b1 = string.byte(s, i)
  local b2 = string.byte(s, i + 1)
  local b3 = string.byte(s, i + 2)
  local b4 = string.byte(s, i + 3)
  local b5 = string.byte(s, i + 4)
  local b6 = string.byte(s, i + 5)
  local b7 = string.byte(s, i + 6)
  local b8 = string.byte(s, i + 7)
  if not b8 then
    return nil
  end
  return ((((((((b1 * 256) + b2) * 256 + b3) * 256 + b4) * 256 + b5) * 256 + b6) * 256 + b7) * 256 + b8)
end

local function write_be64(n)
  local bytes = {}
  for i = 8, 1, -1 do
    bytes[i] = string.char(n % 256)
    n = math.floor(n / 256)
  end
  return table.concat(bytes)
end
`

// linkRotationScript atomically marks a live record as rotated: it splices
// revokedAt and replacedBy into the blob while preserving the key's TTL.
// Exactly one of any set of concurrent callers observes status 2.
const linkRotationScript = luaBE64Helpers + `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end

local revoked_at = read_be64(data, 18)
if not revoked_at then
  return {0}
end
if revoked_at ~= 0 then
  return {1}
end

local updated = string.sub(data, 1, 17) .. write_be64(tonumber(ARGV[1])) .. ARGV[2] .. string.sub(data, 62)

local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then
  redis.call("SET", KEYS[1], updated, "PX", ttl)
else
  redis.call("SET", KEYS[1], updated)
end

return {2}
`

var linkRotationLua = redis.NewScript(linkRotationScript)

// revokeScript splices revokedAt into a live record, preserving replacedBy
// and the key's TTL.
const revokeScript = luaBE64Helpers + `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end

local revoked_at = read_be64(data, 18)
if not revoked_at then
  return {0}
end
if revoked_at ~= 0 then
  return {1}
end

local updated = string.sub(data, 1, 17) .. write_be64(tonumber(ARGV[1])) .. string.sub(data, 26)

local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then
  redis.call("SET", KEYS[1], updated, "PX", ttl)
else
  redis.call("SET", KEYS[1], updated)
end

return {2}
`

var revokeLua = redis.NewScript(revokeScript)

// revokeAllScript revokes every live record indexed under a user's set and
// returns how many were transitioned. Dangling index members are pruned.
const revokeAllScript = luaBE64Helpers + `
local members = redis.call("SMEMBERS", KEYS[1])
local record_prefix = ARGV[1]
local now = tonumber(ARGV[2])
local count = 0

for _, member in ipairs(members) do
  local key = record_prefix .. member
  local data = redis.call("GET", key)
  if data then
    local revoked_at = read_be64(data, 18)
    if revoked_at == 0 then
      local updated = string.sub(data, 1, 17) .. write_be64(now) .. string.sub(data, 26)
      local ttl = redis.call("PTTL", key)
      if ttl > 0 then
        redis.call("SET", key, updated, "PX", ttl)
      else
        redis.call("SET", key, updated)
      end
      count = count + 1
    end
  else
    redis.call("SREM", KEYS[1], member)
  end
end

return count
`

var revokeAllLua = redis.NewScript(revokeAllScript)

// TokenStore is a Redis-backed store for refresh token records, keyed by
// token fingerprint. Records survive expiry for a retention window so that
// an expired token remains distinguishable from an unknown one.
type TokenStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewTokenStore creates a [TokenStore] backed by the given Redis client.
// prefix sets the Redis key namespace; retention controls how long records
// are kept past their expiry.
func NewTokenStore(redis redis.UniversalClient, prefix string, retention time.Duration) *TokenStore {
	return &TokenStore{
		redis:     redis,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *TokenStore) recordPrefix() string {
	return s.prefix + ":rt:"
}

func (s *TokenStore) recordKey(fingerprint [32]byte) string {
	return s.recordPrefix() + encodeFingerprint(fingerprint)
}

func (s *TokenStore) userKey(userID string) string {
	return s.prefix + ":rtu:" + userID
}

func encodeFingerprint(fingerprint [32]byte) string {
	return base64.RawURLEncoding.EncodeToString(fingerprint[:])
}

// Put persists a refresh record and indexes it under its user. The Redis TTL
// covers the record's lifetime plus the retention window.
func (s *TokenStore) Put(ctx context.Context, rec *RefreshRecord) error {
	data, err := EncodeRefresh(rec)
	if err != nil {
		return err
	}

	ttl := time.Until(time.Unix(rec.ExpiresAt, 0)) + s.retention
	if ttl < time.Second {
		ttl = time.Second
	}

	recordKey := s.recordKey(rec.Fingerprint)
	userKey := s.userKey(rec.UserID)
	member := encodeFingerprint(rec.Fingerprint)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey, data, ttl)
		pipe.SAdd(ctx, userKey, member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// Get retrieves a refresh record by fingerprint. The record's Fingerprint
// field is restored from the lookup key.
func (s *TokenStore) Get(ctx context.Context, fingerprint [32]byte) (*RefreshRecord, error) {
	data, err := s.redis.Get(ctx, s.recordKey(fingerprint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rec, err := DecodeRefresh(data)
	if err != nil {
		return nil, err
	}
	rec.Fingerprint = fingerprint

	return rec, nil
}

// LinkRotation atomically marks the record as revoked and links it to its
// successor. Returns [ErrNotFound] if the record does not exist and
// [ErrAlreadyRevoked] if another caller revoked it first.
func (s *TokenStore) LinkRotation(ctx context.Context, fingerprint [32]byte, replacedBy string, revokedAt int64) error {
	if len(replacedBy) != replacedBySlotSize {
		return errors.New("invalid replacedBy length")
	}

	res, err := linkRotationLua.Run(ctx, s.redis,
		[]string{s.recordKey(fingerprint)},
		revokedAt, replacedBy,
	).Slice()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return mapMutationStatus(res)
}

// Revoke atomically marks the record as revoked without linking a successor.
func (s *TokenStore) Revoke(ctx context.Context, fingerprint [32]byte, revokedAt int64) error {
	res, err := revokeLua.Run(ctx, s.redis,
		[]string{s.recordKey(fingerprint)},
		revokedAt,
	).Slice()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return mapMutationStatus(res)
}

func mapMutationStatus(res []interface{}) error {
	if len(res) == 0 {
		return errors.New("unexpected script reply")
	}
	status, ok := res[0].(int64)
	if !ok {
		return errors.New("unexpected script reply")
	}

	switch status {
	case linkStatusNotFound:
		return ErrNotFound
	case linkStatusAlreadyRevoked:
		return ErrAlreadyRevoked
	case linkStatusApplied:
		return nil
	default:
		return errors.New("unexpected script status")
	}
}

// RevokeAllForUser revokes every live refresh record belonging to the user
// and returns how many records were transitioned.
func (s *TokenStore) RevokeAllForUser(ctx context.Context, userID string, revokedAt int64) (int, error) {
	res, err := revokeAllLua.Run(ctx, s.redis,
		[]string{s.userKey(userID)},
		s.recordPrefix(), revokedAt,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return int(res), nil
}

// Delete removes a refresh record and its user index entry. Deleting a
// missing record is not an error.
func (s *TokenStore) Delete(ctx context.Context, fingerprint [32]byte, userID string) error {
	recordKey := s.recordKey(fingerprint)
	member := encodeFingerprint(fingerprint)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, recordKey)
		pipe.SRem(ctx, s.userKey(userID), member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// SweepExpired scans the record keyspace and removes every record whose
// retention window has elapsed. Returns the number of records removed.
//
// ATOMICITY NOTE: the scan, decode, and delete phases are not a single
// operation. A record rotated between phases is simply skipped on this run
// and collected on the next one.
func (s *TokenStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	var removed int

	iter := s.redis.Scan(ctx, 0, s.recordPrefix()+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		data, err := s.redis.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		rec, err := DecodeRefresh(data)
		if err != nil {
			// Unreadable blobs are garbage too.
			if delErr := s.redis.Del(ctx, key).Err(); delErr != nil {
				return removed, fmt.Errorf("%w: %v", ErrUnavailable, delErr)
			}
			removed++
			continue
		}

		if now.Unix() < rec.ExpiresAt+int64(s.retention/time.Second) {
			continue
		}

		member := key[len(s.recordPrefix()):]
		_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, s.userKey(rec.UserID), member)
			return nil
		})
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return removed, nil
}
