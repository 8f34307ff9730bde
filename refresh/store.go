package refresh

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrReuseDetected signals that an already-rotated token was presented.
	// The family record is destroyed as a side effect.
	ErrReuseDetected = errors.New("refresh token reuse detected")
	// ErrFamilyNotFound means the family record is absent: expired, revoked,
	// or already destroyed by reuse detection.
	ErrFamilyNotFound = errors.New("refresh token family not found")
	// ErrRedisUnavailable wraps infrastructure failures from the store.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusReuse    int64 = 1
	rotateStatusRotated  int64 = 2
)

// The record value is hex(sha256(secret)) followed by "\n" + identity +
// "\n" + scope. The hash prefix is fixed-width (64 hex chars) so the script
// can slice it without parsing.
const rotateScript = `
local v = redis.call("GET", KEYS[1])
if not v then
  return {0, ""}
end
local cur = string.sub(v, 1, 64)
local rest = string.sub(v, 66)
if cur ~= ARGV[1] then
  redis.call("DEL", KEYS[1])
  return {1, rest}
end
redis.call("SET", KEYS[1], ARGV[2] .. string.sub(v, 65), "PX", ARGV[3])
return {2, rest}
`

var rotateLua = redis.NewScript(rotateScript)

// Config holds refresh-family store parameters.
type Config struct {
	// Prefix namespaces all keys written by the store.
	Prefix string
	// TTL is the lifetime of a family record. Rotation re-arms it, so a
	// family stays alive as long as it keeps being used within the TTL.
	TTL time.Duration
}

// Store keeps at most one valid refresh-token hash per family in Redis.
// Rotation is a compare-and-swap executed server-side, so concurrent
// rotations of the same family have exactly one winner; every loser sees
// reuse detection and the family is gone afterwards.
type Store struct {
	redis  redis.UniversalClient
	config Config
}

// NewStore creates a family store backed by the given Redis client.
func NewStore(client redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "ac"
	}
	return &Store{redis: client, config: cfg}
}

func (s *Store) key(family uuid.UUID) string {
	return s.config.Prefix + ":rf:" + family.String()
}

func (s *Store) replayKey(family uuid.UUID) string {
	return s.config.Prefix + ":rf-replay:" + family.String()
}

// Create persists a new family with the given current-token hash. Fails if
// the family already exists.
func (s *Store) Create(ctx context.Context, family uuid.UUID, hash [32]byte, identity, scope string) error {
	if strings.ContainsRune(identity, '\n') || strings.ContainsRune(scope, '\n') {
		return errors.New("identity and scope must not contain newlines")
	}

	value := hex.EncodeToString(hash[:]) + "\n" + identity + "\n" + scope

	ok, err := s.redis.SetNX(ctx, s.key(family), value, s.config.TTL).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return errors.New("refresh token family already exists")
	}
	return nil
}

// Rotate atomically swaps the stored hash for nextHash iff providedHash is
// the current one, returning the family's identity and scope. A hash
// mismatch destroys the family and returns [ErrReuseDetected]; an absent
// record returns [ErrFamilyNotFound].
func (s *Store) Rotate(ctx context.Context, family uuid.UUID, providedHash, nextHash [32]byte) (identity, scope string, err error) {
	res, err := rotateLua.Run(ctx, s.redis,
		[]string{s.key(family)},
		hex.EncodeToString(providedHash[:]),
		hex.EncodeToString(nextHash[:]),
		s.config.TTL.Milliseconds(),
	).Result()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) != 2 {
		return "", "", fmt.Errorf("%w: unexpected rotate reply", ErrRedisUnavailable)
	}
	status, _ := reply[0].(int64)
	rest, _ := reply[1].(string)

	switch status {
	case rotateStatusRotated:
		identity, scope, err = splitRecord(rest)
		return identity, scope, err
	case rotateStatusReuse:
		return "", "", ErrReuseDetected
	default:
		return "", "", ErrFamilyNotFound
	}
}

// Revoke destroys a family so no token in it can be rotated again.
// Idempotent: revoking an absent family is not an error.
func (s *Store) Revoke(ctx context.Context, family uuid.UUID) error {
	if err := s.redis.Del(ctx, s.key(family)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// TrackReplay leaves a marker for operators after reuse detection. Best
// effort; the family itself is already destroyed by Rotate.
func (s *Store) TrackReplay(ctx context.Context, family uuid.UUID, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.replayKey(family), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func splitRecord(rest string) (string, string, error) {
	idx := strings.IndexByte(rest, '\n')
	if idx < 0 {
		return "", "", fmt.Errorf("%w: corrupt family record", ErrRedisUnavailable)
	}
	return rest[:idx], rest[idx+1:], nil
}
