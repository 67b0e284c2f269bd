package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/layer-3/walletgate/core"
	"github.com/redis/go-redis/v9"
)

// expiredRetention keeps expired nonces around long enough to report
// ErrNonceExpired instead of ErrNonceNotFound.
const expiredRetention = time.Minute

const (
	consumeNotFound = 0
	consumeOK       = 1
	consumeExpired  = 2
	consumeMismatch = 3
)

// consumeScript compares and deletes the stored nonce in one step.
// KEYS[1] nonce key, ARGV[1] candidate digest, ARGV[2] now in unix millis.
// Lua string equality short-circuits, so only digests are compared there.
var consumeScript = redis.NewScript(`
local stored = redis.call('HGET', KEYS[1], 'digest')
if not stored then
  return 0
end
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_at'))
if expires <= tonumber(ARGV[2]) then
  redis.call('DEL', KEYS[1])
  return 2
end
if stored ~= ARGV[1] then
  return 3
end
redis.call('DEL', KEYS[1])
return 1
`)

// RedisStore is a Redis implementation of the nonce and revocation stores,
// suitable for running several gateway instances.
type RedisStore struct {
	client        redis.UniversalClient
	noncePrefix   string
	revokedPrefix string
	opts          options
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &RedisStore{
		client:        client,
		noncePrefix:   "walletgate:nonce:",
		revokedPrefix: "walletgate:invalidated:",
		opts:          o,
	}
}

// Issue replaces the pending nonce for address with a fresh one
func (s *RedisStore) Issue(ctx context.Context, address string) (core.Nonce, error) {
	nonce, err := newNonce(address, s.opts)
	if err != nil {
		return core.Nonce{}, err
	}

	key := s.noncePrefix + nonce.Address
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"value", nonce.Value,
			"digest", nonceDigest(nonce.Value),
			"issued_at", nonce.IssuedAt.UnixMilli(),
			"expires_at", nonce.ExpiresAt.UnixMilli(),
		)
		pipe.PExpire(ctx, key, s.opts.ttl+expiredRetention)
		return nil
	})
	if err != nil {
		return core.Nonce{}, fmt.Errorf("failed to store nonce: %w", err)
	}

	return nonce, nil
}

// Peek returns the pending nonce for address
func (s *RedisStore) Peek(ctx context.Context, address string) (core.Nonce, error) {
	address = core.NormalizeAddress(address)

	fields, err := s.client.HGetAll(ctx, s.noncePrefix+address).Result()
	if err != nil {
		return core.Nonce{}, fmt.Errorf("failed to read nonce: %w", err)
	}
	if len(fields) == 0 {
		return core.Nonce{}, core.ErrNonceNotFound
	}

	issuedAt, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return core.Nonce{}, fmt.Errorf("failed to decode nonce: %w", err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return core.Nonce{}, fmt.Errorf("failed to decode nonce: %w", err)
	}

	nonce := core.Nonce{
		Address:   address,
		Value:     fields["value"],
		IssuedAt:  time.UnixMilli(issuedAt).UTC(),
		ExpiresAt: time.UnixMilli(expiresAt).UTC(),
	}
	if nonce.Expired(s.opts.clock.Now()) {
		return core.Nonce{}, core.ErrNonceNotFound
	}
	return nonce, nil
}

// Consume redeems value for address through consumeScript
func (s *RedisStore) Consume(ctx context.Context, address, value string) error {
	key := s.noncePrefix + core.NormalizeAddress(address)
	now := s.opts.clock.Now().UnixMilli()

	result, err := consumeScript.Run(ctx, s.client, []string{key}, nonceDigest(value), now).Int()
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}

	switch result {
	case consumeOK:
		return nil
	case consumeExpired:
		return core.ErrNonceExpired
	case consumeMismatch:
		return core.ErrNonceMismatch
	case consumeNotFound:
		return core.ErrNonceNotFound
	default:
		return fmt.Errorf("failed to consume nonce: unexpected result %d", result)
	}
}

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	if expiry <= 0 {
		return nil
	}
	key := s.revokedPrefix + tokenID

	if err := s.client.Set(ctx, key, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	return nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	key := s.revokedPrefix + tokenID

	val, err := s.client.Exists(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}

	return val > 0, nil
}

func nonceDigest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
