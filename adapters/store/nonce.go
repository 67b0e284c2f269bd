package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/layer-3/walletgate/core"
)

// DefaultNonceTTL is how long an issued nonce stays redeemable
const DefaultNonceTTL = 5 * time.Minute

const nonceBytes = 16

// cleanupInterval is how often expired nonces and revocations are purged
const cleanupInterval = time.Minute

// Option configures a store
type Option func(*options)

type options struct {
	ttl   time.Duration
	clock core.Clock
}

func defaultOptions() options {
	return options{
		ttl:   DefaultNonceTTL,
		clock: core.SystemClock{},
	}
}

// WithNonceTTL overrides the nonce lifetime
func WithNonceTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock sets the time source used for expiry checks
func WithClock(clock core.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func newNonce(address string, o options) (core.Nonce, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return core.Nonce{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := o.clock.Now()
	return core.Nonce{
		Address:   core.NormalizeAddress(address),
		Value:     hex.EncodeToString(buf),
		IssuedAt:  now,
		ExpiresAt: now.Add(o.ttl),
	}, nil
}
