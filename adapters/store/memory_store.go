package store

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/layer-3/walletgate/core"
)

// MemoryStore is an in-memory nonce and revocation store. It does not scale
// past a single instance.
type MemoryStore struct {
	nonces            map[string]core.Nonce
	invalidatedTokens map[string]time.Time
	mu                sync.Mutex
	opts              options
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		nonces:            make(map[string]core.Nonce),
		invalidatedTokens: make(map[string]time.Time),
		opts:              o,
	}
}

// Issue replaces the pending nonce for address with a fresh one
func (s *MemoryStore) Issue(ctx context.Context, address string) (core.Nonce, error) {
	nonce, err := newNonce(address, s.opts)
	if err != nil {
		return core.Nonce{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nonces[nonce.Address] = nonce
	return nonce, nil
}

// Peek returns the pending nonce for address
func (s *MemoryStore) Peek(ctx context.Context, address string) (core.Nonce, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, ok := s.nonces[core.NormalizeAddress(address)]
	if !ok || nonce.Consumed || nonce.Expired(s.opts.clock.Now()) {
		return core.Nonce{}, core.ErrNonceNotFound
	}
	return nonce, nil
}

// Consume redeems value for address. The whole check-and-mark runs under the
// store lock so only one caller can win.
func (s *MemoryStore) Consume(ctx context.Context, address, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := core.NormalizeAddress(address)
	nonce, ok := s.nonces[key]
	if !ok || nonce.Consumed {
		return core.ErrNonceNotFound
	}

	if nonce.Expired(s.opts.clock.Now()) {
		delete(s.nonces, key)
		return core.ErrNonceExpired
	}

	if subtle.ConstantTimeCompare([]byte(nonce.Value), []byte(value)) != 1 {
		return core.ErrNonceMismatch
	}

	nonce.Consumed = true
	s.nonces[key] = nonce
	return nil
}

// InvalidateToken marks a token as invalidated
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiryTime := s.opts.clock.Now().Add(expiry)

	// Never shorten an existing invalidation
	if stored, exists := s.invalidatedTokens[tokenID]; exists && stored.After(expiryTime) {
		return nil
	}
	s.invalidatedTokens[tokenID] = expiryTime
	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiryTime, exists := s.invalidatedTokens[tokenID]
	if !exists {
		return false, nil
	}

	return s.opts.clock.Now().Before(expiryTime), nil
}

// Run purges consumed and expired entries until ctx is done
func (s *MemoryStore) Run(ctx context.Context) error {
	t := time.NewTicker(cleanupInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.cleanup()
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.clock.Now()
	for key, nonce := range s.nonces {
		if nonce.Consumed || nonce.Expired(now) {
			delete(s.nonces, key)
		}
	}
	for tokenID, expiry := range s.invalidatedTokens {
		if !now.Before(expiry) {
			delete(s.invalidatedTokens, tokenID)
		}
	}
}
