package ports

import (
	"context"
	"time"

	"github.com/layer-3/walletgate/core"
)

// NonceStore holds at most one pending nonce per address
type NonceStore interface {
	// Issue generates a fresh nonce for address, replacing any previous one
	Issue(ctx context.Context, address string) (core.Nonce, error)

	// Peek returns the pending nonce for address, or core.ErrNonceNotFound
	Peek(ctx context.Context, address string) (core.Nonce, error)

	// Consume redeems value for address exactly once
	Consume(ctx context.Context, address, value string) error
}

// RevocationStore interface for session token invalidation
type RevocationStore interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
}
