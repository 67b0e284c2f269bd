package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/layer-3/walletgate/core"
)

// UserDirectory is the user profile store the gateway resolves identities
// against. Lookups return core.ErrUserNotFound when nothing matches; Create
// returns core.ErrUserAlreadyExists when the address is taken.
type UserDirectory interface {
	FindByAddress(ctx context.Context, address string) (*core.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*core.User, error)
	Create(ctx context.Context, address string, profile core.Profile) (*core.User, error)
}
