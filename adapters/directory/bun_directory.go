package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/layer-3/walletgate/core"
	"github.com/layer-3/walletgate/ports"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// BunDirectory is a UserDirectory backed by a bun database
type BunDirectory struct {
	db    *bun.DB
	clock core.Clock
}

type user struct {
	bun.BaseModel `bun:"table:users"`

	ID        uuid.UUID `bun:",pk"`
	Address   string    `bun:",unique,notnull"`
	UserName  string    `bun:",notnull"`
	Email     string    `bun:",notnull"`
	FirstName string
	LastName  string
	CreatedAt time.Time `bun:",notnull"`
}

// OpenSQLite opens a sqlite database through sqliteshim and wraps it in bun.
// Use ":memory:" for a throwaway database.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dsn == ":memory:" {
		// each connection to :memory: is a separate database
		sqldb.SetMaxOpenConns(1)
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// NewBunDirectory creates the users table if needed
func NewBunDirectory(ctx context.Context, db *bun.DB, clock core.Clock) (*BunDirectory, error) {
	if clock == nil {
		clock = core.SystemClock{}
	}
	d := &BunDirectory{
		db:    db,
		clock: clock,
	}
	_, err := db.NewCreateTable().
		Model((*user)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create user directory: %w", err)
	}
	return d, nil
}

func (d *BunDirectory) FindByAddress(ctx context.Context, address string) (*core.User, error) {
	u := new(user)
	err := d.db.NewSelect().
		Model(u).
		Where("address = ?", core.NormalizeAddress(address)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by address: %w", err)
	}
	return toDomain(u), nil
}

func (d *BunDirectory) FindByID(ctx context.Context, id uuid.UUID) (*core.User, error) {
	u := new(user)
	err := d.db.NewSelect().
		Model(u).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return toDomain(u), nil
}

// Create registers a user for address. The unique index on address turns a
// concurrent duplicate signup into core.ErrUserAlreadyExists.
func (d *BunDirectory) Create(ctx context.Context, address string, profile core.Profile) (*core.User, error) {
	u := &user{}
	copier.Copy(u, &profile)
	u.ID = uuid.New()
	u.Address = core.NormalizeAddress(address)
	u.CreatedAt = d.clock.Now()

	_, err := d.db.NewInsert().
		Model(u).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return toDomain(u), nil
}

func toDomain(u *user) *core.User {
	usr := &core.User{}
	copier.Copy(usr, u)
	return usr
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

var _ ports.UserDirectory = (*BunDirectory)(nil)
