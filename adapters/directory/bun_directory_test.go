package directory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/walletgate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0xAbCdEf0123456789aBcDeF0123456789AbCdEf01"

func newTestDirectory(t *testing.T) (*BunDirectory, *core.ManualClock) {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := core.NewManualClock(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	d, err := NewBunDirectory(context.Background(), db, clock)
	require.NoError(t, err)
	return d, clock
}

func TestCreateAndFind(t *testing.T) {
	d, clock := newTestDirectory(t)
	ctx := context.Background()

	profile := core.Profile{
		UserName:  "satoshi",
		Email:     "satoshi@example.com",
		FirstName: "Satoshi",
		LastName:  "Nakamoto",
	}
	created, err := d.Create(ctx, testAddress, profile)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, core.NormalizeAddress(testAddress), created.Address)
	assert.Equal(t, "satoshi", created.UserName)
	assert.Equal(t, "satoshi@example.com", created.Email)
	assert.Equal(t, "Satoshi", created.FirstName)
	assert.Equal(t, "Nakamoto", created.LastName)
	assert.True(t, clock.Now().Equal(created.CreatedAt))

	byAddress, err := d.FindByAddress(ctx, testAddress)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byAddress.ID)
	assert.Equal(t, created.Email, byAddress.Email)

	byID, err := d.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Address, byID.Address)
	assert.Equal(t, created.UserName, byID.UserName)
}

func TestFindMissing(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	_, err := d.FindByAddress(ctx, testAddress)
	assert.ErrorIs(t, err, core.ErrUserNotFound)

	_, err = d.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, core.ErrUserNotFound)
}

func TestCreateDuplicateAddress(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	_, err := d.Create(ctx, testAddress, core.Profile{UserName: "first", Email: "first@example.com"})
	require.NoError(t, err)

	_, err = d.Create(ctx, core.NormalizeAddress(testAddress), core.Profile{UserName: "second", Email: "second@example.com"})
	assert.ErrorIs(t, err, core.ErrUserAlreadyExists)
}
