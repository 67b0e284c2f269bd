package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/layer-3/walletgate/adapters/store"
	"github.com/layer-3/walletgate/adapters/tokenizer"
	"github.com/layer-3/walletgate/adapters/verifier"
	"github.com/layer-3/walletgate/core"
	"github.com/layer-3/walletgate/ports"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testDomain   = "app.example.com"
	testNonceTTL = 5 * time.Minute
	testTokenTTL = 15 * time.Minute
)

var testStart = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// wallet signs sign-in messages the way a browser wallet does
type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) *wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

func (w *wallet) message(nonce string, now time.Time, edits ...func(*core.SignedMessage)) string {
	msg := &core.SignedMessage{
		Domain:         testDomain,
		Address:        w.address,
		Statement:      "Sign in to the app.",
		URI:            "https://" + testDomain,
		Version:        "1",
		ChainID:        1,
		Nonce:          nonce,
		IssuedAt:       now,
		ExpirationTime: now.Add(10 * time.Minute),
	}
	for _, edit := range edits {
		edit(msg)
	}
	return msg.String()
}

func (w *wallet) sign(t *testing.T, message string) []byte {
	t.Helper()
	sig, err := verifier.Sign(w.key, []byte(message))
	require.NoError(t, err)
	return sig
}

func (w *wallet) signHex(t *testing.T, message string) string {
	return hexutil.Encode(w.sign(t, message))
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) FindByAddress(ctx context.Context, address string) (*core.User, error) {
	args := m.Called(ctx, address)
	user, _ := args.Get(0).(*core.User)
	return user, args.Error(1)
}

func (m *mockDirectory) FindByID(ctx context.Context, id uuid.UUID) (*core.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*core.User)
	return user, args.Error(1)
}

func (m *mockDirectory) Create(ctx context.Context, address string, profile core.Profile) (*core.User, error) {
	args := m.Called(ctx, address, profile)
	user, _ := args.Get(0).(*core.User)
	return user, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event ports.AuthEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func eventKind(kind string) interface{} {
	return mock.MatchedBy(func(e ports.AuthEvent) bool { return e.Kind == kind })
}

type fixture struct {
	clock      *core.ManualClock
	store      *store.MemoryStore
	challenges *ChallengeService
	tokenizer  *tokenizer.JWTTokenizer
	directory  *mockDirectory
	events     *mockPublisher
	auth       *AuthService
}

func newFixture(t *testing.T, opts ...AuthOption) *fixture {
	t.Helper()
	clock := core.NewManualClock(testStart)
	nonces := store.NewMemoryStore(store.WithClock(clock), store.WithNonceTTL(testNonceTTL))

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	f := &fixture{
		clock:      clock,
		store:      nonces,
		challenges: NewChallengeService(verifier.NewEthVerifier(), nonces, testDomain, clock, zerolog.Nop()),
		tokenizer:  tokenizer.NewJWTTokenizer(key, "walletgate-test", testTokenTTL, clock),
		directory:  &mockDirectory{},
		events:     &mockPublisher{},
	}
	opts = append([]AuthOption{WithAuthClock(clock)}, opts...)
	f.auth = NewAuthService(f.challenges, f.tokenizer, f.directory, nonces, f.events, opts...)
	return f
}

// signedChallenge issues a nonce for w and returns the signed message
func (f *fixture) signedChallenge(t *testing.T, w *wallet) (string, string) {
	t.Helper()
	nonce, err := f.auth.Nonce(context.Background(), w.address)
	require.NoError(t, err)
	msg := w.message(nonce, f.clock.Now())
	return msg, w.signHex(t, msg)
}

func testUser(address string) *core.User {
	return &core.User{
		ID:        uuid.New(),
		Address:   core.NormalizeAddress(address),
		UserName:  "satoshi",
		Email:     "satoshi@example.com",
		CreatedAt: testStart,
	}
}
