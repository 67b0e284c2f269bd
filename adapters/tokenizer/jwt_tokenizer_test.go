package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/walletgate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa"

func newTestTokenizer(t *testing.T) (*JWTTokenizer, *core.ManualClock) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	clock := core.NewManualClock(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	return NewJWTTokenizer(key, "walletgate-test", 10*time.Minute, clock), clock
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	tk, clock := newTestTokenizer(t)

	issued, token, err := tk.Issue("user-1", testAddress)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, issued.ID)
	assert.Equal(t, strings.ToLower(testAddress), issued.Address)
	assert.Equal(t, clock.Now(), issued.IssuedAt)
	assert.Equal(t, clock.Now().Add(10*time.Minute), issued.ExpiresAt)

	clock.Advance(10*time.Minute - time.Second)
	session, err := tk.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.Subject)
	assert.Equal(t, strings.ToLower(testAddress), session.Address)
	assert.Equal(t, issued.ID, session.ID)
	assert.True(t, issued.ExpiresAt.Equal(session.ExpiresAt))
}

func TestVerifyExpired(t *testing.T) {
	tk, clock := newTestTokenizer(t)

	_, token, err := tk.Issue("user-1", testAddress)
	require.NoError(t, err)

	clock.Advance(10*time.Minute + time.Second)
	_, err = tk.Verify(token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestVerifyInvalid(t *testing.T) {
	tk, _ := newTestTokenizer(t)
	other, _ := newTestTokenizer(t)

	_, token, err := tk.Issue("user-1", testAddress)
	require.NoError(t, err)
	_, foreign, err := other.Issue("user-1", testAddress)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	claimsJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	claimsJSON = []byte(strings.Replace(string(claimsJSON), "user-1", "user-2", 1))
	tampered := parts[0] + "." + base64.RawURLEncoding.EncodeToString(claimsJSON) + "." + parts[2]

	hmac := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "walletgate-test",
			Audience:  jwt.ClaimStrings{AudienceAccess},
			ExpiresAt: jwt.NewNumericDate(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
		},
		Address: testAddress,
	})
	hmacToken, err := hmac.SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":        "not-a-token",
		"empty":          "",
		"foreign key":    foreign,
		"tampered":       tampered,
		"hmac algorithm": hmacToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tk.Verify(tok)
			assert.ErrorIs(t, err, core.ErrTokenInvalid)
		})
	}
}

func TestVerifyWrongIssuer(t *testing.T) {
	tk, clock := newTestTokenizer(t)
	other := NewJWTTokenizer(tk.signKey, "someone-else", time.Minute, clock)

	_, token, err := other.Issue("user-1", testAddress)
	require.NoError(t, err)

	_, err = tk.Verify(token)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestVerifyExpiredWrongIssuer(t *testing.T) {
	tk, clock := newTestTokenizer(t)
	other := NewJWTTokenizer(tk.signKey, "someone-else", time.Minute, clock)

	_, token, err := other.Issue("user-1", testAddress)
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	_, err = tk.Verify(token)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
	assert.NotErrorIs(t, err, core.ErrTokenExpired)
}
