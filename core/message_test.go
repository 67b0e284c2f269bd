package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func sampleMessage() *SignedMessage {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return &SignedMessage{
		Domain:         "app.example.com",
		Address:        testAddress,
		Statement:      "Sign in to the app.",
		URI:            "https://app.example.com/login",
		Version:        "1",
		ChainID:        137,
		Nonce:          "0f1e2d3c4b5a69788796a5b4c3d2e1f0",
		IssuedAt:       issued,
		ExpirationTime: issued.Add(10 * time.Minute),
		NotBefore:      issued.Add(-time.Minute),
		RequestID:      "req-42",
		Resources:      []string{"https://app.example.com/a", "ipfs://bafy"},
	}
}

func TestParseMessageRoundTrip(t *testing.T) {
	want := sampleMessage()
	raw := want.String()

	got, err := ParseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, got.Raw)
	assert.Equal(t, want.Domain, got.Domain)
	assert.Equal(t, want.Address, got.Address)
	assert.Equal(t, want.Statement, got.Statement)
	assert.Equal(t, want.URI, got.URI)
	assert.Equal(t, want.Version, got.Version)
	assert.Equal(t, want.ChainID, got.ChainID)
	assert.Equal(t, want.Nonce, got.Nonce)
	assert.True(t, want.IssuedAt.Equal(got.IssuedAt))
	assert.True(t, want.ExpirationTime.Equal(got.ExpirationTime))
	assert.True(t, want.NotBefore.Equal(got.NotBefore))
	assert.Equal(t, want.RequestID, got.RequestID)
	assert.Equal(t, want.Resources, got.Resources)
}

func TestParseMessageMinimal(t *testing.T) {
	raw := "localhost:3000 wants you to sign in with your Ethereum account:\n" +
		testAddress + "\n\n\n" +
		"URI: http://localhost:3000\n" +
		"Version: 1\n" +
		"Chain ID: 1\n" +
		"Nonce: abc12345\n" +
		"Issued At: 2025-01-01T12:00:00Z\n" +
		"Expiration Time: 2025-01-01T12:10:00.5Z"

	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:3000", msg.Domain)
	assert.Equal(t, "abc12345", msg.Nonce)
	assert.Empty(t, msg.Statement)
	assert.Empty(t, msg.Resources)
	assert.True(t, msg.NotBefore.IsZero())
	assert.Equal(t, 500*time.Millisecond, time.Duration(msg.ExpirationTime.Nanosecond()))
}

func TestParseMessageCRLF(t *testing.T) {
	raw := strings.ReplaceAll(sampleMessage().String(), "\n", "\r\n")

	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "0f1e2d3c4b5a69788796a5b4c3d2e1f0", msg.Nonce)
}

func TestParseMessageMalformed(t *testing.T) {
	valid := sampleMessage().String()

	for name, raw := range map[string]string{
		"empty":              "",
		"single line":        "app.example.com wants you to sign in with your Ethereum account:",
		"no header":          strings.Replace(valid, "wants you to sign in", "asks you to log in", 1),
		"empty domain":       strings.Replace(valid, "app.example.com wants", " wants", 1),
		"bad address":        strings.Replace(valid, testAddress, "0x1234", 1),
		"missing nonce":      strings.Replace(valid, "Nonce: ", "Nonsense: ", 1),
		"missing expiration": strings.Replace(valid, "Expiration Time: ", "Expires: ", 1),
		"bad expiration":     strings.Replace(valid, "Expiration Time: 2025-01-01T12:10:00Z", "Expiration Time: tomorrow", 1),
		"bad chain id":       strings.Replace(valid, "Chain ID: 137", "Chain ID: polygon", 1),
		"address without 0x": strings.Replace(valid, testAddress, strings.TrimPrefix(testAddress, "0x"), 1),
		"repeated nonce":     valid + "\nNonce: 1234567890abcdef",
		"repeated expiration": strings.Replace(valid, "Request ID: req-42",
			"Request ID: req-42\nExpiration Time: 2099-01-01T00:00:00Z", 1),
		"missing uri": strings.Replace(valid, "URI: https://app.example.com/login\n", "", 1),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMessage(raw)
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestMessageStringDefaults(t *testing.T) {
	msg := &SignedMessage{
		Domain:         "app.example.com",
		Address:        testAddress,
		URI:            "https://app.example.com",
		Nonce:          "abcdef12",
		IssuedAt:       time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC),
		ExpirationTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	out := msg.String()
	assert.Contains(t, out, testAddress+"\n\n\nURI: ")
	assert.Contains(t, out, "Version: 1\n")
	assert.Contains(t, out, "Chain ID: 1\n")
	assert.NotContains(t, out, "Not Before")
	assert.True(t, strings.HasSuffix(out, "Expiration Time: 2025-01-01T00:00:00Z"))

	parsed, err := ParseMessage(out)
	require.NoError(t, err)
	assert.Equal(t, "abcdef12", parsed.Nonce)
	assert.Equal(t, int64(1), parsed.ChainID)
}

func TestChallengeReason(t *testing.T) {
	assert.Equal(t, "ok", ChallengeReason(nil))
	assert.Equal(t, "nonce_not_found", ChallengeReason(ErrNonceNotFound))
	assert.Equal(t, "invalid_signature", ChallengeReason(errors.Join(errors.New("ctx"), ErrInvalidSignature)))
	assert.Equal(t, "other", ChallengeReason(ErrDirectory))

	assert.True(t, IsChallengeError(ErrDomainMismatch))
	assert.True(t, IsChallengeError(ErrNonceExpired))
	assert.False(t, IsChallengeError(ErrUserNotFound))
	assert.False(t, IsChallengeError(ErrTokenExpired))
	assert.False(t, IsChallengeError(nil))
}
