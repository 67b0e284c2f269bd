package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, strings.ToLower(testAddress), NormalizeAddress("  "+testAddress+"\n"))
}

func TestNonceExpired(t *testing.T) {
	expires := time.Date(2025, 1, 1, 12, 5, 0, 0, time.UTC)
	n := Nonce{ExpiresAt: expires}

	assert.False(t, n.Expired(expires.Add(-time.Second)))
	assert.True(t, n.Expired(expires))
	assert.True(t, n.Expired(expires.Add(time.Second)))
}
