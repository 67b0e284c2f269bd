package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// loadSigningKey reads a P-256 key from inline PEM or a file path. Without a
// key an ephemeral one is generated, so sessions do not survive a restart.
func loadSigningKey(source string, logger zerolog.Logger) (*ecdsa.PrivateKey, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		logger.Warn().Msg("JWT_PRIVATE_KEY not set, generating an ephemeral signing key")
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	pemBytes := []byte(source)
	if !strings.HasPrefix(source, "-----BEGIN") {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read signing key: %w", err)
		}
		pemBytes = data
	}

	key, err := jwt.ParseECPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	if key.Curve != elliptic.P256() {
		return nil, errors.New("signing key must be on the P-256 curve for ES256")
	}
	return key, nil
}
