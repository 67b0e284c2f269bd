package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Nonce is a pending sign-in challenge bound to a wallet address
type Nonce struct {
	Address   string    // Lowercase hex address the nonce was issued for
	Value     string    // Random challenge value embedded in the signed message
	IssuedAt  time.Time // When the nonce was issued
	ExpiresAt time.Time // When the nonce stops being accepted
	Consumed  bool      // Set once the nonce has been redeemed
}

// Expired reports whether the nonce is no longer valid at now.
func (n Nonce) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

// VerifiedIdentity is the result of a successful challenge verification
type VerifiedIdentity struct {
	Address string // Lowercase hex address recovered from the signature
}

// Session represents the claims carried by a session token
type Session struct {
	ID        string    // Unique token identifier (jti)
	Subject   string    // User identity the session was issued to
	Address   string    // Verified wallet address
	IssuedAt  time.Time // When the session was created
	ExpiresAt time.Time // When the session stops being accepted
}

// AuthResult is returned by signup and login
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

// User is a registered account as seen through the user directory
type User struct {
	ID        uuid.UUID
	Address   string
	UserName  string
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
}

// NormalizeAddress lowercases a hex wallet address so it can be used as a key.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
