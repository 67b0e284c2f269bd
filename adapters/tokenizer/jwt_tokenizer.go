package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/walletgate/core"
)

const AudienceAccess = "session:access"

// DefaultSessionTTL is the session lifetime when none is configured
const DefaultSessionTTL = 15 * time.Minute

// JWTTokenizer issues and validates ES256 session tokens. The signing key is
// supplied by the caller.
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	issuer  string
	ttl     time.Duration
	clock   core.Clock
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, issuer string, ttl time.Duration, clock core.Clock) *JWTTokenizer {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &JWTTokenizer{
		signKey: signKey,
		issuer:  issuer,
		ttl:     ttl,
		clock:   clock,
	}
}

// Issue mints a session token for subject and address
func (j *JWTTokenizer) Issue(subject, address string) (*core.Session, string, error) {
	now := j.clock.Now().Truncate(jwt.TimePrecision)
	session := &core.Session{
		ID:        uuid.New().String(),
		Subject:   subject,
		Address:   core.NormalizeAddress(address),
		IssuedAt:  now,
		ExpiresAt: now.Add(j.ttl),
	}

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   session.Subject,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceAccess},
		},
		Address: session.Address,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return session, signedToken, nil
}

// Verify parses a session token and returns its claims
func (j *JWTTokenizer) Verify(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	},
		jwt.WithAudience(AudienceAccess),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithTimeFunc(j.clock.Now),
	)
	if err != nil {
		// jwt joins every failed check; a token minted for someone else is
		// invalid even when it has also expired.
		switch {
		case errors.Is(err, jwt.ErrTokenInvalidAudience),
			errors.Is(err, jwt.ErrTokenInvalidIssuer),
			errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
			errors.Is(err, jwt.ErrTokenSignatureInvalid),
			errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %v", core.ErrTokenInvalid, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, core.ErrTokenExpired
		default:
			return nil, fmt.Errorf("%w: %v", core.ErrTokenInvalid, err)
		}
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, core.ErrTokenInvalid
	}
	if claims.Subject == "" || claims.Address == "" || claims.ID == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing claims", core.ErrTokenInvalid)
	}

	return &core.Session{
		ID:        claims.ID,
		Subject:   claims.Subject,
		Address:   claims.Address,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
