package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/walletgate/core"
	"github.com/layer-3/walletgate/ports"
	"github.com/rs/zerolog"
)

// ChallengeService issues sign-in nonces and verifies the signed messages
// that redeem them.
type ChallengeService struct {
	verifier ports.SignatureVerifier
	store    ports.NonceStore
	domain   string
	clock    core.Clock
	logger   zerolog.Logger
}

// NewChallengeService creates a new challenge service. An empty domain
// disables the domain check.
func NewChallengeService(
	verifier ports.SignatureVerifier,
	store ports.NonceStore,
	domain string,
	clock core.Clock,
	logger zerolog.Logger,
) *ChallengeService {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &ChallengeService{
		verifier: verifier,
		store:    store,
		domain:   domain,
		clock:    clock,
		logger:   logger,
	}
}

// CreateChallenge issues a fresh nonce for address, replacing any pending one
func (s *ChallengeService) CreateChallenge(ctx context.Context, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", core.ErrInvalidAddress
	}

	nonce, err := s.store.Issue(ctx, address)
	if err != nil {
		return "", fmt.Errorf("failed to issue nonce: %w", err)
	}
	challengesIssued.Inc()

	s.logger.Debug().
		Str("address", nonce.Address).
		Time("expires_at", nonce.ExpiresAt).
		Msg("nonce issued")

	return nonce.Value, nil
}

// Verify checks a signed sign-in message and redeems its nonce. The nonce is
// only consumed once every other check has passed.
func (s *ChallengeService) Verify(ctx context.Context, rawMessage string, signature []byte) (*core.VerifiedIdentity, error) {
	identity, err := s.verify(ctx, rawMessage, signature)
	challengeVerifications.WithLabelValues(core.ChallengeReason(err)).Inc()
	if err != nil {
		s.logger.Info().
			Str("reason", core.ChallengeReason(err)).
			Err(err).
			Msg("challenge verification failed")
		return nil, err
	}
	return identity, nil
}

func (s *ChallengeService) verify(ctx context.Context, rawMessage string, signature []byte) (*core.VerifiedIdentity, error) {
	recovered, err := s.verifier.RecoverAddress([]byte(rawMessage), signature)
	if err != nil {
		return nil, err
	}

	msg, err := core.ParseMessage(rawMessage)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(msg.Address, recovered.Hex()) {
		return nil, fmt.Errorf("%w: message names %s, signed by %s", core.ErrAddressMismatch, msg.Address, recovered.Hex())
	}

	now := s.clock.Now()
	if !now.Before(msg.ExpirationTime) {
		return nil, core.ErrMessageExpired
	}
	if !msg.NotBefore.IsZero() && now.Before(msg.NotBefore) {
		return nil, core.ErrMessageNotYetValid
	}

	if s.domain != "" && msg.Domain != s.domain {
		return nil, fmt.Errorf("%w: got %q", core.ErrDomainMismatch, msg.Domain)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	address := core.NormalizeAddress(recovered.Hex())
	if err := s.store.Consume(ctx, address, msg.Nonce); err != nil {
		return nil, err
	}

	return &core.VerifiedIdentity{Address: address}, nil
}
