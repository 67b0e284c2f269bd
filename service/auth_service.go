package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/layer-3/walletgate/core"
	"github.com/layer-3/walletgate/ports"
	"github.com/rs/zerolog"
)

// DefaultDirectoryTimeout bounds a single user directory call
const DefaultDirectoryTimeout = 5 * time.Second

// AuthService handles authentication business logic
type AuthService struct {
	challenges  *ChallengeService
	tokenizer   ports.Tokenizer
	directory   ports.UserDirectory
	revocations ports.RevocationStore
	eventPub    ports.EventPublisher

	clock            core.Clock
	directoryTimeout time.Duration
	logger           zerolog.Logger
}

// AuthOption configures an AuthService
type AuthOption func(*AuthService)

// WithDirectoryTimeout overrides DefaultDirectoryTimeout
func WithDirectoryTimeout(d time.Duration) AuthOption {
	return func(s *AuthService) {
		if d > 0 {
			s.directoryTimeout = d
		}
	}
}

func WithAuthClock(clock core.Clock) AuthOption {
	return func(s *AuthService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(logger zerolog.Logger) AuthOption {
	return func(s *AuthService) {
		s.logger = logger
	}
}

// NewAuthService creates a new authentication service
func NewAuthService(
	challenges *ChallengeService,
	tokenizer ports.Tokenizer,
	directory ports.UserDirectory,
	revocations ports.RevocationStore,
	eventPub ports.EventPublisher,
	opts ...AuthOption,
) *AuthService {
	s := &AuthService{
		challenges:       challenges,
		tokenizer:        tokenizer,
		directory:        directory,
		revocations:      revocations,
		eventPub:         eventPub,
		clock:            core.SystemClock{},
		directoryTimeout: DefaultDirectoryTimeout,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Nonce issues a sign-in nonce for address
func (s *AuthService) Nonce(ctx context.Context, address string) (string, error) {
	return s.challenges.CreateChallenge(ctx, address)
}

// Login authenticates an existing user from a signed sign-in message
func (s *AuthService) Login(ctx context.Context, message, signature string) (*core.AuthResult, error) {
	identity, err := s.verify(ctx, message, signature)
	if err != nil {
		return nil, err
	}

	user, err := s.findByAddress(ctx, identity.Address)
	if err != nil {
		return nil, err
	}

	return s.startSession(ctx, ports.EventLogin, user)
}

// Signup registers a new user from a signed sign-in message and logs them in
func (s *AuthService) Signup(ctx context.Context, message, signature string, profile core.Profile) (*core.AuthResult, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	identity, err := s.verify(ctx, message, signature)
	if err != nil {
		return nil, err
	}

	existing, err := s.findByAddress(ctx, identity.Address)
	switch {
	case err == nil:
		s.logger.Info().Str("address", identity.Address).Str("user_id", existing.ID.String()).Msg("signup for registered address")
		return nil, core.ErrUserAlreadyExists
	case !errors.Is(err, core.ErrUserNotFound):
		return nil, err
	}

	var user *core.User
	err = s.withDirectory(ctx, func(ctx context.Context) error {
		user, err = s.directory.Create(ctx, identity.Address, profile)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("address", user.Address).Str("user_id", user.ID.String()).Msg("user registered")

	return s.startSession(ctx, ports.EventSignup, user)
}

// Authenticate validates a session token and checks it has not been revoked
func (s *AuthService) Authenticate(ctx context.Context, token string) (*core.Session, error) {
	session, err := s.tokenizer.Verify(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsTokenInvalidated(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		return nil, core.ErrTokenRevoked
	}

	return session, nil
}

// CurrentUser resolves the user a session was issued to
func (s *AuthService) CurrentUser(ctx context.Context, session *core.Session) (*core.User, error) {
	id, err := uuid.Parse(session.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", core.ErrTokenInvalid)
	}

	var user *core.User
	err = s.withDirectory(ctx, func(ctx context.Context) error {
		user, err = s.directory.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Logout revokes a session token for the rest of its lifetime
func (s *AuthService) Logout(ctx context.Context, token string) error {
	session, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}

	remaining := session.ExpiresAt.Sub(s.clock.Now())
	if remaining < time.Second {
		remaining = time.Second
	}

	if err := s.revocations.InvalidateToken(ctx, session.ID, remaining); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	sessionsRevoked.Inc()

	s.publish(ctx, ports.AuthEvent{
		Kind:    ports.EventLogout,
		Address: session.Address,
		UserID:  session.Subject,
		TokenID: session.ID,
	})

	return nil
}

func (s *AuthService) verify(ctx context.Context, message, signature string) (*core.VerifiedIdentity, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
	}
	return s.challenges.Verify(ctx, message, sig)
}

func (s *AuthService) findByAddress(ctx context.Context, address string) (*core.User, error) {
	var user *core.User
	err := s.withDirectory(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.directory.FindByAddress(ctx, address)
		return err
	})
	return user, err
}

func (s *AuthService) startSession(ctx context.Context, flow string, user *core.User) (*core.AuthResult, error) {
	session, token, err := s.tokenizer.Issue(user.ID.String(), user.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}
	sessionsIssued.WithLabelValues(flow).Inc()

	s.publish(ctx, ports.AuthEvent{
		Kind:    flow,
		Address: user.Address,
		UserID:  user.ID.String(),
		TokenID: session.ID,
	})

	return &core.AuthResult{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User:      user,
	}, nil
}

// withDirectory runs fn under the directory timeout. Anything other than a
// not-found or conflict is reported as core.ErrDirectory.
func (s *AuthService) withDirectory(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.directoryTimeout)
	defer cancel()

	err := fn(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrUserNotFound), errors.Is(err, core.ErrUserAlreadyExists):
		return err
	default:
		return fmt.Errorf("%w: %w", core.ErrDirectory, err)
	}
}

// publish is best effort: the session is already valid whether or not other
// instances hear about it.
func (s *AuthService) publish(ctx context.Context, event ports.AuthEvent) {
	if s.eventPub == nil {
		return
	}
	if err := s.eventPub.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("kind", event.Kind).Msg("failed to publish auth event")
	}
}
