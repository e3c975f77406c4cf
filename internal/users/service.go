package users

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-accounts/atlas-accounts/internal/shared"
)

// Store defines the persistence operations the orchestrator composes.
type Store interface {
	CreateUser(ctx context.Context, email, password string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	ActivateUser(ctx context.Context, userID uuid.UUID, code string, now time.Time) (*User, error)
	CreateActivationCode(ctx context.Context, code ActivationCode) error
	GetActivationCode(ctx context.Context, userID uuid.UUID, code string) (*ActivationCode, error)
}

// Notifier queues activation code delivery. Enqueue failures must surface to
// the caller; consumption happens out-of-band.
type Notifier interface {
	EnqueueActivationCode(ctx context.Context, email, code string, userID uuid.UUID) error
}

// Service drives the registration and activation state machine.
type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// Option customises Service construction.
type Option func(*Service)

// WithClock overrides the time source, used to exercise code expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs the orchestrator.
func NewService(store Store, notifier Notifier, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a PENDING account and queues its first activation code.
func (s *Service) Register(ctx context.Context, email, password string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if err := s.issueCode(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID.String()))
	return user, nil
}

// Activate redeems an activation code and transitions the user to ACTIVE.
func (s *Service) Activate(ctx context.Context, email, password, code string) (*User, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if user.IsActive() {
		return nil, shared.ErrAlreadyActivated
	}

	if err := s.verifyCode(ctx, user.ID, code); err != nil {
		return nil, err
	}

	activated, err := s.store.ActivateUser(ctx, user.ID, code, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("user activated", slog.String("user_id", user.ID.String()))
	return activated, nil
}

// ResendActivation re-issues a code for a PENDING account, invalidating any
// prior live code.
func (s *Service) ResendActivation(ctx context.Context, email, password string) error {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return err
	}
	if user.IsActive() {
		return shared.ErrAlreadyActivated
	}

	if err := s.issueCode(ctx, user); err != nil {
		return err
	}

	s.logger.Info("activation code resent", slog.String("user_id", user.ID.String()))
	return nil
}

// authenticate verifies credentials. A missing user and a wrong password are
// indistinguishable to the caller so account existence cannot be probed.
func (s *Service) authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.VerifyPassword(password) {
		return nil, shared.ErrAuthenticationFailed
	}
	return user, nil
}

// verifyCode checks the (user, code) pair. Used is evaluated before expired:
// a consumed code always reports invalid, even when it has also expired.
func (s *Service) verifyCode(ctx context.Context, userID uuid.UUID, code string) error {
	ac, err := s.store.GetActivationCode(ctx, userID, code)
	if err != nil {
		return err
	}
	if ac == nil || ac.IsUsed {
		return shared.ErrInvalidActivationCode
	}
	if ac.Expired(s.now()) {
		return shared.ErrActivationCodeExpired
	}
	return nil
}

func (s *Service) issueCode(ctx context.Context, user *User) error {
	code, err := NewActivationCode(user.ID, s.now())
	if err != nil {
		return shared.ErrUnexpected.WithCause(err)
	}
	if err := s.store.CreateActivationCode(ctx, code); err != nil {
		return err
	}
	return s.notifier.EnqueueActivationCode(ctx, user.Email, code.Code, user.ID)
}
