package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/recipetube/backend/internal/domain"
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 8

// AuthConfig holds session and token lifetimes
type AuthConfig struct {
	SessionTTL           time.Duration
	VerificationTTL      time.Duration
	ResetTTL             time.Duration
	RequireVerifiedEmail bool
	BcryptCost           int
}

// DefaultAuthConfig returns a week-long session and a day to verify an email
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		SessionTTL:           7 * 24 * time.Hour,
		VerificationTTL:      24 * time.Hour,
		ResetTTL:             time.Hour,
		RequireVerifiedEmail: true,
		BcryptCost:           bcrypt.DefaultCost,
	}
}

// AuthService handles accounts and bearer sessions.
// Every failure the caller can act on is an *domain.AuthError.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	mailer   domain.Mailer
	cfg      AuthConfig
	now      func() time.Time
	log      zerolog.Logger
}

// NewAuthService creates a new auth service with dependencies
func NewAuthService(
	users domain.UserRepository,
	sessions domain.SessionRepository,
	mailer domain.Mailer,
	cfg AuthConfig,
	log zerolog.Logger,
) *AuthService {
	defaults := DefaultAuthConfig()
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaults.SessionTTL
	}
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = defaults.VerificationTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = defaults.ResetTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = defaults.BcryptCost
	}

	return &AuthService{
		users:    users,
		sessions: sessions,
		mailer:   mailer,
		cfg:      cfg,
		now:      time.Now,
		log:      log.With().Str("component", "auth_service").Logger(),
	}
}

// SetClock replaces the time source (tests)
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

// newToken returns 32 random bytes as hex
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", domain.ErrInvalidRequest)
	}
	return email, nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", domain.NewAuthError(domain.AuthWeakPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", domain.NewAuthError(domain.AuthWeakPassword)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// SignUp creates an account and mails a verification link valid for VerificationTTL
func (s *AuthService) SignUp(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	email, err := normalizeEmail(creds.Email)
	if err != nil {
		return nil, err
	}
	hash, err := s.hashPassword(creds.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:            uuid.NewString(),
		Email:         email,
		PasswordHash:  hash,
		EmailVerified: !s.cfg.RequireVerifiedEmail,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, domain.NewAuthError(domain.AuthEmailTaken)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.cfg.RequireVerifiedEmail {
		if err := s.sendVerification(ctx, user); err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("verification mail failed")
		}
	}

	s.log.Info().Str("user_id", user.ID).Msg("user signed up")
	return user, nil
}

func (s *AuthService) sendVerification(ctx context.Context, user *domain.User) error {
	token, err := newToken()
	if err != nil {
		return err
	}
	if err := s.users.SaveToken(ctx, user.ID, domain.TokenVerifyEmail, token, s.now().Add(s.cfg.VerificationTTL)); err != nil {
		return fmt.Errorf("save verification token: %w", err)
	}
	return s.mailer.SendVerification(ctx, user.Email, token)
}

// ResendVerification mails a fresh verification link to an unverified account.
// Unknown and already verified addresses are ignored.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}
	return s.sendVerification(ctx, user)
}

// SignIn checks credentials and opens a session
func (s *AuthService) SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, *domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, domain.NewAuthError(domain.AuthInvalidCredentials)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, nil, domain.NewAuthError(domain.AuthInvalidCredentials)
	}
	if s.cfg.RequireVerifiedEmail && !user.EmailVerified {
		return nil, nil, domain.NewAuthError(domain.AuthEmailNotVerified)
	}

	token, err := newToken()
	if err != nil {
		return nil, nil, err
	}
	now := s.now().UTC()
	session := &domain.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	return session, user, nil
}

// SignOut ends a session
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return domain.NewAuthError(domain.AuthSessionMissing)
	}
	return s.sessions.Delete(ctx, token)
}

// Authenticate resolves a bearer token to its user
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.NewAuthError(domain.AuthSessionMissing)
	}

	session, err := s.sessions.Get(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewAuthError(domain.AuthSessionMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s.now().After(session.ExpiresAt) {
		if err := s.sessions.Delete(ctx, token); err != nil {
			s.log.Warn().Err(err).Msg("deleting expired session failed")
		}
		return nil, domain.NewAuthError(domain.AuthSessionExpired)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewAuthError(domain.AuthSessionMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// VerifyEmail consumes a verification token
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.users.ConsumeToken(ctx, domain.TokenVerifyEmail, token, s.now())
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewAuthError(domain.AuthInvalidToken)
	}
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if err := s.users.MarkVerified(ctx, userID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	s.log.Info().Str("user_id", userID).Msg("email verified")
	return nil
}

// RequestPasswordReset mails a reset link. Unknown addresses succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	token, err := newToken()
	if err != nil {
		return err
	}
	if err := s.users.SaveToken(ctx, user.ID, domain.TokenPasswordReset, token, s.now().Add(s.cfg.ResetTTL)); err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

// ResetPassword consumes a reset token and sets a new password
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	userID, err := s.users.ConsumeToken(ctx, domain.TokenPasswordReset, token, s.now())
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewAuthError(domain.AuthInvalidToken)
	}
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// DeleteAccount removes the user and everything they own after re-checking the password
func (s *AuthService) DeleteAccount(ctx context.Context, userID, password string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.NewAuthError(domain.AuthInvalidCredentials)
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.Info().Str("user_id", userID).Msg("account deleted")
	return nil
}
