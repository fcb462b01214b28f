package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/recipetube/backend/internal/domain"
)

type authFixture struct {
	svc      *AuthService
	users    *MockUserRepository
	sessions *MockSessionRepository
	mailer   *MockMailer
	now      time.Time
}

func newAuthFixture(t *testing.T, requireVerified bool) *authFixture {
	t.Helper()
	f := &authFixture{
		users:    NewMockUserRepository(),
		sessions: NewMockSessionRepository(),
		mailer:   &MockMailer{},
		now:      testNow,
	}
	cfg := DefaultAuthConfig()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.RequireVerifiedEmail = requireVerified
	f.svc = NewAuthService(f.users, f.sessions, f.mailer, cfg, zerolog.Nop())
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

func assertAuthKind(t *testing.T, err error, want domain.AuthErrorKind) {
	t.Helper()
	kind, ok := domain.AuthKind(err)
	if !ok {
		t.Fatalf("error = %v, want AuthError(%s)", err, want)
	}
	if kind != want {
		t.Errorf("AuthError kind = %s, want %s", kind, want)
	}
}

var testCreds = domain.Credentials{Email: "Cook@Example.com ", Password: "s3cret-pass"}

func TestSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("creates unverified user and mails a link", func(t *testing.T) {
		f := newAuthFixture(t, true)

		user, err := f.svc.SignUp(ctx, testCreds)
		require.NoError(t, err)

		assert.Equal(t, "cook@example.com", user.Email)
		assert.False(t, user.EmailVerified)
		assert.NotEqual(t, testCreds.Password, user.PasswordHash)
		assert.Equal(t, []string{"cook@example.com"}, f.mailer.verifications)
		assert.NotEmpty(t, f.users.tokenFor(user.ID, domain.TokenVerifyEmail))
	})

	t.Run("verified immediately when verification is off", func(t *testing.T) {
		f := newAuthFixture(t, false)

		user, err := f.svc.SignUp(ctx, testCreds)
		require.NoError(t, err)
		assert.True(t, user.EmailVerified)
		assert.Empty(t, f.mailer.verifications)
	})

	t.Run("duplicate email", func(t *testing.T) {
		f := newAuthFixture(t, true)
		_, err := f.svc.SignUp(ctx, testCreds)
		require.NoError(t, err)

		_, err = f.svc.SignUp(ctx, domain.Credentials{Email: "cook@example.com", Password: "another-pass"})
		assertAuthKind(t, err, domain.AuthEmailTaken)
		assert.ErrorIs(t, err, domain.ErrAuth)
	})

	t.Run("short password", func(t *testing.T) {
		f := newAuthFixture(t, true)

		_, err := f.svc.SignUp(ctx, domain.Credentials{Email: "a@example.com", Password: "short"})
		assertAuthKind(t, err, domain.AuthWeakPassword)
	})

	t.Run("invalid email", func(t *testing.T) {
		f := newAuthFixture(t, true)

		for _, email := range []string{"", "not-an-email", "Name <a@example.com>"} {
			_, err := f.svc.SignUp(ctx, domain.Credentials{Email: email, Password: "long-enough"})
			assert.ErrorIs(t, err, domain.ErrInvalidRequest, "email %q", email)
		}
	})

	t.Run("mail failure does not fail sign up", func(t *testing.T) {
		f := newAuthFixture(t, true)
		f.mailer.err = errBoom

		user, err := f.svc.SignUp(ctx, testCreds)
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("unverified email is refused", func(t *testing.T) {
		f := newAuthFixture(t, true)
		_, err := f.svc.SignUp(ctx, testCreds)
		require.NoError(t, err)

		_, _, err = f.svc.SignIn(ctx, testCreds)
		assertAuthKind(t, err, domain.AuthEmailNotVerified)
	})

	t.Run("verified user gets a session", func(t *testing.T) {
		f := newAuthFixture(t, true)
		user, err := f.svc.SignUp(ctx, testCreds)
		require.NoError(t, err)
		require.NoError(t, f.svc.VerifyEmail(ctx, f.users.tokenFor(user.ID, domain.TokenVerifyEmail)))

		session, signedIn, err := f.svc.SignIn(ctx, testCreds)
		require.NoError(t, err)
		assert.Equal(t, user.ID, signedIn.ID)
		assert.Len(t, session.Token, 64)
		assert.Equal(t, testNow.Add(7*24*time.Hour), session.ExpiresAt)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		f := newAuthFixture(t, false)
		_, err := f.svc.SignUp(ctx, testCreds)
		require.NoError(t, err)

		_, _, err = f.svc.SignIn(ctx, domain.Credentials{Email: "cook@example.com", Password: "wrong-pass"})
		assertAuthKind(t, err, domain.AuthInvalidCredentials)

		_, _, err = f.svc.SignIn(ctx, domain.Credentials{Email: "nobody@example.com", Password: "s3cret-pass"})
		assertAuthKind(t, err, domain.AuthInvalidCredentials)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, false)
	_, err := f.svc.SignUp(ctx, testCreds)
	require.NoError(t, err)
	session, _, err := f.svc.SignIn(ctx, testCreds)
	require.NoError(t, err)

	t.Run("valid session", func(t *testing.T) {
		user, err := f.svc.Authenticate(ctx, session.Token)
		require.NoError(t, err)
		assert.Equal(t, "cook@example.com", user.Email)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := f.svc.Authenticate(ctx, "")
		assertAuthKind(t, err, domain.AuthSessionMissing)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := f.svc.Authenticate(ctx, "deadbeef")
		assertAuthKind(t, err, domain.AuthSessionMissing)
	})

	t.Run("expired session is removed", func(t *testing.T) {
		f.now = testNow.Add(8 * 24 * time.Hour)
		defer func() { f.now = testNow }()

		_, err := f.svc.Authenticate(ctx, session.Token)
		assertAuthKind(t, err, domain.AuthSessionExpired)
		_, err = f.sessions.Get(ctx, session.Token)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, false)
	_, _ = f.svc.SignUp(ctx, testCreds)
	session, _, err := f.svc.SignIn(ctx, testCreds)
	require.NoError(t, err)

	require.NoError(t, f.svc.SignOut(ctx, session.Token))

	_, err = f.svc.Authenticate(ctx, session.Token)
	assertAuthKind(t, err, domain.AuthSessionMissing)
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("token is single use", func(t *testing.T) {
		f := newAuthFixture(t, true)
		user, _ := f.svc.SignUp(ctx, testCreds)
		token := f.users.tokenFor(user.ID, domain.TokenVerifyEmail)

		require.NoError(t, f.svc.VerifyEmail(ctx, token))
		stored, _ := f.users.GetByID(ctx, user.ID)
		assert.True(t, stored.EmailVerified)

		assertAuthKind(t, f.svc.VerifyEmail(ctx, token), domain.AuthInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newAuthFixture(t, true)
		user, _ := f.svc.SignUp(ctx, testCreds)
		token := f.users.tokenFor(user.ID, domain.TokenVerifyEmail)

		f.now = testNow.Add(25 * time.Hour)
		assertAuthKind(t, f.svc.VerifyEmail(ctx, token), domain.AuthInvalidToken)
	})

	t.Run("reset token cannot verify", func(t *testing.T) {
		f := newAuthFixture(t, true)
		user, _ := f.svc.SignUp(ctx, testCreds)
		require.NoError(t, f.svc.RequestPasswordReset(ctx, testCreds.Email))

		token := f.users.tokenFor(user.ID, domain.TokenPasswordReset)
		assertAuthKind(t, f.svc.VerifyEmail(ctx, token), domain.AuthInvalidToken)
	})
}

func TestResendVerification(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, true)
	user, _ := f.svc.SignUp(ctx, testCreds)

	require.NoError(t, f.svc.ResendVerification(ctx, "cook@example.com"))
	assert.Len(t, f.mailer.verifications, 2)

	require.NoError(t, f.svc.ResendVerification(ctx, "nobody@example.com"))
	assert.Len(t, f.mailer.verifications, 2)

	require.NoError(t, f.users.MarkVerified(ctx, user.ID))
	require.NoError(t, f.svc.ResendVerification(ctx, "cook@example.com"))
	assert.Len(t, f.mailer.verifications, 2)
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("full reset flow", func(t *testing.T) {
		f := newAuthFixture(t, false)
		user, _ := f.svc.SignUp(ctx, testCreds)

		require.NoError(t, f.svc.RequestPasswordReset(ctx, "cook@example.com"))
		assert.Equal(t, []string{"cook@example.com"}, f.mailer.resets)

		token := f.users.tokenFor(user.ID, domain.TokenPasswordReset)
		require.NoError(t, f.svc.ResetPassword(ctx, token, "brand-new-pass"))

		_, _, err := f.svc.SignIn(ctx, testCreds)
		assertAuthKind(t, err, domain.AuthInvalidCredentials)
		_, _, err = f.svc.SignIn(ctx, domain.Credentials{Email: "cook@example.com", Password: "brand-new-pass"})
		assert.NoError(t, err)
	})

	t.Run("unknown email succeeds silently", func(t *testing.T) {
		f := newAuthFixture(t, false)

		require.NoError(t, f.svc.RequestPasswordReset(ctx, "nobody@example.com"))
		assert.Empty(t, f.mailer.resets)
	})

	t.Run("weak new password keeps the token", func(t *testing.T) {
		f := newAuthFixture(t, false)
		user, _ := f.svc.SignUp(ctx, testCreds)
		require.NoError(t, f.svc.RequestPasswordReset(ctx, "cook@example.com"))
		token := f.users.tokenFor(user.ID, domain.TokenPasswordReset)

		assertAuthKind(t, f.svc.ResetPassword(ctx, token, "short"), domain.AuthWeakPassword)
		assert.NoError(t, f.svc.ResetPassword(ctx, token, "long-enough"))
	})

	t.Run("bad token", func(t *testing.T) {
		f := newAuthFixture(t, false)

		assertAuthKind(t, f.svc.ResetPassword(ctx, "nope", "long-enough"), domain.AuthInvalidToken)
	})
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, false)
	user, _ := f.svc.SignUp(ctx, testCreds)

	assertAuthKind(t, f.svc.DeleteAccount(ctx, user.ID, "wrong-pass"), domain.AuthInvalidCredentials)

	require.NoError(t, f.svc.DeleteAccount(ctx, user.ID, testCreds.Password))
	_, err := f.users.GetByID(ctx, user.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
