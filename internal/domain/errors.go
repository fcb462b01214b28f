package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a video, recipe, user or job does not exist
	ErrNotFound = errors.New("not found")
	// ErrQuotaExceeded is returned when the daily search or saved recipe limit is reached
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrExternalService is returned when YouTube, Gemini or the database answers with a failure
	ErrExternalService = errors.New("external service request failed")
	// ErrParse is returned when a model response cannot be turned into recipe fields
	ErrParse = errors.New("malformed model response")
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")
	// ErrCacheMiss is returned when data is not found in cache or has expired
	ErrCacheMiss = errors.New("cache miss")
	// ErrDuplicateRecipe is returned when the user already saved a recipe for the video
	ErrDuplicateRecipe = errors.New("recipe already saved")
	// ErrAuth is the parent of every AuthError
	ErrAuth = errors.New("authentication failed")
	// ErrConflict is returned when a compare-and-swap update loses a race
	ErrConflict = errors.New("concurrent update")
	// ErrAlreadyExists is returned by repositories on unique key violations
	ErrAlreadyExists = errors.New("already exists")
)

// AuthErrorKind is the closed set of authentication failures.
type AuthErrorKind string

const (
	AuthInvalidCredentials AuthErrorKind = "invalid_credentials"
	AuthEmailNotVerified   AuthErrorKind = "email_not_verified"
	AuthEmailTaken         AuthErrorKind = "email_taken"
	AuthWeakPassword       AuthErrorKind = "weak_password"
	AuthSessionMissing     AuthErrorKind = "session_missing"
	AuthSessionExpired     AuthErrorKind = "session_expired"
	AuthInvalidToken       AuthErrorKind = "invalid_token"
	AuthUnauthorized       AuthErrorKind = "unauthorized"
)

var authMessages = map[AuthErrorKind]string{
	AuthInvalidCredentials: "invalid email or password",
	AuthEmailNotVerified:   "email address has not been verified",
	AuthEmailTaken:         "email address is already registered",
	AuthWeakPassword:       "password must be at least 8 characters",
	AuthSessionMissing:     "sign in required",
	AuthSessionExpired:     "session expired, sign in again",
	AuthInvalidToken:       "token is invalid or expired",
	AuthUnauthorized:       "unauthorized",
}

// AuthError is returned by the auth service. Callers switch on Kind.
type AuthError struct {
	Kind AuthErrorKind
}

// NewAuthError creates an AuthError of the given kind
func NewAuthError(kind AuthErrorKind) *AuthError {
	return &AuthError{Kind: kind}
}

func (e *AuthError) Error() string {
	if msg, ok := authMessages[e.Kind]; ok {
		return msg
	}
	return string(e.Kind)
}

// Is makes errors.Is(err, ErrAuth) true for every AuthError.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

// AuthKind reports the kind of an AuthError anywhere in err's chain.
func AuthKind(err error) (AuthErrorKind, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind, true
	}
	return "", false
}

// QuotaKind names the limit that was hit.
type QuotaKind string

const (
	QuotaSearch QuotaKind = "search"
	QuotaSave   QuotaKind = "save"
)

// QuotaExceededError reports which limit was reached.
type QuotaExceededError struct {
	Kind  QuotaKind
	Limit int
}

func (e *QuotaExceededError) Error() string {
	switch e.Kind {
	case QuotaSearch:
		return fmt.Sprintf("daily search limit (%d) reached, try again tomorrow", e.Limit)
	case QuotaSave:
		return fmt.Sprintf("you can save at most %d recipes", e.Limit)
	}
	return ErrQuotaExceeded.Error()
}

func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// ExtractionReason classifies extraction failures.
type ExtractionReason string

const (
	ExtractionStatus    ExtractionReason = "status"
	ExtractionEmpty     ExtractionReason = "empty"
	ExtractionMalformed ExtractionReason = "malformed"
)

// ExtractionError is returned by the recipe extractor.
type ExtractionError struct {
	Reason     ExtractionReason
	StatusCode int
	Err        error
}

func (e *ExtractionError) Error() string {
	switch e.Reason {
	case ExtractionStatus:
		if e.StatusCode != 0 {
			return fmt.Sprintf("recipe extraction failed: model API status %d", e.StatusCode)
		}
		return fmt.Sprintf("recipe extraction failed: %v", e.Err)
	case ExtractionEmpty:
		return "recipe extraction failed: model returned no text"
	default:
		if e.Err != nil {
			return fmt.Sprintf("recipe extraction failed: malformed recipe data: %v", e.Err)
		}
		return "recipe extraction failed: malformed recipe data"
	}
}

// Unwrap exposes the taxonomy sentinel and the underlying cause.
func (e *ExtractionError) Unwrap() []error {
	parent := ErrParse
	if e.Reason == ExtractionStatus {
		parent = ErrExternalService
	}
	if e.Err != nil {
		return []error{parent, e.Err}
	}
	return []error{parent}
}
