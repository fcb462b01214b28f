package domain

import "time"

// DateLayout is the calendar-date format used for quota bookkeeping
const DateLayout = "2006-01-02"

// QuotaState is the per-user daily search bookkeeping.
// An empty LastSearchDate means the user has never searched.
type QuotaState struct {
	DailySearchCount int    `json:"dailySearchCount"`
	LastSearchDate   string `json:"lastSearchDate,omitempty"`
}

// User is an account with its quota state
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	EmailVerified bool       `json:"emailVerified"`
	Quota         QuotaState `json:"quota"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Session is a bearer token bound to a user
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"-"`
}

// TokenPurpose distinguishes one-time tokens sent by mail
type TokenPurpose string

const (
	TokenVerifyEmail   TokenPurpose = "verify_email"
	TokenPasswordReset TokenPurpose = "password_reset"
)

// QuotaStatus is what the profile screen shows
type QuotaStatus struct {
	DailySearchCount  int    `json:"dailySearchCount"`
	LastSearchDate    string `json:"lastSearchDate,omitempty"`
	RemainingSearches int    `json:"remainingSearches"`
	SavedRecipes      int    `json:"savedRecipes"`
	RemainingSaves    int    `json:"remainingSaves"`
}

// Credentials is the body of sign-up and sign-in requests
type Credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}
