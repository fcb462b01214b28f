package domain

import (
	"context"
	"time"
)

// CacheNamespace partitions the cache; every namespace has its own TTL
type CacheNamespace string

const (
	NamespaceVideo  CacheNamespace = "video"
	NamespaceSearch CacheNamespace = "search"
)

// CacheRepository defines the interface for caching operations.
// Get returns ErrCacheMiss for absent or expired entries.
type CacheRepository interface {
	Get(ctx context.Context, ns CacheNamespace, key string) ([]byte, error)
	Set(ctx context.Context, ns CacheNamespace, key string, value []byte) error
	Delete(ctx context.Context, ns CacheNamespace, key string) error
	Clear(ctx context.Context, ns CacheNamespace) error
}

// VideoSource defines the interface for the YouTube Data API
type VideoSource interface {
	Search(ctx context.Context, query string) ([]Video, error)
	GetVideos(ctx context.Context, ids []string) ([]Video, error)
	GetComments(ctx context.Context, videoID string, max int) ([]string, error)
	MostPopular(ctx context.Context, max int) ([]Video, error)
}

// ExtractionInput is the video metadata handed to the extraction model
type ExtractionInput struct {
	Title        string
	Description  string
	ChannelTitle string
	Comments     []string
}

// RecipeExtractor turns video metadata into recipe fields
type RecipeExtractor interface {
	Extract(ctx context.Context, input ExtractionInput) (RecipeFields, error)
}

// UserRepository persists accounts, quota state and one-time tokens
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// UpdateQuota stores next only if the stored state still equals prev.
	// It returns ErrConflict otherwise.
	UpdateQuota(ctx context.Context, id string, prev, next QuotaState) error
	MarkVerified(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	ResetDailySearchCounts(ctx context.Context) (int64, error)

	SaveToken(ctx context.Context, userID string, purpose TokenPurpose, token string, expiresAt time.Time) error
	// ConsumeToken deletes the token and returns its user if it had not expired.
	ConsumeToken(ctx context.Context, purpose TokenPurpose, token string, now time.Time) (string, error)
	CleanupExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// SessionRepository persists bearer sessions
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RecipeRepository persists saved recipes
type RecipeRepository interface {
	// Insert stores the recipe unless the user already has limit recipes
	// (QuotaExceededError) or one for the same video (ErrDuplicateRecipe).
	Insert(ctx context.Context, recipe *SavedRecipe, limit int) error
	List(ctx context.Context, userID string) ([]SavedRecipe, error)
	Count(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, videoID string) error
}

// StatsRepository keeps popularity counters
type StatsRepository interface {
	IncrementKeyword(ctx context.Context, keyword string, now time.Time) error
	IncrementVideoSaves(ctx context.Context, videoID string, now time.Time) error
	TopVideos(ctx context.Context, limit int) ([]PopularVideo, error)
	TopKeywords(ctx context.Context, limit int) ([]KeywordStat, error)
	TouchPopularVideos(ctx context.Context, limit int, now time.Time) (int64, error)
}

// BatchJobRepository persists background jobs
type BatchJobRepository interface {
	Create(ctx context.Context, job *BatchJob) error
	Get(ctx context.Context, id string) (*BatchJob, error)
	ListPending(ctx context.Context, limit int) ([]BatchJob, error)
	UpdateStatus(ctx context.Context, id string, status JobStatus, errMsg string, now time.Time) error
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Mailer delivers verification and password reset links
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}
