package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/recipetube/backend/internal/domain"
)

var errBoom = errors.New("boom")

// MockUserRepository is an in-memory domain.UserRepository
type MockUserRepository struct {
	mu          sync.Mutex
	users       map[string]*domain.User
	tokens      map[string]mockToken
	conflicts   int
	updateError error
	updateCalls int
	getError    error
	resetCalls  int
}

type mockToken struct {
	userID    string
	purpose   domain.TokenPurpose
	expiresAt time.Time
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:  make(map[string]*domain.User),
		tokens: make(map[string]mockToken),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return domain.ErrAlreadyExists
		}
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepository) UpdateQuota(ctx context.Context, id string, prev, next domain.QuotaState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	if m.conflicts > 0 {
		m.conflicts--
		return domain.ErrConflict
	}
	if m.updateError != nil {
		return m.updateError
	}
	if u.Quota != prev {
		return domain.ErrConflict
	}
	u.Quota = next
	return nil
}

func (m *MockUserRepository) MarkVerified(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.EmailVerified = true
	return nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MockUserRepository) ResetDailySearchCounts(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCalls++
	var n int64
	for _, u := range m.users {
		if u.Quota.DailySearchCount != 0 {
			u.Quota.DailySearchCount = 0
			n++
		}
	}
	return n, nil
}

func (m *MockUserRepository) SaveToken(ctx context.Context, userID string, purpose domain.TokenPurpose, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = mockToken{userID: userID, purpose: purpose, expiresAt: expiresAt}
	return nil
}

func (m *MockUserRepository) ConsumeToken(ctx context.Context, purpose domain.TokenPurpose, token string, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok || t.purpose != purpose {
		return "", domain.ErrNotFound
	}
	delete(m.tokens, token)
	if now.After(t.expiresAt) {
		return "", domain.ErrNotFound
	}
	return t.userID, nil
}

func (m *MockUserRepository) CleanupExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, t := range m.tokens {
		if now.After(t.expiresAt) {
			delete(m.tokens, k)
			n++
		}
	}
	return n, nil
}

// tokenFor returns the newest stored token of a purpose for a user
func (m *MockUserRepository) tokenFor(userID string, purpose domain.TokenPurpose) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, t := range m.tokens {
		if t.userID == userID && t.purpose == purpose {
			return k
		}
	}
	return ""
}

func (m *MockUserRepository) quota(id string) domain.QuotaState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].Quota
}

// MockSessionRepository is an in-memory domain.SessionRepository
type MockSessionRepository struct {
	sessions map[string]domain.Session
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{sessions: make(map[string]domain.Session)}
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	m.sessions[session.Token] = *session
	return nil
}

func (m *MockSessionRepository) Get(ctx context.Context, token string) (*domain.Session, error) {
	s, ok := m.sessions[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *MockSessionRepository) Delete(ctx context.Context, token string) error {
	delete(m.sessions, token)
	return nil
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for k, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, k)
			n++
		}
	}
	return n, nil
}

// MockRecipeRepository is an in-memory domain.RecipeRepository
type MockRecipeRepository struct {
	mu      sync.Mutex
	recipes []domain.SavedRecipe
}

func NewMockRecipeRepository() *MockRecipeRepository {
	return &MockRecipeRepository{}
}

func (m *MockRecipeRepository) Insert(ctx context.Context, recipe *domain.SavedRecipe, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, r := range m.recipes {
		if r.UserID != recipe.UserID {
			continue
		}
		if r.Recipe.VideoID == recipe.Recipe.VideoID {
			return domain.ErrDuplicateRecipe
		}
		count++
	}
	if count >= limit {
		return &domain.QuotaExceededError{Kind: domain.QuotaSave, Limit: limit}
	}
	m.recipes = append(m.recipes, *recipe)
	return nil
}

func (m *MockRecipeRepository) List(ctx context.Context, userID string) ([]domain.SavedRecipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.SavedRecipe{}
	for i := len(m.recipes) - 1; i >= 0; i-- {
		if m.recipes[i].UserID == userID {
			out = append(out, m.recipes[i])
		}
	}
	return out, nil
}

func (m *MockRecipeRepository) Count(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.recipes {
		if r.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *MockRecipeRepository) Delete(ctx context.Context, userID, videoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.recipes {
		if r.UserID == userID && r.Recipe.VideoID == videoID {
			m.recipes = append(m.recipes[:i], m.recipes[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// MockStatsRepository is an in-memory domain.StatsRepository
type MockStatsRepository struct {
	mu        sync.Mutex
	keywords  map[string]int
	saves     map[string]int
	topError  error
	incError  error
	touchedAt time.Time
}

func NewMockStatsRepository() *MockStatsRepository {
	return &MockStatsRepository{keywords: make(map[string]int), saves: make(map[string]int)}
}

func (m *MockStatsRepository) IncrementKeyword(ctx context.Context, keyword string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incError != nil {
		return m.incError
	}
	m.keywords[keyword]++
	return nil
}

func (m *MockStatsRepository) IncrementVideoSaves(ctx context.Context, videoID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incError != nil {
		return m.incError
	}
	m.saves[videoID]++
	return nil
}

func (m *MockStatsRepository) TopVideos(ctx context.Context, limit int) ([]domain.PopularVideo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.topError != nil {
		return nil, m.topError
	}
	out := make([]domain.PopularVideo, 0, len(m.saves))
	for id, n := range m.saves {
		out = append(out, domain.PopularVideo{VideoID: id, SaveCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SaveCount != out[j].SaveCount {
			return out[i].SaveCount > out[j].SaveCount
		}
		return out[i].VideoID < out[j].VideoID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStatsRepository) TopKeywords(ctx context.Context, limit int) ([]domain.KeywordStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.KeywordStat, 0, len(m.keywords))
	for k, n := range m.keywords {
		out = append(out, domain.KeywordStat{Keyword: k, SearchCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SearchCount > out[j].SearchCount })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStatsRepository) TouchPopularVideos(ctx context.Context, limit int, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.topError != nil {
		return 0, m.topError
	}
	m.touchedAt = now
	return int64(min(limit, len(m.saves))), nil
}

// MockVideoSource is a scripted domain.VideoSource
type MockVideoSource struct {
	mu            sync.Mutex
	searchResult  []domain.Video
	searchError   error
	videos        map[string]domain.Video
	getError      error
	comments      []string
	commentsError error
	popular       []domain.Video
	popularError  error

	searchCalls   int
	lastQuery     string
	getCalls      int
	commentsCalls int
}

func NewMockVideoSource(videos ...domain.Video) *MockVideoSource {
	m := &MockVideoSource{videos: make(map[string]domain.Video)}
	for _, v := range videos {
		m.videos[v.ID] = v
	}
	return m
}

func (m *MockVideoSource) Search(ctx context.Context, query string) ([]domain.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	m.lastQuery = query
	if m.searchError != nil {
		return nil, m.searchError
	}
	return m.searchResult, nil
}

func (m *MockVideoSource) GetVideos(ctx context.Context, ids []string) ([]domain.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getError != nil {
		return nil, m.getError
	}
	out := []domain.Video{}
	for _, id := range ids {
		if v, ok := m.videos[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *MockVideoSource) GetComments(ctx context.Context, videoID string, max int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commentsCalls++
	if m.commentsError != nil {
		return nil, m.commentsError
	}
	return m.comments, nil
}

func (m *MockVideoSource) MostPopular(ctx context.Context, max int) ([]domain.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.popularError != nil {
		return nil, m.popularError
	}
	return m.popular, nil
}

// MockExtractor is a scripted domain.RecipeExtractor
type MockExtractor struct {
	fields    domain.RecipeFields
	err       error
	calls     int
	lastInput domain.ExtractionInput
}

func (m *MockExtractor) Extract(ctx context.Context, input domain.ExtractionInput) (domain.RecipeFields, error) {
	m.calls++
	m.lastInput = input
	if m.err != nil {
		return domain.RecipeFields{}, m.err
	}
	return m.fields, nil
}

// MockVideoCache is a map-backed VideoCache without expiry
type MockVideoCache struct {
	mu         sync.Mutex
	videos     map[string]domain.Video
	searches   map[string][]domain.Video
	clearError error
}

func NewMockVideoCache() *MockVideoCache {
	return &MockVideoCache{videos: make(map[string]domain.Video), searches: make(map[string][]domain.Video)}
}

func (m *MockVideoCache) GetVideo(ctx context.Context, videoID string) (*domain.Video, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[videoID]
	if !ok {
		return nil, false
	}
	return &v, true
}

func (m *MockVideoCache) SetVideo(ctx context.Context, video *domain.Video) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videos[video.ID] = *video
}

func (m *MockVideoCache) GetSearch(ctx context.Context, keyword string) ([]domain.Video, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.searches[keyword]
	return v, ok
}

func (m *MockVideoCache) SetSearch(ctx context.Context, keyword string, videos []domain.Video) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches[keyword] = videos
}

func (m *MockVideoCache) ClearVideos(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearError != nil {
		return m.clearError
	}
	m.videos = make(map[string]domain.Video)
	return nil
}

func (m *MockVideoCache) ClearSearches(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearError != nil {
		return m.clearError
	}
	m.searches = make(map[string][]domain.Video)
	return nil
}

// MockMailer records sent mail
type MockMailer struct {
	verifications []string
	resets        []string
	err           error
}

func (m *MockMailer) SendVerification(ctx context.Context, email, token string) error {
	if m.err != nil {
		return m.err
	}
	m.verifications = append(m.verifications, email)
	return nil
}

func (m *MockMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	if m.err != nil {
		return m.err
	}
	m.resets = append(m.resets, email)
	return nil
}

// MockBatchJobRepository is an in-memory domain.BatchJobRepository
type MockBatchJobRepository struct {
	jobs        []*domain.BatchJob
	createError error
	deleted     time.Time
}

func (m *MockBatchJobRepository) Create(ctx context.Context, job *domain.BatchJob) error {
	if m.createError != nil {
		return m.createError
	}
	copied := *job
	m.jobs = append(m.jobs, &copied)
	return nil
}

func (m *MockBatchJobRepository) Get(ctx context.Context, id string) (*domain.BatchJob, error) {
	for _, j := range m.jobs {
		if j.ID == id {
			copied := *j
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockBatchJobRepository) ListPending(ctx context.Context, limit int) ([]domain.BatchJob, error) {
	out := []domain.BatchJob{}
	for _, j := range m.jobs {
		if j.Status == domain.JobPending && len(out) < limit {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (m *MockBatchJobRepository) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string, now time.Time) error {
	for _, j := range m.jobs {
		if j.ID == id {
			j.Status = status
			j.Error = errMsg
			at := now
			if status == domain.JobRunning {
				j.StartedAt = &at
			} else {
				j.CompletedAt = &at
			}
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockBatchJobRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.deleted = cutoff
	kept := m.jobs[:0]
	var n int64
	for _, j := range m.jobs {
		if j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, j)
	}
	m.jobs = kept
	return n, nil
}
