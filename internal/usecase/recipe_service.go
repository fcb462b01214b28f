package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/recipetube/backend/internal/domain"
	"github.com/recipetube/backend/internal/infrastructure/youtube"
)

// VideoCache is the typed cache the recipe service reads through.
// Implementations report backend failures as misses.
type VideoCache interface {
	GetVideo(ctx context.Context, videoID string) (*domain.Video, bool)
	SetVideo(ctx context.Context, video *domain.Video)
	GetSearch(ctx context.Context, keyword string) ([]domain.Video, bool)
	SetSearch(ctx context.Context, keyword string, videos []domain.Video)
	ClearVideos(ctx context.Context) error
	ClearSearches(ctx context.Context) error
}

// RecipeServiceConfig holds configuration for the recipe service
type RecipeServiceConfig struct {
	// Location defines the calendar day the search quota resets on
	Location        *time.Location
	QuerySuffix     string
	CommentCount    int
	PopularLimit    int
	QuotaRetries    int
	MaxParallelGets int
}

// SearchResult is a page of videos plus the caller's remaining quota
type SearchResult struct {
	Keyword           string         `json:"keyword"`
	Videos            []domain.Video `json:"videos"`
	RemainingSearches int            `json:"remainingSearches"`
}

// RecipeService handles search, extraction and saved recipes
type RecipeService struct {
	users     domain.UserRepository
	recipes   domain.RecipeRepository
	stats     domain.StatsRepository
	videos    domain.VideoSource
	extractor domain.RecipeExtractor
	cache     VideoCache
	keywords  *KeywordNormalizer
	cfg       RecipeServiceConfig
	now       func() time.Time
	log       zerolog.Logger
}

// NewRecipeService creates a new recipe service with dependencies
func NewRecipeService(
	users domain.UserRepository,
	recipes domain.RecipeRepository,
	stats domain.StatsRepository,
	videos domain.VideoSource,
	extractor domain.RecipeExtractor,
	cache VideoCache,
	cfg RecipeServiceConfig,
	log zerolog.Logger,
) *RecipeService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.QuerySuffix == "" {
		cfg.QuerySuffix = DefaultQuerySuffix
	}
	if cfg.CommentCount <= 0 {
		cfg.CommentCount = youtube.DefaultCommentCount
	}
	if cfg.PopularLimit <= 0 {
		cfg.PopularLimit = 10
	}
	if cfg.QuotaRetries <= 0 {
		cfg.QuotaRetries = 3
	}
	if cfg.MaxParallelGets <= 0 {
		cfg.MaxParallelGets = 4
	}

	return &RecipeService{
		users:     users,
		recipes:   recipes,
		stats:     stats,
		videos:    videos,
		extractor: extractor,
		cache:     cache,
		keywords:  NewKeywordNormalizer(cfg.QuerySuffix),
		cfg:       cfg,
		now:       time.Now,
		log:       log.With().Str("component", "recipe_service").Logger(),
	}
}

// SetClock replaces the time source (tests)
func (s *RecipeService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *RecipeService) today() string {
	return Today(s.now(), s.cfg.Location)
}

// SearchVideos searches cooking videos for a keyword.
// Flow: authorize quota -> record search -> count keyword -> cache -> YouTube -> cache.
// The search counts against the quota even when served from cache.
func (s *RecipeService) SearchVideos(ctx context.Context, userID, keyword string) (*SearchResult, error) {
	normalized := s.keywords.Normalize(keyword)
	if normalized == "" {
		return nil, fmt.Errorf("%w: keyword is required", domain.ErrInvalidRequest)
	}

	quota, err := s.consumeSearch(ctx, userID)
	if err != nil {
		return nil, err
	}
	remaining := RemainingSearches(quota, s.today())

	if err := s.stats.IncrementKeyword(ctx, normalized, s.now()); err != nil {
		s.log.Warn().Err(err).Str("keyword", normalized).Msg("keyword counter update failed")
	}

	if videos, ok := s.cache.GetSearch(ctx, normalized); ok {
		s.log.Debug().Str("keyword", normalized).Msg("search cache hit")
		return &SearchResult{Keyword: normalized, Videos: videos, RemainingSearches: remaining}, nil
	}

	videos, err := s.videos.Search(ctx, s.keywords.BuildQuery(normalized))
	if err != nil {
		return nil, fmt.Errorf("search videos: %w", err)
	}

	s.cache.SetSearch(ctx, normalized, videos)
	for i := range videos {
		s.cache.SetVideo(ctx, &videos[i])
	}

	return &SearchResult{Keyword: normalized, Videos: videos, RemainingSearches: remaining}, nil
}

// consumeSearch re-checks the quota and commits one search with a
// compare-and-swap, reloading after a lost race.
func (s *RecipeService) consumeSearch(ctx context.Context, userID string) (domain.QuotaState, error) {
	for attempt := 1; attempt <= s.cfg.QuotaRetries; attempt++ {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return domain.QuotaState{}, fmt.Errorf("load quota: %w", err)
		}

		today := s.today()
		if !CanSearch(user.Quota, today) {
			return domain.QuotaState{}, &domain.QuotaExceededError{Kind: domain.QuotaSearch, Limit: DailySearchLimit}
		}

		next := RecordSearch(user.Quota, today)
		err = s.users.UpdateQuota(ctx, userID, user.Quota, next)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return domain.QuotaState{}, fmt.Errorf("record search: %w", err)
		}
		s.log.Debug().Str("user_id", userID).Int("attempt", attempt).Msg("quota update lost a race, retrying")
	}
	return domain.QuotaState{}, fmt.Errorf("record search: %w", domain.ErrConflict)
}

// GetVideo returns metadata for one video, from cache when fresh
func (s *RecipeService) GetVideo(ctx context.Context, videoID string) (*domain.Video, error) {
	if videoID == "" {
		return nil, fmt.Errorf("%w: video id is required", domain.ErrInvalidRequest)
	}
	if video, ok := s.cache.GetVideo(ctx, videoID); ok {
		return video, nil
	}

	videos, err := s.videos.GetVideos(ctx, []string{videoID})
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("video %s: %w", videoID, domain.ErrNotFound)
	}

	video := videos[0]
	s.cache.SetVideo(ctx, &video)
	return &video, nil
}

// ExtractRecipe resolves the video behind videoURL and asks the model for its recipe.
// Comments are fetched best-effort; the model is called once.
func (s *RecipeService) ExtractRecipe(ctx context.Context, videoURL string) (*domain.Recipe, error) {
	videoID, ok := youtube.ExtractVideoID(videoURL)
	if !ok {
		return nil, fmt.Errorf("%w: not a YouTube video URL", domain.ErrInvalidRequest)
	}

	video, err := s.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	comments, err := s.videos.GetComments(ctx, videoID, s.cfg.CommentCount)
	if err != nil {
		s.log.Warn().Err(err).Str("video_id", videoID).Msg("comment fetch failed, extracting without comments")
		comments = nil
	}

	started := s.now()
	fields, err := s.extractor.Extract(ctx, domain.ExtractionInput{
		Title:        video.Title,
		Description:  video.Description,
		ChannelTitle: video.ChannelTitle,
		Comments:     comments,
	})
	if err != nil {
		return nil, err
	}
	fields = fields.Normalize()

	s.log.Info().
		Str("video_id", videoID).
		Int("ingredients", len(fields.Ingredients)).
		Int("steps", len(fields.Steps)).
		Dur("elapsed", s.now().Sub(started)).
		Msg("recipe extracted")

	return &domain.Recipe{
		VideoID:      video.ID,
		VideoTitle:   video.Title,
		VideoURL:     video.VideoURL,
		ThumbnailURL: video.ThumbnailURL,
		Ingredients:  fields.Ingredients,
		Steps:        fields.Steps,
		Tags:         fields.Tags,
	}, nil
}

// SaveRecipe persists a recipe for the user. The sixth recipe and a second
// recipe for the same video are rejected without changing the saved set.
func (s *RecipeService) SaveRecipe(ctx context.Context, userID string, recipe domain.Recipe) (*domain.SavedRecipe, error) {
	if recipe.VideoID == "" {
		return nil, fmt.Errorf("%w: videoId is required", domain.ErrInvalidRequest)
	}

	count, err := s.recipes.Count(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count saved recipes: %w", err)
	}
	if !CanSave(count) {
		return nil, &domain.QuotaExceededError{Kind: domain.QuotaSave, Limit: SavedRecipeLimit}
	}

	fields := domain.RecipeFields{Ingredients: recipe.Ingredients, Steps: recipe.Steps, Tags: recipe.Tags}.Normalize()
	recipe.Ingredients, recipe.Steps, recipe.Tags = fields.Ingredients, fields.Steps, fields.Tags
	if recipe.VideoURL == "" {
		recipe.VideoURL = domain.WatchURL(recipe.VideoID)
	}

	saved := &domain.SavedRecipe{
		ID:        uuid.NewString(),
		UserID:    userID,
		Recipe:    recipe,
		CreatedAt: s.now().UTC(),
	}
	if err := s.recipes.Insert(ctx, saved, SavedRecipeLimit); err != nil {
		return nil, err
	}

	if err := s.stats.IncrementVideoSaves(ctx, recipe.VideoID, s.now()); err != nil {
		s.log.Warn().Err(err).Str("video_id", recipe.VideoID).Msg("popularity counter update failed")
	}
	return saved, nil
}

// DeleteRecipe removes the user's saved recipe for a video
func (s *RecipeService) DeleteRecipe(ctx context.Context, userID, videoID string) error {
	if videoID == "" {
		return fmt.Errorf("%w: videoId is required", domain.ErrInvalidRequest)
	}
	return s.recipes.Delete(ctx, userID, videoID)
}

// ListSavedRecipes returns the user's saved recipes, newest first
func (s *RecipeService) ListSavedRecipes(ctx context.Context, userID string) ([]domain.SavedRecipe, error) {
	return s.recipes.List(ctx, userID)
}

// QuotaStatus summarizes the user's remaining searches and saves
func (s *RecipeService) QuotaStatus(ctx context.Context, user *domain.User) (domain.QuotaStatus, error) {
	count, err := s.recipes.Count(ctx, user.ID)
	if err != nil {
		return domain.QuotaStatus{}, fmt.Errorf("count saved recipes: %w", err)
	}
	today := s.today()
	return domain.QuotaStatus{
		DailySearchCount:  effectiveSearchCount(user.Quota, today),
		LastSearchDate:    user.Quota.LastSearchDate,
		RemainingSearches: RemainingSearches(user.Quota, today),
		SavedRecipes:      count,
		RemainingSaves:    RemainingSaves(count),
	}, nil
}

// PopularVideos returns the most saved videos in save-count order, falling
// back to YouTube's most popular cooking chart. Failures yield an empty list.
func (s *RecipeService) PopularVideos(ctx context.Context) []domain.Video {
	top, err := s.stats.TopVideos(ctx, s.cfg.PopularLimit)
	if err != nil {
		s.log.Warn().Err(err).Msg("loading popular videos failed")
		return []domain.Video{}
	}
	if len(top) == 0 {
		return s.mostPopularChart(ctx)
	}

	ids := make([]string, 0, len(top))
	for _, p := range top {
		ids = append(ids, p.VideoID)
	}

	return s.videosByID(ctx, ids)
}

func (s *RecipeService) mostPopularChart(ctx context.Context) []domain.Video {
	videos, err := s.videos.MostPopular(ctx, s.cfg.PopularLimit)
	if err != nil {
		s.log.Warn().Err(err).Msg("most popular chart failed")
		return []domain.Video{}
	}
	for i := range videos {
		s.cache.SetVideo(ctx, &videos[i])
	}
	return videos
}

// videosByID resolves ids through the cache, fetching the misses in
// parallel batches, and returns them in the order of ids. A failed batch
// is logged and skipped.
func (s *RecipeService) videosByID(ctx context.Context, ids []string) []domain.Video {
	found := make(map[string]domain.Video, len(ids))
	var missing []string
	for _, id := range ids {
		if v, ok := s.cache.GetVideo(ctx, id); ok {
			found[id] = *v
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.MaxParallelGets)
		for _, batch := range youtube.BatchIDs(missing, youtube.MaxIDsPerRequest) {
			g.Go(func() error {
				fetched, err := s.videos.GetVideos(gctx, batch)
				if err != nil {
					s.log.Warn().Err(err).Int("ids", len(batch)).Msg("popular video batch failed")
					return nil
				}
				mu.Lock()
				defer mu.Unlock()
				for i := range fetched {
					found[fetched[i].ID] = fetched[i]
				}
				return nil
			})
		}
		_ = g.Wait()
		for _, id := range missing {
			if v, ok := found[id]; ok {
				s.cache.SetVideo(ctx, &v)
			}
		}
	}

	videos := make([]domain.Video, 0, len(ids))
	for _, id := range ids {
		if v, ok := found[id]; ok {
			videos = append(videos, v)
		}
	}
	return videos
}

// ClearCache empties one cache namespace, or both when namespace is "" or "all"
func (s *RecipeService) ClearCache(ctx context.Context, namespace string) ([]domain.CacheNamespace, error) {
	var targets []domain.CacheNamespace
	switch domain.CacheNamespace(namespace) {
	case domain.NamespaceVideo:
		targets = []domain.CacheNamespace{domain.NamespaceVideo}
	case domain.NamespaceSearch:
		targets = []domain.CacheNamespace{domain.NamespaceSearch}
	case "", "all":
		targets = []domain.CacheNamespace{domain.NamespaceVideo, domain.NamespaceSearch}
	default:
		return nil, fmt.Errorf("%w: unknown cache namespace %q", domain.ErrInvalidRequest, namespace)
	}

	for _, ns := range targets {
		clearNS := s.cache.ClearSearches
		if ns == domain.NamespaceVideo {
			clearNS = s.cache.ClearVideos
		}
		if err := clearNS(ctx); err != nil {
			return nil, fmt.Errorf("clear %s cache: %w", ns, err)
		}
	}
	s.log.Info().Strs("namespaces", namespaceNames(targets)).Msg("cache cleared")
	return targets, nil
}

func namespaceNames(nss []domain.CacheNamespace) []string {
	out := make([]string, len(nss))
	for i, ns := range nss {
		out[i] = string(ns)
	}
	return out
}

// RefreshPopularMetadata re-fetches metadata of the limit most saved videos
// into the video cache and returns how many were refreshed.
func (s *RecipeService) RefreshPopularMetadata(ctx context.Context, limit int) (int, error) {
	top, err := s.stats.TopVideos(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("load popular videos: %w", err)
	}
	ids := make([]string, 0, len(top))
	for _, p := range top {
		ids = append(ids, p.VideoID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	refreshed := 0
	for _, batch := range youtube.BatchIDs(ids, youtube.MaxIDsPerRequest) {
		videos, err := s.videos.GetVideos(ctx, batch)
		if err != nil {
			return refreshed, fmt.Errorf("refresh popular metadata: %w", err)
		}
		for i := range videos {
			s.cache.SetVideo(ctx, &videos[i])
		}
		refreshed += len(videos)
	}
	return refreshed, nil
}

// PopularKeywords returns the most searched keywords
func (s *RecipeService) PopularKeywords(ctx context.Context, limit int) ([]domain.KeywordStat, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.stats.TopKeywords(ctx, limit)
}
