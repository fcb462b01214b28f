package cache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/recipetube/backend/internal/domain"
)

// VideoCache stores video metadata and keyword search results as JSON.
// Backend failures read as misses and are only logged.
type VideoCache struct {
	backend domain.CacheRepository
	log     zerolog.Logger
}

// NewVideoCache wraps a cache backend
func NewVideoCache(backend domain.CacheRepository, log zerolog.Logger) *VideoCache {
	return &VideoCache{
		backend: backend,
		log:     log.With().Str("component", "video_cache").Logger(),
	}
}

// GetVideo returns cached metadata for a video ID
func (c *VideoCache) GetVideo(ctx context.Context, videoID string) (*domain.Video, bool) {
	var video domain.Video
	if !c.get(ctx, domain.NamespaceVideo, videoID, &video) {
		return nil, false
	}
	return &video, true
}

// SetVideo caches metadata under the video's ID
func (c *VideoCache) SetVideo(ctx context.Context, video *domain.Video) {
	if video == nil || video.ID == "" {
		return
	}
	c.set(ctx, domain.NamespaceVideo, video.ID, video)
}

// GetSearch returns cached results for a normalized keyword
func (c *VideoCache) GetSearch(ctx context.Context, keyword string) ([]domain.Video, bool) {
	var videos []domain.Video
	if !c.get(ctx, domain.NamespaceSearch, keyword, &videos) {
		return nil, false
	}
	if videos == nil {
		videos = []domain.Video{}
	}
	return videos, true
}

// SetSearch caches the result set for a normalized keyword
func (c *VideoCache) SetSearch(ctx context.Context, keyword string, videos []domain.Video) {
	if videos == nil {
		videos = []domain.Video{}
	}
	c.set(ctx, domain.NamespaceSearch, keyword, videos)
}

// ClearVideos drops every cached video
func (c *VideoCache) ClearVideos(ctx context.Context) error {
	return c.backend.Clear(ctx, domain.NamespaceVideo)
}

// ClearSearches drops every cached search result set
func (c *VideoCache) ClearSearches(ctx context.Context) error {
	return c.backend.Clear(ctx, domain.NamespaceSearch)
}

func (c *VideoCache) get(ctx context.Context, ns domain.CacheNamespace, key string, dst any) bool {
	data, err := c.backend.Get(ctx, ns, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			c.log.Warn().Err(err).Str("namespace", string(ns)).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.log.Warn().Err(err).Str("namespace", string(ns)).Str("key", key).Msg("dropping corrupt cache entry")
		_ = c.backend.Delete(ctx, ns, key)
		return false
	}
	return true
}

func (c *VideoCache) set(ctx context.Context, ns domain.CacheNamespace, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("namespace", string(ns)).Msg("cache encode failed")
		return
	}
	if err := c.backend.Set(ctx, ns, key, data); err != nil {
		c.log.Warn().Err(err).Str("namespace", string(ns)).Str("key", key).Msg("cache write failed")
	}
}
