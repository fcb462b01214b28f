package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/recipetube/backend/internal/domain"
)

// StatsRepository keeps the popularity counters of videos and keywords
type StatsRepository struct {
	db *DB
}

// NewStatsRepository creates a stats repository
func NewStatsRepository(db *DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// IncrementKeyword adds one search to the keyword's counter, creating it if needed
func (r *StatsRepository) IncrementKeyword(ctx context.Context, keyword string, now time.Time) error {
	_, err := r.db.exec(ctx,
		`INSERT INTO search_keywords (keyword, search_count, last_updated) VALUES (?, 1, ?)
		 ON CONFLICT (keyword) DO UPDATE
		 SET search_count = search_keywords.search_count + 1, last_updated = excluded.last_updated`,
		keyword, toMillis(now))
	if err != nil {
		return fmt.Errorf("increment keyword: %w", err)
	}
	return nil
}

// IncrementVideoSaves adds one save to the video's counter, creating it if needed
func (r *StatsRepository) IncrementVideoSaves(ctx context.Context, videoID string, now time.Time) error {
	_, err := r.db.exec(ctx,
		`INSERT INTO popular_videos (video_id, save_count, last_updated) VALUES (?, 1, ?)
		 ON CONFLICT (video_id) DO UPDATE
		 SET save_count = popular_videos.save_count + 1, last_updated = excluded.last_updated`,
		videoID, toMillis(now))
	if err != nil {
		return fmt.Errorf("increment video saves: %w", err)
	}
	return nil
}

// TopVideos returns the most saved videos
func (r *StatsRepository) TopVideos(ctx context.Context, limit int) ([]domain.PopularVideo, error) {
	rows, err := r.db.query(ctx,
		`SELECT video_id, save_count, last_updated FROM popular_videos
		 ORDER BY save_count DESC, last_updated DESC, video_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top videos: %w", err)
	}
	defer rows.Close()

	videos := []domain.PopularVideo{}
	for rows.Next() {
		var (
			v       domain.PopularVideo
			updated int64
		)
		if err := rows.Scan(&v.VideoID, &v.SaveCount, &updated); err != nil {
			return nil, fmt.Errorf("scan popular video: %w", err)
		}
		v.LastUpdated = fromMillis(updated)
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// TopKeywords returns the most searched keywords
func (r *StatsRepository) TopKeywords(ctx context.Context, limit int) ([]domain.KeywordStat, error) {
	rows, err := r.db.query(ctx,
		`SELECT keyword, search_count, last_updated FROM search_keywords
		 ORDER BY search_count DESC, last_updated DESC, keyword LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top keywords: %w", err)
	}
	defer rows.Close()

	keywords := []domain.KeywordStat{}
	for rows.Next() {
		var (
			k       domain.KeywordStat
			updated int64
		)
		if err := rows.Scan(&k.Keyword, &k.SearchCount, &updated); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		k.LastUpdated = fromMillis(updated)
		keywords = append(keywords, k)
	}
	return keywords, rows.Err()
}

// TouchPopularVideos stamps last_updated on the limit most saved videos
func (r *StatsRepository) TouchPopularVideos(ctx context.Context, limit int, now time.Time) (int64, error) {
	res, err := r.db.exec(ctx,
		`UPDATE popular_videos SET last_updated = ?
		 WHERE video_id IN (SELECT video_id FROM popular_videos ORDER BY save_count DESC LIMIT ?)`,
		toMillis(now), limit)
	if err != nil {
		return 0, fmt.Errorf("touch popular videos: %w", err)
	}
	return affected(res), nil
}
