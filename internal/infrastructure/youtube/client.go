package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/recipetube/backend/internal/domain"
)

const (
	// SearchMaxResults is how many videos a keyword search returns
	SearchMaxResults = 10
	// MaxIDsPerRequest is the videos.list id limit
	MaxIDsPerRequest = 50
	// DefaultCommentCount is how many top-level comments feed extraction
	DefaultCommentCount = 10

	maxAttempts  = 3
	maxErrorBody = 512
)

// Config holds the Data API key, endpoint and search locale
type Config struct {
	APIKey            string
	BaseURL           string
	RegionCode        string
	RelevanceLanguage string
	CategoryID        string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// DefaultConfig targets Japanese cooking videos (category 26, Howto & Style)
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://www.googleapis.com/youtube/v3",
		RegionCode:        "jp",
		RelevanceLanguage: "ja",
		CategoryID:        "26",
		RequestsPerSecond: 5,
		Burst:             10,
		Timeout:           30 * time.Second,
	}
}

// Client handles communication with the YouTube Data API v3
type Client struct {
	httpClient  *http.Client
	cfg         Config
	rateLimiter *rate.Limiter
	backoff     func(attempt int) time.Duration
	log         zerolog.Logger
}

// NewClient creates a new YouTube API client
func NewClient(cfg Config, log zerolog.Logger) *Client {
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaults.Burst
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg:         cfg,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		backoff:     exponentialBackoff,
		log:         log.With().Str("component", "youtube").Logger(),
	}
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// StatusError is a non-2xx answer from the Data API
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("youtube %s: status %d", e.Endpoint, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return domain.ErrExternalService
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// doRequest executes a GET and returns the body and status
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "RecipeTube/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// get calls an endpoint and decodes the JSON answer into dst.
// Network errors, 429 and 5xx are retried; other statuses fail at once.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, dst any) error {
	params.Set("key", c.cfg.APIKey)
	reqURL := fmt.Sprintf("%s/%s?%s", c.cfg.BaseURL, endpoint, params.Encode())

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		body, status, err := c.doRequest(ctx, reqURL)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", attempt).Msg("request error")
			lastErr = fmt.Errorf("%w: youtube %s: %v", domain.ErrExternalService, endpoint, err)
		case status != http.StatusOK:
			statusErr := &StatusError{Endpoint: endpoint, StatusCode: status, Body: truncate(string(body), maxErrorBody)}
			c.log.Warn().Str("endpoint", endpoint).Int("status", status).Int("attempt", attempt).Str("body", statusErr.Body).Msg("api error")
			if !retryableStatus(status) {
				return statusErr
			}
			lastErr = statusErr
		default:
			if err := json.Unmarshal(body, dst); err != nil {
				return fmt.Errorf("%w: decode youtube %s response: %v", domain.ErrExternalService, endpoint, err)
			}
			return nil
		}

		if attempt < maxAttempts {
			select {
			case <-time.After(c.backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	c.log.Error().Str("endpoint", endpoint).Msg("all retries failed")
	return lastErr
}

// Search returns up to ten cooking videos for a query
func (c *Client) Search(ctx context.Context, query string) ([]domain.Video, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("maxResults", strconv.Itoa(SearchMaxResults))
	params.Set("q", query)
	params.Set("type", "video")
	c.applyLocale(params)

	var resp searchResponse
	if err := c.get(ctx, "search", params, &resp); err != nil {
		return nil, err
	}

	videos := mapSearchItems(resp.Items)
	c.log.Debug().Str("query", query).Int("results", len(videos)).Msg("search completed")
	return videos, nil
}

// GetVideos fetches metadata for ids, MaxIDsPerRequest per call.
// Results follow the order of ids; ids the API does not know are skipped.
func (c *Client) GetVideos(ctx context.Context, ids []string) ([]domain.Video, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []domain.Video{}, nil
	}

	found := make(map[string]domain.Video, len(ids))
	for _, batch := range BatchIDs(ids, MaxIDsPerRequest) {
		params := url.Values{}
		params.Set("part", "snippet")
		params.Set("id", strings.Join(batch, ","))
		params.Set("maxResults", strconv.Itoa(len(batch)))

		var resp videoListResponse
		if err := c.get(ctx, "videos", params, &resp); err != nil {
			return nil, err
		}
		for _, v := range mapVideoItems(resp.Items) {
			found[v.ID] = v
		}
	}

	videos := make([]domain.Video, 0, len(found))
	for _, id := range ids {
		if v, ok := found[id]; ok {
			videos = append(videos, v)
		}
	}
	return videos, nil
}

// GetComments returns the plain text of up to max top-level comments
func (c *Client) GetComments(ctx context.Context, videoID string, max int) ([]string, error) {
	if max <= 0 {
		max = DefaultCommentCount
	}
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("videoId", videoID)
	params.Set("maxResults", strconv.Itoa(max))
	params.Set("order", "relevance")
	params.Set("textFormat", "html")

	var resp commentThreadResponse
	if err := c.get(ctx, "commentThreads", params, &resp); err != nil {
		return nil, err
	}
	return mapComments(resp.Items), nil
}

// MostPopular returns the current most popular cooking videos
func (c *Client) MostPopular(ctx context.Context, max int) ([]domain.Video, error) {
	if max <= 0 || max > MaxIDsPerRequest {
		max = SearchMaxResults
	}
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("chart", "mostPopular")
	params.Set("maxResults", strconv.Itoa(max))
	if c.cfg.CategoryID != "" {
		params.Set("videoCategoryId", c.cfg.CategoryID)
	}
	if c.cfg.RegionCode != "" {
		params.Set("regionCode", c.cfg.RegionCode)
	}

	var resp videoListResponse
	if err := c.get(ctx, "videos", params, &resp); err != nil {
		return nil, err
	}
	return mapVideoItems(resp.Items), nil
}

func (c *Client) applyLocale(params url.Values) {
	if c.cfg.CategoryID != "" {
		params.Set("videoCategoryId", c.cfg.CategoryID)
	}
	if c.cfg.RelevanceLanguage != "" {
		params.Set("relevanceLanguage", c.cfg.RelevanceLanguage)
	}
	if c.cfg.RegionCode != "" {
		params.Set("regionCode", c.cfg.RegionCode)
	}
}

// BatchIDs splits ids into consecutive chunks of at most size
func BatchIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = MaxIDsPerRequest
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
