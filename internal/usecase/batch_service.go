package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/recipetube/backend/internal/domain"
)

// PopularRefresher re-fetches metadata of the most saved videos
type PopularRefresher interface {
	RefreshPopularMetadata(ctx context.Context, limit int) (int, error)
}

// BatchConfig holds batch processing limits
type BatchConfig struct {
	ProcessLimit int
	StaleJobAge  time.Duration
	PopularLimit int
}

// DefaultBatchConfig processes ten jobs per run and keeps finished jobs a week
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		ProcessLimit: 10,
		StaleJobAge:  7 * 24 * time.Hour,
		PopularLimit: 100,
	}
}

// BatchService schedules and runs maintenance jobs recorded in the database
type BatchService struct {
	jobs      domain.BatchJobRepository
	users     domain.UserRepository
	sessions  domain.SessionRepository
	stats     domain.StatsRepository
	refresher PopularRefresher
	cfg       BatchConfig
	now       func() time.Time
	log       zerolog.Logger

	entropyMu sync.Mutex
	entropy   io.Reader
}

// NewBatchService creates a new batch service with dependencies.
// refresher may be nil, in which case popularity jobs only touch counters.
func NewBatchService(
	jobs domain.BatchJobRepository,
	users domain.UserRepository,
	sessions domain.SessionRepository,
	stats domain.StatsRepository,
	refresher PopularRefresher,
	cfg BatchConfig,
	log zerolog.Logger,
) *BatchService {
	defaults := DefaultBatchConfig()
	if cfg.ProcessLimit <= 0 {
		cfg.ProcessLimit = defaults.ProcessLimit
	}
	if cfg.StaleJobAge <= 0 {
		cfg.StaleJobAge = defaults.StaleJobAge
	}
	if cfg.PopularLimit <= 0 {
		cfg.PopularLimit = defaults.PopularLimit
	}

	return &BatchService{
		jobs:      jobs,
		users:     users,
		sessions:  sessions,
		stats:     stats,
		refresher: refresher,
		cfg:       cfg,
		now:       time.Now,
		log:       log.With().Str("component", "batch_service").Logger(),
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

// SetClock replaces the time source (tests)
func (s *BatchService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *BatchService) newJobID(at time.Time) string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}

// Enqueue records a pending job of the given type
func (s *BatchService) Enqueue(ctx context.Context, jobType domain.JobType, metadata map[string]any) (*domain.BatchJob, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	now := s.now().UTC()
	job := &domain.BatchJob{
		ID:        s.newJobID(now),
		Type:      jobType,
		Status:    domain.JobPending,
		Metadata:  metadata,
		CreatedAt: now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create %s job: %w", jobType, err)
	}
	return job, nil
}

// Schedule enqueues one job of every maintenance type
func (s *BatchService) Schedule(ctx context.Context) ([]domain.BatchJob, error) {
	specs := []struct {
		jobType  domain.JobType
		metadata map[string]any
	}{
		{domain.JobCleanupTokens, nil},
		{domain.JobCleanupOldJobs, nil},
		{domain.JobUpdatePopularVideos, map[string]any{"limit": s.cfg.PopularLimit, "updateMetadata": true}},
	}

	scheduled := make([]domain.BatchJob, 0, len(specs))
	for _, spec := range specs {
		job, err := s.Enqueue(ctx, spec.jobType, spec.metadata)
		if err != nil {
			return scheduled, err
		}
		scheduled = append(scheduled, *job)
	}
	return scheduled, nil
}

// Process runs up to ProcessLimit pending jobs, oldest first. A failing job
// is marked failed and does not stop the others.
func (s *BatchService) Process(ctx context.Context) ([]domain.JobResult, error) {
	pending, err := s.jobs.ListPending(ctx, s.cfg.ProcessLimit)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}

	results := make([]domain.JobResult, 0, len(pending))
	for _, job := range pending {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.runJob(ctx, job))
	}
	return results, nil
}

func (s *BatchService) runJob(ctx context.Context, job domain.BatchJob) domain.JobResult {
	result := domain.JobResult{JobID: job.ID, Type: job.Type}
	log := s.log.With().Str("job_id", job.ID).Str("job_type", string(job.Type)).Logger()

	if err := s.jobs.UpdateStatus(ctx, job.ID, domain.JobRunning, "", s.now()); err != nil {
		log.Error().Err(err).Msg("marking job running failed")
		result.Status = domain.JobFailed
		result.Error = err.Error()
		return result
	}

	runErr := s.execute(ctx, job)
	result.Status = domain.JobCompleted
	if runErr != nil {
		result.Status = domain.JobFailed
		result.Error = runErr.Error()
		log.Warn().Err(runErr).Msg("job failed")
	}

	if err := s.jobs.UpdateStatus(ctx, job.ID, result.Status, result.Error, s.now()); err != nil {
		log.Error().Err(err).Msg("recording job result failed")
	}
	log.Debug().Str("status", string(result.Status)).Msg("job finished")
	return result
}

func (s *BatchService) execute(ctx context.Context, job domain.BatchJob) error {
	switch job.Type {
	case domain.JobCleanupTokens:
		_, err := s.CleanupExpiredTokens(ctx)
		return err
	case domain.JobCleanupOldJobs:
		n, err := s.jobs.DeleteFinishedBefore(ctx, s.now().Add(-s.cfg.StaleJobAge))
		if err != nil {
			return err
		}
		s.log.Info().Int64("deleted", n).Msg("old batch jobs removed")
		return nil
	case domain.JobUpdatePopularVideos:
		return s.updatePopularVideos(ctx, job.Metadata)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (s *BatchService) updatePopularVideos(ctx context.Context, metadata map[string]any) error {
	limit := s.cfg.PopularLimit
	if v, ok := metadata["limit"].(float64); ok && v > 0 {
		limit = int(v)
	} else if v, ok := metadata["limit"].(int); ok && v > 0 {
		limit = v
	}

	touched, err := s.stats.TouchPopularVideos(ctx, limit, s.now())
	if err != nil {
		return err
	}

	refreshed := 0
	if update, _ := metadata["updateMetadata"].(bool); update && s.refresher != nil {
		if refreshed, err = s.refresher.RefreshPopularMetadata(ctx, limit); err != nil {
			return err
		}
	}
	s.log.Info().Int64("touched", touched).Int("refreshed", refreshed).Msg("popular videos updated")
	return nil
}

// RunCycle schedules the maintenance jobs and processes the queue.
// Errors are logged, never returned.
func (s *BatchService) RunCycle(ctx context.Context) {
	if _, err := s.Schedule(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduling batch jobs failed")
	}
	results, err := s.Process(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("processing batch jobs failed")
		return
	}

	failed := 0
	for _, r := range results {
		if r.Status == domain.JobFailed {
			failed++
		}
	}
	s.log.Info().Int("processed", len(results)).Int("failed", failed).Msg("batch cycle finished")
}

// ResetDailySearchCounts zeroes every user's daily search counter
func (s *BatchService) ResetDailySearchCounts(ctx context.Context) (int64, error) {
	n, err := s.users.ResetDailySearchCounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset daily search counts: %w", err)
	}
	s.log.Info().Int64("users", n).Msg("daily search counts reset")
	return n, nil
}

// CleanupExpiredTokens deletes expired one-time tokens and sessions and
// returns how many rows were removed in total.
func (s *BatchService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	now := s.now()
	tokens, err := s.users.CleanupExpiredTokens(ctx, now)
	if err != nil {
		return 0, err
	}
	sessions, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return tokens, err
	}
	s.log.Info().Int64("tokens", tokens).Int64("sessions", sessions).Msg("expired credentials removed")
	return tokens + sessions, nil
}
