package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// BatchRunner is the part of the batch service the scheduler drives
type BatchRunner interface {
	RunCycle(ctx context.Context)
	ResetDailySearchCounts(ctx context.Context) (int64, error)
}

// CachePurger drops stale cache entries
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Config holds cron expressions and intervals for background work
type Config struct {
	BatchSchedule   string
	ResetSchedule   string
	InitialDelay    time.Duration
	CleanupInterval time.Duration
	// Location is the zone cron expressions are evaluated in
	Location *time.Location
}

// DefaultConfig runs the batch cycle hourly and resets quotas at midnight
func DefaultConfig() Config {
	return Config{
		BatchSchedule:   "@hourly",
		ResetSchedule:   "0 0 * * *",
		InitialDelay:    time.Second,
		CleanupInterval: 10 * time.Minute,
		Location:        time.UTC,
	}
}

// Scheduler owns the cron loop for batch jobs, the daily quota reset and cache purging
type Scheduler struct {
	cron   *cron.Cron
	batch  BatchRunner
	purger CachePurger
	cfg    Config
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	initial *time.Timer
	wg      sync.WaitGroup
}

// New registers every job. purger may be nil when the cache expires entries itself.
func New(batch BatchRunner, purger CachePurger, cfg Config, log zerolog.Logger) (*Scheduler, error) {
	defaults := DefaultConfig()
	if cfg.BatchSchedule == "" {
		cfg.BatchSchedule = defaults.BatchSchedule
	}
	if cfg.ResetSchedule == "" {
		cfg.ResetSchedule = defaults.ResetSchedule
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}
	if cfg.Location == nil {
		cfg.Location = defaults.Location
	}

	log = log.With().Str("component", "scheduler").Logger()
	cronLog := cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   c,
		batch:  batch,
		purger: purger,
		cfg:    cfg,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := c.AddFunc(cfg.BatchSchedule, s.runBatch); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid batch schedule %q: %w", cfg.BatchSchedule, err)
	}
	if _, err := c.AddFunc(cfg.ResetSchedule, s.runReset); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid reset schedule %q: %w", cfg.ResetSchedule, err)
	}
	if purger != nil {
		every := fmt.Sprintf("@every %s", cfg.CleanupInterval)
		if _, err := c.AddFunc(every, s.runPurge); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid cleanup interval %s: %w", cfg.CleanupInterval, err)
		}
	}
	return s, nil
}

// Start begins running jobs; the batch cycle also runs once after InitialDelay
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()

	if s.cfg.InitialDelay >= 0 {
		s.wg.Add(1)
		s.initial = time.AfterFunc(s.cfg.InitialDelay, func() {
			defer s.wg.Done()
			s.guard("initial batch", s.runBatch)
		})
	}
	s.log.Info().
		Str("batch", s.cfg.BatchSchedule).
		Str("reset", s.cfg.ResetSchedule).
		Dur("cleanup_interval", s.cfg.CleanupInterval).
		Msg("scheduler started")
}

// Stop halts the schedule and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		s.cancel()
		return nil
	}
	s.started = false
	if s.initial != nil && s.initial.Stop() {
		s.wg.Done()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-s.cron.Stop().Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.log.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Entries returns the number of registered cron jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) runBatch() {
	s.batch.RunCycle(s.ctx)
}

func (s *Scheduler) runReset() {
	if _, err := s.batch.ResetDailySearchCounts(s.ctx); err != nil {
		s.log.Error().Err(err).Msg("daily search count reset failed")
	}
}

func (s *Scheduler) runPurge() {
	removed, err := s.purger.PurgeExpired(s.ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("cache purge failed")
		return
	}
	if removed > 0 {
		s.log.Debug().Int("removed", removed).Msg("expired cache entries purged")
	}
}

// guard runs fn outside the cron chain with the same panic recovery
func (s *Scheduler) guard(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Interface("panic", r).
				Str("job", name).
				Bytes("stack", debug.Stack()).
				Msg("job panicked")
		}
	}()
	fn()
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
