package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/recipetube/backend/config"
	"github.com/recipetube/backend/internal/domain"
	"github.com/recipetube/backend/internal/infrastructure/cache"
	"github.com/recipetube/backend/internal/infrastructure/gemini"
	"github.com/recipetube/backend/internal/infrastructure/mail"
	"github.com/recipetube/backend/internal/infrastructure/storage"
	"github.com/recipetube/backend/internal/infrastructure/youtube"
	"github.com/recipetube/backend/internal/usecase"
)

// cacheBackend is a cache store the scheduler can purge
type cacheBackend interface {
	domain.CacheRepository
	PurgeExpired(ctx context.Context) (int, error)
}

// app holds every wired dependency of the server
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	db      *storage.DB
	cache   cacheBackend
	recipes *usecase.RecipeService
	auth    *usecase.AuthService
	batch   *usecase.BatchService
	closers []func() error
}

// loadConfig reads the config and builds the root logger
func loadConfig(path string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	return cfg, newLogger(cfg.Server), nil
}

// openDatabase connects and brings the schema up to date
func openDatabase(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage.DB, error) {
	db, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, log)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func newCacheBackend(ctx context.Context, cfg config.CacheConfig, log zerolog.Logger) (cacheBackend, func() error, error) {
	ttls := cache.TTLs{
		domain.NamespaceVideo:  cfg.VideoTTL,
		domain.NamespaceSearch: cfg.SearchTTL,
	}
	switch cfg.Type {
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL, ttls, log)
		if err != nil {
			return nil, nil, err
		}
		return rc, rc.Close, nil
	default:
		return cache.NewMemoryCache(ttls), func() error { return nil }, nil
	}
}

func newMailer(cfg config.MailConfig, log zerolog.Logger) domain.Mailer {
	if cfg.Type == "webhook" {
		return mail.NewWebhookMailer(mail.WebhookConfig{
			URL:        cfg.WebhookURL,
			Token:      cfg.WebhookToken,
			AppBaseURL: cfg.AppBaseURL,
			Timeout:    cfg.Timeout,
		}, log)
	}
	return mail.NewLogMailer(cfg.AppBaseURL, log)
}

// newApp wires storage, external clients and services
func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	backend, closeCache, err := newCacheBackend(ctx, cfg.Cache, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}
	a.cache = backend
	a.closers = append(a.closers, closeCache)
	videoCache := cache.NewVideoCache(backend, log)

	ytClient := youtube.NewClient(youtube.Config{
		APIKey:            cfg.YouTube.APIKey,
		BaseURL:           cfg.YouTube.BaseURL,
		RegionCode:        cfg.YouTube.RegionCode,
		RelevanceLanguage: cfg.YouTube.RelevanceLanguage,
		CategoryID:        cfg.YouTube.CategoryID,
		RequestsPerSecond: cfg.YouTube.RequestsPerSecond,
		Burst:             cfg.YouTube.Burst,
	}, log)

	extractor, err := gemini.NewExtractor(ctx, gemini.Config{
		APIKey:          cfg.Gemini.APIKey,
		BaseURL:         cfg.Gemini.BaseURL,
		Model:           cfg.Gemini.Model,
		Temperature:     cfg.Gemini.Temperature,
		TopK:            cfg.Gemini.TopK,
		TopP:            cfg.Gemini.TopP,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
		Timeout:         cfg.Gemini.Timeout,
	}, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	loc, err := cfg.Quota.Location()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("quota timezone: %w", err)
	}

	users := storage.NewUserRepository(db)
	sessions := storage.NewSessionRepository(db)
	recipes := storage.NewRecipeRepository(db)
	stats := storage.NewStatsRepository(db)
	jobs := storage.NewBatchJobRepository(db)

	a.recipes = usecase.NewRecipeService(users, recipes, stats, ytClient, extractor, videoCache, usecase.RecipeServiceConfig{
		Location:    loc,
		QuerySuffix: cfg.YouTube.QuerySuffix,
	}, log)

	authCfg := usecase.DefaultAuthConfig()
	authCfg.SessionTTL = cfg.Auth.SessionTTL
	authCfg.VerificationTTL = cfg.Auth.VerificationTTL
	authCfg.ResetTTL = cfg.Auth.ResetTTL
	authCfg.RequireVerifiedEmail = cfg.Auth.RequireVerifiedEmail
	a.auth = usecase.NewAuthService(users, sessions, newMailer(cfg.Mail, log), authCfg, log)

	batchCfg := usecase.DefaultBatchConfig()
	batchCfg.StaleJobAge = cfg.Jobs.StaleJobAge
	a.batch = usecase.NewBatchService(jobs, users, sessions, stats, a.recipes, batchCfg, log)

	return a, nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
