package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/recipetube/backend/config"
	httpDelivery "github.com/recipetube/backend/internal/delivery/http"
	"github.com/recipetube/backend/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and background scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	log.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("cache", cfg.Cache.Type).
		Str("database", cfg.Database.Driver).
		Msg("starting RecipeTube backend")

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// must stop before a.Close releases the database
	stopScheduler, err := startScheduler(a.batch, a.cache, cfg, log)
	if err != nil {
		return err
	}
	defer stopScheduler()

	handler := httpDelivery.NewHandler(a.recipes, a.auth, a.batch, log)
	handler.SetHealthCheck(a.db)
	router := httpDelivery.SetupRouter(cfg, handler, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	return nil
}

// startScheduler starts the background jobs when enabled. The returned
// func stops them and waits for running jobs, up to shutdownTimeout.
func startScheduler(batch worker.BatchRunner, purger worker.CachePurger, cfg *config.Config, log zerolog.Logger) (func(), error) {
	if !cfg.Jobs.Enabled {
		return func() {}, nil
	}

	loc, err := cfg.Quota.Location()
	if err != nil {
		return nil, fmt.Errorf("quota timezone: %w", err)
	}
	scheduler, err := worker.New(batch, purger, worker.Config{
		BatchSchedule:   cfg.Jobs.BatchSchedule,
		ResetSchedule:   cfg.Jobs.ResetSchedule,
		InitialDelay:    cfg.Jobs.InitialDelay,
		CleanupInterval: cfg.Cache.CleanupInterval,
		Location:        loc,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}
	scheduler.Start()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := scheduler.Stop(ctx); err != nil {
			log.Error().Err(err).Msg("scheduler shutdown failed")
		}
	}, nil
}
