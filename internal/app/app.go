package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/mentorpad-server/internal/config"
	"github.com/vovakirdan/mentorpad-server/internal/core"
	"github.com/vovakirdan/mentorpad-server/internal/log"
	"github.com/vovakirdan/mentorpad-server/internal/metrics"
	"github.com/vovakirdan/mentorpad-server/internal/seed"
	"github.com/vovakirdan/mentorpad-server/internal/store"
	"github.com/vovakirdan/mentorpad-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/mentorpad-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *transporthttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	if err := seedIfEmpty(context.Background(), st, cfg.SeedPath, logger); err != nil {
		st.Close()
		return nil, err
	}
	if err := releaseLeftoverOccupancy(context.Background(), st, logger); err != nil {
		st.Close()
		return nil, err
	}

	m := metrics.New()
	coreLog := log.Component(logger, "core")
	hub := core.NewHub(coreLog, m)
	coord := core.NewCoordinator(st, core.NewRegistry(), hub, core.Options{
		StoreTimeout: cfg.StoreTimeout,
		Logger:       coreLog,
		Metrics:      m,
	})
	server := transporthttp.NewServer(coord, st, cfg, log.Component(logger, "http"), m)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// LoadSeeds returns the exercises in path, or the bundled set when path is empty.
func LoadSeeds(path string) ([]store.Seed, error) {
	if path == "" {
		return seed.Builtin()
	}
	return seed.LoadFile(path)
}

// seedIfEmpty fills a fresh database so the lobby is never blank.
func seedIfEmpty(ctx context.Context, st store.Store, path string, logger *zerolog.Logger) error {
	summaries, err := st.ListSummaries(ctx)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	if len(summaries) > 0 {
		return nil
	}

	seeds, err := LoadSeeds(path)
	if err != nil {
		return fmt.Errorf("load seeds: %w", err)
	}
	rooms, err := seed.Apply(ctx, st, seeds)
	if err != nil {
		return fmt.Errorf("seed rooms: %w", err)
	}
	logger.Info().Int("rooms", len(rooms)).Msg("empty database seeded")
	return nil
}

// releaseLeftoverOccupancy clears mentor flags and student counts persisted
// by a previous process. No connection survives a restart.
func releaseLeftoverOccupancy(ctx context.Context, st store.SeedStore, logger *zerolog.Logger) error {
	stale, err := st.ResetAll(ctx)
	if err != nil {
		return fmt.Errorf("release leftover occupancy: %w", err)
	}
	if stale > 0 {
		logger.Warn().Int64("rooms", stale).Msg("cleared occupancy left by previous run")
	}
	return nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.server.Addr()).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		// Waits for websocket sessions too, so their releases reach the store before it closes.
		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
