package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/mentorpad-server/internal/app"
	"github.com/vovakirdan/mentorpad-server/internal/config"
	"github.com/vovakirdan/mentorpad-server/internal/log"
	"github.com/vovakirdan/mentorpad-server/internal/seed"
	"github.com/vovakirdan/mentorpad-server/internal/store/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "mentorpad",
		Short:        "Mentor/student live coding rooms",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	root.AddCommand(newServeCmd(&configPath), newSeedCmd(&configPath))
	return root
}

// loadConfig resolves .env, the config file and env vars, then applies flag overrides.
func loadConfig(configPath string, overrides config.Config) (config.Config, error) {
	// Missing .env is fine.
	_ = godotenv.Load()

	bootLog := log.New("info", "console")
	cfg, path, err := config.Load(bootLog, configPath)
	if err != nil {
		return cfg, err
	}
	cfg.UpdateFrom(overrides)
	bootLog.Debug().Str("path", path).Msg("config loaded")
	return cfg, nil
}

func newServeCmd(configPath *string) *cobra.Command {
	var overrides config.Config

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath, overrides)
			if err != nil {
				return err
			}
			logger := log.New(cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}

			logger.Info().Str("addr", cfg.Addr).Msg("starting mentorpad server")
			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	f.DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	f.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	f.StringVar(&overrides.DatabasePath, "db", "", "sqlite database path")
	f.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.StringVar(&overrides.LogFormat, "log-format", "", "log format (console, json)")
	return cmd
}

func newSeedCmd(configPath *string) *cobra.Command {
	var (
		file   string
		dbPath string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace all rooms with the bundled exercises or a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath, config.Config{DatabasePath: dbPath, SeedPath: file})
			if err != nil {
				return err
			}
			logger := log.New(cfg.LogLevel, cfg.LogFormat)

			seeds, err := app.LoadSeeds(cfg.SeedPath)
			if err != nil {
				return err
			}

			st, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			rooms, err := seed.Apply(cmd.Context(), st, seeds)
			if err != nil {
				return err
			}
			for _, r := range rooms {
				logger.Info().Str("room_id", r.ID).Str("title", r.Title).Msg("room seeded")
			}
			logger.Info().Int("rooms", len(rooms)).Str("db_path", cfg.DatabasePath).Msg("database seeded")
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML file with exercises (default: bundled set)")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path")
	return cmd
}
