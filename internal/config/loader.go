package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix     = "MENTORPAD"
	envConfigHome = envPrefix + "_CONFIG_DEFAULT_PATH"
	configName    = "config.yaml"
)

// defaults maps every config key to its starter value so viper knows the key
// set; env vars are only consulted for known keys.
func defaults(cfg Config) map[string]any {
	return map[string]any{
		"addr":                  cfg.Addr,
		"read_header_timeout":   cfg.ReadHeaderTimeout,
		"shutdown_timeout":      cfg.ShutdownTimeout,
		"log_level":             cfg.LogLevel,
		"log_format":            cfg.LogFormat,
		"database_path":         cfg.DatabasePath,
		"store_timeout":         cfg.StoreTimeout,
		"seed_path":             cfg.SeedPath,
		"max_message_bytes":     cfg.MaxMessageBytes,
		"rate_limit_per_minute": cfg.RateLimitPerMinute,
		"allowed_origins":       cfg.AllowedOrigins,
	}
}

// Load resolves configuration and returns it with the config file path used.
// Precedence: defaults < config file < MENTORPAD_* env vars. Flag overrides
// are applied by the caller through UpdateFrom. A missing file is created
// from the defaults so operators have something to edit.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range defaults(cfg) {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := configPath(explicitPath)
	v.SetConfigFile(path)

	if err := readOrCreate(v, path, cfg, logger); err != nil {
		return cfg, path, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, path, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.StoreTimeout <= 0 {
		return cfg, path, fmt.Errorf("store_timeout must be positive, got %s", cfg.StoreTimeout)
	}

	return cfg, path, nil
}

func readOrCreate(v *viper.Viper, path string, cfg Config, logger *zerolog.Logger) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config: %w", err)
	}

	if err := writeDefaultConfig(path, cfg); err != nil {
		// Defaults and env still apply without a file.
		logger.Warn().Err(err).Str("path", path).Msg("could not write default config")
		return nil
	}
	logger.Info().Str("path", path).Msg("wrote default config")

	if err := v.ReadInConfig(); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("default config unreadable")
	}
	return nil
}

func configPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if home := os.Getenv(envConfigHome); home != "" {
		if err := os.MkdirAll(home, 0o755); err == nil {
			return filepath.Join(home, configName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return configName
	}
	return filepath.Join(cwd, configName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
