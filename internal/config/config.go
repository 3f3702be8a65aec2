// Package config loads reelmatch settings from defaults, a JSON file and
// REELMATCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Log       LogConfig
	Matching  MatchingConfig
	Worker    WorkerConfig
	Scheduler SchedulerConfig
	API       APIConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level  string
	Format string
}

type MatchingConfig struct {
	DefaultThreshold    float64
	UsePostingThreshold bool
	MaxFeatures         int
	EmbedConcurrency    int
	// CorpusPath points at a line-per-document corpus. Empty uses the
	// built-in corpus.
	CorpusPath string
}

type WorkerConfig struct {
	PollInterval string
}

type SchedulerConfig struct {
	Enabled     bool
	RematchSpec string
}

type APIConfig struct {
	Token string
}

func defaults() Config {
	return Config{
		Server:  ServerConfig{Port: 4000},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Log:     LogConfig{Level: "info", Format: "text"},
		Matching: MatchingConfig{
			DefaultThreshold: 0.6,
			MaxFeatures:      1000,
			EmbedConcurrency: 4,
		},
		Worker: WorkerConfig{PollInterval: "500ms"},
		Scheduler: SchedulerConfig{
			Enabled:     true,
			RematchSpec: "@every 6h",
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/reelmatch/config.json, then applies REELMATCH_*
// environment overrides. The API token is read from REELMATCH_API_TOKEN and
// falls back to the secrets file in the data directory. A .env file in the
// working directory is loaded first; it never overrides variables already set.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return loadWith(newFileBackend(configFilePath()), fileSecrets{})
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("reading %s: %w", path, err)
}

// secrets abstracts the secret store for testing.
type secrets interface {
	Get(name string) (string, error)
}

func loadWith(b ConfigBackend, sec secrets) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.API.Token == "" {
		if tok, err := sec.Get(apiTokenSecret); err == nil && tok != "" {
			cfg.API.Token = tok
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges. It does not require the API token; commands
// that serve requests call RequireToken.
func (c Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Matching.DefaultThreshold < 0 || c.Matching.DefaultThreshold > 1 {
		problems = append(problems, fmt.Sprintf("matching.default_threshold %v outside [0, 1]", c.Matching.DefaultThreshold))
	}
	if c.Matching.MaxFeatures <= 0 {
		problems = append(problems, "matching.max_features must be positive")
	}
	if c.Matching.EmbedConcurrency <= 0 {
		problems = append(problems, "matching.embed_concurrency must be positive")
	}
	if _, err := time.ParseDuration(c.Worker.PollInterval); err != nil {
		problems = append(problems, fmt.Sprintf("worker.poll_interval: %v", err))
	}
	if _, err := c.LogLevel(); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RequireToken fails when no API token is configured.
func (c Config) RequireToken() error {
	if c.API.Token == "" {
		return fmt.Errorf("missing required config: API token. Set it via environment variable %s or `reelmatch config token`", apiTokenEnv)
	}
	return nil
}

// LogLevel parses log.level.
func (c Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", c.Log.Level, err)
	}
	return l, nil
}

// PollInterval parses worker.poll_interval. Invalid values give 500ms.
func (c Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Worker.PollInterval)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}
