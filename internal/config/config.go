// Package config loads service settings from defaults, a YAML file, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable. Nested keys are separated
// by a double underscore: STUDYPARTNER_OPENAI__API_KEY.
const EnvPrefix = "STUDYPARTNER_"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	OpenAI     OpenAIConfig     `koanf:"openai"`
	Cache      CacheConfig      `koanf:"cache"`
	Sync       SyncConfig       `koanf:"sync"`
	Cleanup    CleanupConfig    `koanf:"cleanup"`
	Similarity SimilarityConfig `koanf:"similarity"`
	Log        LogConfig        `koanf:"log"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// OpenAIConfig configures the provider used for embeddings and
// definitions. An empty APIKey disables both.
type OpenAIConfig struct {
	APIKey            string  `koanf:"api_key"`
	BaseURL           string  `koanf:"base_url" validate:"omitempty,url"`
	ChatModel         string  `koanf:"chat_model" validate:"required"`
	EmbeddingModel    string  `koanf:"embedding_model" validate:"required"`
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gte=0"`
	Burst             int     `koanf:"burst" validate:"gte=1"`
}

// CacheConfig sizes the embedding cache. RedisAddr enables the shared tier.
type CacheConfig struct {
	Capacity      int           `koanf:"capacity" validate:"gte=1"`
	TTL           time.Duration `koanf:"ttl" validate:"gt=0"`
	RedisAddr     string        `koanf:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db" validate:"gte=0"`
}

// SyncConfig controls wordlist imports. A zero Interval disables the job.
type SyncConfig struct {
	Interval time.Duration `koanf:"interval" validate:"gte=0"`
	ReposDir string        `koanf:"repos_dir" validate:"required"`
}

type CleanupConfig struct {
	Interval time.Duration `koanf:"interval" validate:"gte=0"`
}

type SimilarityConfig struct {
	CriticalThreshold float64 `koanf:"critical_threshold" validate:"gt=0,lte=1,gtfield=WarningThreshold"`
	WarningThreshold  float64 `koanf:"warning_threshold" validate:"gt=0,lte=1"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Path: "studypartner.db"},
		OpenAI: OpenAIConfig{
			ChatModel:         "gpt-4o-mini",
			EmbeddingModel:    "text-embedding-3-small",
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Cache: CacheConfig{
			Capacity: 1000,
			TTL:      7 * 24 * time.Hour,
		},
		Sync: SyncConfig{
			Interval: time.Hour,
			ReposDir: "repos",
		},
		Cleanup: CleanupConfig{Interval: time.Hour},
		Similarity: SimilarityConfig{
			CriticalThreshold: 0.85,
			WarningThreshold:  0.75,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"addr":      "server.addr",
	"db":        "database.path",
	"repos-dir": "sync.repos_dir",
	"log-level": "log.level",
}

// RegisterFlags adds the config flags to fs. Their defaults are only
// informational; unset flags never override other sources.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "Path to a YAML config file")
	fs.String("addr", d.Server.Addr, "HTTP listen address")
	fs.String("db", d.Database.Path, "Path to the SQLite database file")
	fs.String("repos-dir", d.Sync.ReposDir, "Directory for git source checkouts")
	fs.String("log-level", d.Log.Level, "Log level (debug, info, warn, error)")
}

// Load builds the configuration. fs must have been parsed and may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	var path string
	if fs != nil {
		path, _ = fs.GetString("config")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if fs != nil {
		err := k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns STUDYPARTNER_OPENAI__API_KEY into openai.api_key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks the struct tags.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Handler returns the slog handler for the configured format and level.
func (l LogConfig) Handler(w io.Writer) slog.Handler {
	var level slog.Level
	switch l.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
