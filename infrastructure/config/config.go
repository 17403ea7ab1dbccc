package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything cmd/cuttracker needs to start the server.
type Config struct {
	Addr            string        `yaml:"addr"`
	SQLitePath      string        `yaml:"sqlite_path"`
	MigrationsDir   string        `yaml:"migrations_dir"`
	BusyTimeout     time.Duration `yaml:"busy_timeout"`
	ReadPoolSize    int           `yaml:"read_pool_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	Hub             HubConfig     `yaml:"hub"`
}

// HubConfig tunes the realtime broadcast hub.
type HubConfig struct {
	BufferSize   int           `yaml:"buffer_size"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:            ":8080",
		SQLitePath:      "cuttracker.db",
		BusyTimeout:     5 * time.Second,
		ReadPoolSize:    8,
		ShutdownTimeout: 2 * time.Second,
		SessionTTL:      12 * time.Hour,
		LogLevel:        "info",
		LogFormat:       "text",
		Hub: HubConfig{
			BufferSize:   64,
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
		},
	}
}

// Load builds the config from defaults, an optional YAML file, an optional
// .env file and finally process environment variables, later sources winning.
// An empty path skips the YAML file; a missing .env is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("load .env failed", slog.Any("err", err))
	}

	if strings.TrimSpace(path) == "" {
		path = os.Getenv("CUTTRACKER_CONFIG")
	}
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("config: addr is required")
	}
	if strings.TrimSpace(c.SQLitePath) == "" {
		return errors.New("config: sqlite_path is required")
	}
	if c.Hub.BufferSize <= 0 {
		return errors.New("config: hub.buffer_size must be greater than 0")
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: session_ttl must be greater than 0")
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = d
		return nil
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("APP_ADDR", &cfg.Addr)
	str("SQLITE_PATH", &cfg.SQLitePath)
	str("MIGRATIONS_DIR", &cfg.MigrationsDir)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)

	for _, fn := range []func() error{
		func() error { return dur("SQLITE_BUSY_TIMEOUT", &cfg.BusyTimeout) },
		func() error { return num("SQLITE_READ_POOL", &cfg.ReadPoolSize) },
		func() error { return dur("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout) },
		func() error { return dur("SESSION_TTL", &cfg.SessionTTL) },
		func() error { return num("HUB_BUFFER", &cfg.Hub.BufferSize) },
		func() error { return dur("HUB_WRITE_TIMEOUT", &cfg.Hub.WriteTimeout) },
		func() error { return dur("HUB_PING_INTERVAL", &cfg.Hub.PingInterval) },
	} {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// Logger builds the process slog.Logger from LogLevel and LogFormat.
func (c Config) Logger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.LogLevel) {
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
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
