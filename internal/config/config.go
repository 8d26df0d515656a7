// Package config loads flinkwatch settings from defaults, an optional TOML file and
// the environment, in that order.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all configuration values.
type Config struct {
	// Flink REST API
	FlinkURL      string
	FlinkUser     string
	FlinkPassword string
	FlinkTimeout  time.Duration
	Strict        bool // fail a fetch when any job record is rejected

	// Watcher
	PollInterval time.Duration

	// SurrealDB snapshot store
	StoreEnabled       bool
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// HTTP server
	ServerPort string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig mirrors the TOML layout. Pointers distinguish "unset" from zero values.
type fileConfig struct {
	Flink struct {
		URL      *string `toml:"url"`
		Username *string `toml:"username"`
		Password *string `toml:"password"`
		Timeout  *string `toml:"timeout"`
		Strict   *bool   `toml:"strict"`
	} `toml:"flink"`
	Poll struct {
		Interval *string `toml:"interval"`
	} `toml:"poll"`
	Store struct {
		Enabled   *bool   `toml:"enabled"`
		URL       *string `toml:"url"`
		Namespace *string `toml:"namespace"`
		Database  *string `toml:"database"`
		Username  *string `toml:"username"`
		Password  *string `toml:"password"`
		AuthLevel *string `toml:"auth_level"`
	} `toml:"store"`
	Server struct {
		Port *int `toml:"port"`
	} `toml:"server"`
	Log struct {
		File  *string `toml:"file"`
		Level *string `toml:"level"`
	} `toml:"log"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		FlinkURL:     "http://localhost:8081",
		FlinkTimeout: 10 * time.Second,
		PollInterval: 5 * time.Second,

		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "flinkwatch",
		SurrealDBDatabase:  "jobs",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",

		ServerPort: "8585",

		LogFile:  "/tmp/flinkwatch.log",
		LogLevel: slog.LevelInfo,
	}
}

// Load builds the configuration. path may be empty; FLINKWATCH_CONFIG is used then.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("FLINKWATCH_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := applyFile(&cfg, data); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyFile(cfg *Config, data []byte) error {
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse toml: %w", err)
	}

	setString(&cfg.FlinkURL, fc.Flink.URL)
	setString(&cfg.FlinkUser, fc.Flink.Username)
	setString(&cfg.FlinkPassword, fc.Flink.Password)
	if fc.Flink.Strict != nil {
		cfg.Strict = *fc.Flink.Strict
	}
	if err := setDuration(&cfg.FlinkTimeout, fc.Flink.Timeout, "flink.timeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.PollInterval, fc.Poll.Interval, "poll.interval"); err != nil {
		return err
	}

	if fc.Store.Enabled != nil {
		cfg.StoreEnabled = *fc.Store.Enabled
	}
	setString(&cfg.SurrealDBURL, fc.Store.URL)
	setString(&cfg.SurrealDBNamespace, fc.Store.Namespace)
	setString(&cfg.SurrealDBDatabase, fc.Store.Database)
	setString(&cfg.SurrealDBUser, fc.Store.Username)
	setString(&cfg.SurrealDBPass, fc.Store.Password)
	setString(&cfg.SurrealDBAuthLevel, fc.Store.AuthLevel)

	if fc.Server.Port != nil {
		cfg.ServerPort = strconv.Itoa(*fc.Server.Port)
	}

	setString(&cfg.LogFile, fc.Log.File)
	if fc.Log.Level != nil {
		cfg.LogLevel = parseLogLevel(*fc.Log.Level)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.FlinkURL = getEnv("FLINK_URL", cfg.FlinkURL)
	cfg.FlinkUser = getEnv("FLINK_USERNAME", cfg.FlinkUser)
	cfg.FlinkPassword = getEnv("FLINK_PASSWORD", cfg.FlinkPassword)
	cfg.FlinkTimeout = getDuration("FLINK_TIMEOUT", cfg.FlinkTimeout)
	cfg.Strict = getBool("FLINK_STRICT", cfg.Strict)

	cfg.PollInterval = getDuration("FLINKWATCH_POLL_INTERVAL", cfg.PollInterval)

	cfg.StoreEnabled = getBool("FLINKWATCH_STORE_ENABLED", cfg.StoreEnabled)
	cfg.SurrealDBURL = getEnv("SURREALDB_URL", cfg.SurrealDBURL)
	cfg.SurrealDBNamespace = getEnv("SURREALDB_NAMESPACE", cfg.SurrealDBNamespace)
	cfg.SurrealDBDatabase = getEnv("SURREALDB_DATABASE", cfg.SurrealDBDatabase)
	cfg.SurrealDBUser = getEnv("SURREALDB_USER", cfg.SurrealDBUser)
	cfg.SurrealDBPass = getEnv("SURREALDB_PASS", cfg.SurrealDBPass)
	cfg.SurrealDBAuthLevel = getEnv("SURREALDB_AUTH_LEVEL", cfg.SurrealDBAuthLevel)

	cfg.ServerPort = getEnv("FLINKWATCH_SERVER_PORT", cfg.ServerPort)

	cfg.LogFile = getEnv("FLINKWATCH_LOG_FILE", cfg.LogFile)
	if lvl := os.Getenv("FLINKWATCH_LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = parseLogLevel(lvl)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, key string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s: must be positive, got %s", key, d)
	}
	*dst = d
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getDuration keeps defaultVal when the variable is unset or not a positive duration.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
