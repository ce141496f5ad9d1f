package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            string `yaml:"port"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		TokenTTL  string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Sessions struct {
		CodeAttempts            int    `yaml:"code_attempts"`
		MaxTeams                int    `yaml:"max_teams"`
		RequireStartedForScores bool   `yaml:"require_started_for_scores"`
		NotifyTimeout           string `yaml:"notify_timeout"`
	} `yaml:"sessions"`
	Notifications struct {
		// Queue is "none" (log only) or "asynq" (requires redis).
		Queue       string `yaml:"queue"`
		QueueName   string `yaml:"queue_name"`
		Concurrency int    `yaml:"concurrency"`
	} `yaml:"notifications"`
}

// Default returns the configuration used when no file is present: in-memory storage on :8080.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Auth.TokenTTL = "24h"
	cfg.Quiz.TTL = "10m"
	cfg.Sessions.CodeAttempts = 32
	cfg.Sessions.MaxTeams = 64
	cfg.Sessions.NotifyTimeout = "5s"
	cfg.Notifications.Queue = "none"
	cfg.Notifications.QueueName = "notifications"
	cfg.Notifications.Concurrency = 10
	return cfg
}

// Load reads YAML config from path on top of Default, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("QUIZ_POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("QUIZ_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("QUIZ_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("QUIZ_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("QUIZ_REQUIRE_STARTED_FOR_SCORES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Sessions.RequireStartedForScores = b
		}
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
