package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string   `yaml:"port"`
		ReadTimeout  string   `yaml:"read_timeout"`
		WriteTimeout string   `yaml:"write_timeout"`
		CORSOrigins  []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	Quiz struct {
		QuestionCount   int    `yaml:"question_count"`
		QuestionSeconds int    `yaml:"question_seconds"`
		Tick            string `yaml:"tick"`
		PoolTTL         string `yaml:"pool_ttl"`
		LeaderboardTTL  string `yaml:"leaderboard_ttl"`
		SubmitTimeout   string `yaml:"submit_timeout"`
		SubmitRetries   uint64 `yaml:"submit_retries"`
		Regrade         bool   `yaml:"regrade"`
	} `yaml:"quiz"`
	Questions struct {
		File string `yaml:"file"`
	} `yaml:"questions"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.ReadTimeout = "15s"
	cfg.Server.WriteTimeout = "15s"
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Redis.TTL = "10m"
	cfg.Mongo.Database = "quiz"
	cfg.Quiz.QuestionCount = 15
	cfg.Quiz.QuestionSeconds = 5
	cfg.Quiz.Tick = "1s"
	cfg.Quiz.PoolTTL = "10m"
	cfg.Quiz.LeaderboardTTL = "2s"
	cfg.Quiz.SubmitTimeout = "5s"
	cfg.Quiz.SubmitRetries = 3
	return cfg
}

// Load reads YAML config from path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
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
