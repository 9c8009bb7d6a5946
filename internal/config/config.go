package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Storage drivers understood by the runtime.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"QUIZ_SERVER_PORT"`
	} `yaml:"server"`
	Storage struct {
		Driver     string `yaml:"driver" env:"QUIZ_STORAGE_DRIVER"`
		SQLitePath string `yaml:"sqlite_path" env:"QUIZ_STORAGE_SQLITE_PATH"`
		CacheTTL   string `yaml:"cache_ttl" env:"QUIZ_STORAGE_CACHE_TTL"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr" env:"QUIZ_REDIS_ADDR"`
		Password string `yaml:"password" env:"QUIZ_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"QUIZ_REDIS_DB"`
		TTL      string `yaml:"ttl" env:"QUIZ_REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"QUIZ_POSTGRES_URL"`
	} `yaml:"postgres"`
	Log struct {
		Level  string `yaml:"level" env:"QUIZ_LOG_LEVEL"`
		Format string `yaml:"format" env:"QUIZ_LOG_FORMAT"`
	} `yaml:"log"`
	Player struct {
		Name string `yaml:"name" env:"QUIZ_PLAYER_NAME"`
	} `yaml:"player"`
}

// Default returns the configuration used when no file is present: a local
// sqlite database and text logs at info level.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Storage.Driver = DriverSQLite
	cfg.Storage.SQLitePath = "monster-quiz.db"
	cfg.Storage.CacheTTL = "30s"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Player.Name = "player"
	return cfg
}

// Load reads YAML config from path on top of Default, then applies QUIZ_*
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the fields that have a closed set of values.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite, DriverRedis, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == DriverRedis && c.Redis.Addr == "" {
		return errors.New("redis storage needs redis.addr")
	}
	if c.Storage.Driver == DriverPostgres && c.Postgres.URL == "" {
		return errors.New("postgres storage needs postgres.url")
	}
	return nil
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
