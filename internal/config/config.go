package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type AppConfig struct {
	Server   ServerConfig   `envPrefix:"SERVER_"`
	SystemDB DatabaseConfig `envPrefix:"DB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Auth     AuthConfig
	Model    ModelConfig
	Chart    ChartConfig `envPrefix:"CHART_"`
	Sync     SyncConfig  `envPrefix:"SYNC_"`
	LogLevel string      `env:"LOG_LEVEL" envDefault:"info"`
}

type ServerConfig struct {
	Port         int           `env:"PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	AllowOrigins []string      `env:"ALLOW_ORIGINS" envSeparator:"," envDefault:"http://localhost:4200"`
}

type DatabaseConfig struct {
	Host          string `env:"HOST" envDefault:"localhost"`
	Port          string `env:"PORT" envDefault:"5432"`
	User          string `env:"USERNAME" envDefault:"postgres"`
	Password      string `env:"PASSWORD"`
	Name          string `env:"DATABASE" envDefault:"dataportal"`
	AdminUser     string `env:"ADMIN_USER"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type AuthConfig struct {
	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET,required"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET,required"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
}

type ModelConfig struct {
	ModelFile       string `env:"MODEL_FILE" envDefault:"config/model.yaml"`
	ConnectionsFile string `env:"CONNECTIONS_FILE" envDefault:"config/connections.yaml"`
	PagesFile       string `env:"PAGES_FILE" envDefault:"config/pages.yaml"`
}

type ChartConfig struct {
	Dir             string        `env:"DIR"`
	TTL             time.Duration `env:"TTL" envDefault:"1h"`
	CleanupSchedule string        `env:"CLEANUP_SCHEDULE" envDefault:"@every 10m"`
	CacheSizeBytes  int64         `env:"CACHE_SIZE_BYTES" envDefault:"67108864"`
}

type SyncConfig struct {
	// Empty disables the periodic model sync.
	Schedule string `env:"SCHEDULE"`
}

// Load reads the optional .env file at path and parses the process
// environment into an AppConfig.
func Load(path string) (*AppConfig, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return cfg, nil
}

// FromMap parses configuration from an explicit environment, without
// touching the process environment.
func FromMap(environment map[string]string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environment}); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return cfg, nil
}
