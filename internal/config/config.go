package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envFile is loaded before the environment is read, if present.
var envFile = ".env"

// Config holds all service settings. Values are resolved in order: built-in
// defaults, the YAML file, then environment variables.
type Config struct {
	App struct {
		Name string `yaml:"name" envconfig:"APP_NAME"`
	} `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      struct {
		Level string `yaml:"level" envconfig:"LOG_LEVEL"`
	} `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"HTTP_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"HTTP_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"HTTP_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// ArchiveConfig configures the historical weather archive client
type ArchiveConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"ARCHIVE_BASE_URL"`
	Timeout time.Duration `yaml:"timeout" envconfig:"ARCHIVE_TIMEOUT"`
}

func defaults() *Config {
	cfg := &Config{}
	cfg.App.Name = "venueweather"
	cfg.Server = ServerConfig{
		Addr:            ":8080",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    2 * time.Minute,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
	cfg.Database.Port = "3306"
	cfg.Archive = ArchiveConfig{
		BaseURL: "https://archive-api.open-meteo.com/v1/archive",
		Timeout: 60 * time.Second,
	}
	cfg.Redis.Stream = "weather_ingestions"
	cfg.Log.Level = "info"
	return cfg
}

// Load reads the optional .env file, the YAML file at configPath (skipped when
// configPath is empty) and finally the environment.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := defaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}
	if c.Archive.BaseURL == "" {
		return fmt.Errorf("archive.base_url cannot be empty")
	}
	if c.Archive.Timeout <= 0 {
		return fmt.Errorf("archive.timeout must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	return nil
}
