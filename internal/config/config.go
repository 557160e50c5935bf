package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/tatianab/life-restart/internal/logging"
	"gopkg.in/yaml.v3"
)

// Narrator names.
const (
	NarratorLocal  = "local"
	NarratorGemini = "gemini"
)

// Config holds the application configuration.
type Config struct {
	GeminiAPIKey string        `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	GeminiModel  string        `yaml:"gemini_model" env:"LIFE_GEMINI_MODEL"`
	Narrator     string        `yaml:"narrator" env:"LIFE_NARRATOR"`
	ContentDir   string        `yaml:"content_dir" env:"LIFE_CONTENT_DIR"`
	Locale       string        `yaml:"locale" env:"LIFE_LOCALE"`
	SaveDir      string        `yaml:"save_dir" env:"LIFE_SAVE_DIR"`
	ArchivePath  string        `yaml:"archive" env:"LIFE_ARCHIVE"`
	LogLevel     string        `yaml:"log_level" env:"LIFE_LOG_LEVEL"`
	Seed         uint64        `yaml:"seed" env:"LIFE_SEED"`
	LifeTimeout  time.Duration `yaml:"life_timeout" env:"LIFE_TIMEOUT"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		GeminiModel: "gemini-2.5-flash",
		Narrator:    NarratorLocal,
		Locale:      "en",
		SaveDir:     ".saves",
		ArchivePath: ".saves/archive.db",
		LogLevel:    "info",
		LifeTimeout: 10 * time.Minute,
	}
}

// Load builds the configuration: defaults, then the YAML file at path if
// path is not empty, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Narrator {
	case NarratorLocal:
	case NarratorGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY environment variable is not set")
		}
	default:
		return fmt.Errorf("invalid narrator: %s (valid: local, gemini)", c.Narrator)
	}
	if !logging.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.LogLevel)
	}
	if c.LifeTimeout < 0 {
		return fmt.Errorf("life_timeout must be non-negative, got %v", c.LifeTimeout)
	}
	return nil
}
