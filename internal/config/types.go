// Package config loads LeapDesk configuration.
//
// Values are layered, lowest precedence first: built-in defaults, the YAML
// config file, a .env file, LEAPDESK_ environment variables and finally
// flags that were set explicitly on the command line.
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/leapdesk/internal/generate"
)

// Config holds all configuration options.
type Config struct {
	DataDir           string         `koanf:"data_dir"`
	LogLevel          string         `koanf:"log_level"`
	Verbose           bool           `koanf:"verbose"`
	Output            string         `koanf:"output"`
	DefaultConnection string         `koanf:"default_connection"`
	LLM               LLMConfig      `koanf:"llm"`
	Database          DatabaseConfig `koanf:"database"`
	Catalog           CatalogConfig  `koanf:"catalog"`

	// Source is the config file that was read, empty when none was found.
	Source string `koanf:"-"`
}

// LLMConfig configures the SQL generation provider.
type LLMConfig struct {
	BaseURL          string        `koanf:"base_url"`
	APIKey           string        `koanf:"api_key"`
	Model            string        `koanf:"model"`
	MaxTokens        int           `koanf:"max_tokens"`
	Temperature      float64       `koanf:"temperature"`
	TopP             float64       `koanf:"top_p"`
	PresencePenalty  float64       `koanf:"presence_penalty"`
	FrequencyPenalty float64       `koanf:"frequency_penalty"`
	Timeout          time.Duration `koanf:"timeout"`
}

// DatabaseConfig configures connectors and query execution.
type DatabaseConfig struct {
	QueryTimeout   time.Duration `koanf:"query_timeout"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	TableViewLimit int           `koanf:"table_view_limit"`
}

// CatalogConfig configures the schema cache.
type CatalogConfig struct {
	CacheSize int64 `koanf:"cache_size"`
}

// Params returns the generation parameters.
func (c *Config) Params() generate.Params {
	return generate.Params{
		Model:            c.LLM.Model,
		MaxTokens:        c.LLM.MaxTokens,
		Temperature:      c.LLM.Temperature,
		TopP:             c.LLM.TopP,
		PresencePenalty:  c.LLM.PresencePenalty,
		FrequencyPenalty: c.LLM.FrequencyPenalty,
	}
}

// SlogLevel returns the log level. Verbose forces debug.
func (c *Config) SlogLevel() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
