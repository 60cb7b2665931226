package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/leapdesk/internal/generate"
)

// Default configuration values.
const (
	DefaultConfigFile     = "leapdesk.yaml"
	DefaultConfigFileAlt  = "leapdesk.yml"
	DefaultEnvFile        = ".env"
	DefaultOutput         = "auto" // TTY=text, piped=markdown
	DefaultLogLevel       = "info"
	DefaultLLMTimeout     = 60 * time.Second
	DefaultQueryTimeout   = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultTableViewLimit = 100
	DefaultCatalogSize    = 64
)

// EnvPrefix prefixes environment variables. A double underscore nests:
// LEAPDESK_LLM__API_KEY sets llm.api_key.
const EnvPrefix = "LEAPDESK_"

// APIKeyEnv is read when no API key is configured otherwise.
const APIKeyEnv = "OPENAI_API_KEY"

// DefaultDataDir returns the directory holding saved connections.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "leapdesk")
	}
	return ".leapdesk"
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	params := generate.DefaultParams()
	return &Config{
		DataDir:  DefaultDataDir(),
		LogLevel: DefaultLogLevel,
		Output:   DefaultOutput,
		LLM: LLMConfig{
			BaseURL:          generate.DefaultBaseURL,
			Model:            params.Model,
			MaxTokens:        params.MaxTokens,
			Temperature:      params.Temperature,
			TopP:             params.TopP,
			PresencePenalty:  params.PresencePenalty,
			FrequencyPenalty: params.FrequencyPenalty,
			Timeout:          DefaultLLMTimeout,
		},
		Database: DatabaseConfig{
			QueryTimeout:   DefaultQueryTimeout,
			ConnectTimeout: DefaultConnectTimeout,
			TableViewLimit: DefaultTableViewLimit,
		},
		Catalog: CatalogConfig{
			CacheSize: DefaultCatalogSize,
		},
	}
}

// ToMap flattens c into koanf keys. Durations are rendered as strings.
func (c *Config) ToMap() map[string]any {
	return map[string]any{
		"data_dir":                  c.DataDir,
		"log_level":                 c.LogLevel,
		"verbose":                   c.Verbose,
		"output":                    c.Output,
		"default_connection":        c.DefaultConnection,
		"llm.base_url":              c.LLM.BaseURL,
		"llm.api_key":               c.LLM.APIKey,
		"llm.model":                 c.LLM.Model,
		"llm.max_tokens":            c.LLM.MaxTokens,
		"llm.temperature":           c.LLM.Temperature,
		"llm.top_p":                 c.LLM.TopP,
		"llm.presence_penalty":      c.LLM.PresencePenalty,
		"llm.frequency_penalty":     c.LLM.FrequencyPenalty,
		"llm.timeout":               c.LLM.Timeout.String(),
		"database.query_timeout":    c.Database.QueryTimeout.String(),
		"database.connect_timeout":  c.Database.ConnectTimeout.String(),
		"database.table_view_limit": c.Database.TableViewLimit,
		"catalog.cache_size":        c.Catalog.CacheSize,
	}
}
