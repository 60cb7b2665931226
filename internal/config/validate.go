package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// OutputFormats lists the accepted values of the output option.
var OutputFormats = []string{"auto", "text", "table", "markdown", "json", "csv"}

var logLevels = []string{"debug", "info", "warn", "warning", "error"}

// Validate checks if the configuration is valid. All problems are reported.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if !slices.Contains(OutputFormats, strings.ToLower(c.Output)) {
		errs = append(errs, fmt.Errorf("output must be one of %s, got %q", strings.Join(OutputFormats, ", "), c.Output))
	}
	if !slices.Contains(logLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel))
	}

	if c.LLM.BaseURL != "" {
		u, err := url.Parse(c.LLM.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("llm.base_url must be an http(s) URL, got %q", c.LLM.BaseURL))
		}
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens))
	}
	errs = appendRange(errs, "llm.temperature", c.LLM.Temperature, 0, 2)
	errs = appendRange(errs, "llm.top_p", c.LLM.TopP, 0, 1)
	errs = appendRange(errs, "llm.presence_penalty", c.LLM.PresencePenalty, -2, 2)
	errs = appendRange(errs, "llm.frequency_penalty", c.LLM.FrequencyPenalty, -2, 2)
	if c.LLM.Timeout < 0 {
		errs = append(errs, errors.New("llm.timeout must not be negative"))
	}

	if c.Database.QueryTimeout < 0 {
		errs = append(errs, errors.New("database.query_timeout must not be negative"))
	}
	if c.Database.ConnectTimeout < 0 {
		errs = append(errs, errors.New("database.connect_timeout must not be negative"))
	}
	if c.Database.TableViewLimit <= 0 {
		errs = append(errs, fmt.Errorf("database.table_view_limit must be positive, got %d", c.Database.TableViewLimit))
	}
	if c.Catalog.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("catalog.cache_size must be positive, got %d", c.Catalog.CacheSize))
	}

	return errors.Join(errs...)
}

func appendRange(errs []error, key string, v, lo, hi float64) []error {
	if v < lo || v > hi {
		return append(errs, fmt.Errorf("%s must be between %g and %g, got %g", key, lo, hi, v))
	}
	return errs
}
