package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapdesk/internal/config"
)

// configDescriptions documents every configuration key.
var configDescriptions = map[string]string{
	"data_dir":                  "Directory holding saved connections and REPL history",
	"log_level":                 "Log level: debug, info, warn or error",
	"verbose":                   "Shorthand for log_level debug",
	"output":                    "Output format: " + strings.Join(config.OutputFormats, ", "),
	"default_connection":        "Connection used when a command is given none",
	"llm.base_url":              "Base URL of the OpenAI-compatible endpoint",
	"llm.api_key":               "API key for the endpoint, falls back to " + config.APIKeyEnv,
	"llm.model":                 "Model used for SQL generation",
	"llm.max_tokens":            "Maximum tokens per generation",
	"llm.temperature":           "Sampling temperature (0 to 2)",
	"llm.top_p":                 "Nucleus sampling (0 to 1)",
	"llm.presence_penalty":      "Presence penalty (-2 to 2)",
	"llm.frequency_penalty":     "Frequency penalty (-2 to 2)",
	"llm.timeout":               "Timeout of one generation request",
	"database.query_timeout":    "Timeout of one query, 0 disables it",
	"database.connect_timeout":  "Timeout of PostgreSQL connection attempts",
	"database.table_view_limit": "Rows fetched when viewing a table",
	"catalog.cache_size":        "Number of connections whose tables are cached",
}

// envName is the environment variable overriding a config key.
func envName(key string) string {
	return config.EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "__"))
}

// sortedConfigKeys returns the documented keys in order.
func sortedConfigKeys() []string {
	keys := make([]string, 0, len(configDescriptions))
	for k := range configDescriptions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// generateConfigDocs writes the configuration reference page.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating config docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	defaults := config.Defaults()
	// The real default depends on the machine.
	defaults.DataDir = "<user config dir>/leapdesk"

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "LeapDesk configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph(fmt.Sprintf("LeapDesk reads %s from the working directory, or the file given with %s.",
		InlineCode(config.DefaultConfigFile), InlineCode("--config")))

	w.Header(2, "Precedence")
	w.BulletList([]string{
		"Command-line flags",
		"Environment variables with the " + InlineCode(config.EnvPrefix) + " prefix (" + InlineCode("__") + " separates sections)",
		"A " + InlineCode(config.DefaultEnvFile) + " file, which never overrides variables that are already set",
		"The config file",
		"Built-in defaults",
	})

	w.Header(2, "Keys")
	values := defaults.ToMap()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var rows [][]string
	for _, k := range keys {
		def := fmt.Sprint(values[k])
		if def == "" {
			def = "-"
		} else {
			def = InlineCode(def)
		}
		rows = append(rows, []string{InlineCode(k), def, InlineCode(envName(k)), configDescriptions[k]})
	}
	w.Table([]string{"Key", "Default", "Environment", "Description"}, rows)

	w.Header(2, "Example")
	data, err := defaults.YAML()
	if err != nil {
		return err
	}
	w.CodeBlock("yaml", string(data))

	filename := filepath.Join(outDir, "configuration.md")
	if err := os.WriteFile(filename, w.Bytes(), 0600); err != nil {
		return err
	}
	log.Printf("  Generated configuration.md")
	return nil
}
