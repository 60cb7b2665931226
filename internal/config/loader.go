package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// File is an explicit config file. It must exist when set.
	File string
	// Dir is searched for the config file and the .env file when they are
	// not given explicitly. Empty means the working directory.
	Dir string
	// EnvFile is an explicit .env file. It must exist when set.
	EnvFile string
	// Flags are applied last. Only flags that were set are used.
	Flags *pflag.FlagSet
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"data-dir":      "data_dir",
	"log-level":     "log_level",
	"verbose":       "verbose",
	"output":        "output",
	"connection":    "default_connection",
	"base-url":      "llm.base_url",
	"api-key":       "llm.api_key",
	"model":         "llm.model",
	"max-tokens":    "llm.max_tokens",
	"query-timeout": "database.query_timeout",
	"limit":         "database.table_view_limit",
}

// Load reads configuration.
// Precedence (highest to lowest): flags > env vars > .env file > config file > defaults
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(Defaults().ToMap(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	source, err := findConfigFile(opts.File, opts.Dir)
	if err != nil {
		return nil, err
	}
	if source != "" {
		if err := k.Load(file.Provider(source), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", source, err)
		}
	}

	// 3. .env file, which only fills variables that are not already set
	if err := loadEnvFile(opts.EnvFile, opts.Dir); err != nil {
		return nil, err
	}

	// 4. Environment: LEAPDESK_LLM__API_KEY -> llm.api_key
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}
	if k.String("llm.api_key") == "" {
		if key := os.Getenv(APIKeyEnv); key != "" {
			if err := k.Set("llm.api_key", key); err != nil {
				return nil, fmt.Errorf("failed to set api key: %w", err)
			}
		}
	}

	// 5. Flags
	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg, err := unmarshal(k)
	if err != nil {
		return nil, err
	}
	cfg.Source = source
	cfg.DataDir = expandHome(cfg.DataDir)
	return cfg, nil
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

// findConfigFile returns the config file to read.
// Priority: explicit path > leapdesk.yaml > leapdesk.yml
func findConfigFile(explicit, dir string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	for _, name := range []string{DefaultConfigFile, DefaultConfigFileAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

func loadEnvFile(explicit, dir string) error {
	path := explicit
	if path == "" {
		path = filepath.Join(dir, DefaultEnvFile)
	}
	err := godotenv.Load(path)
	switch {
	case err == nil:
		return nil
	case explicit == "" && errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
