package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// Redacted returns a copy of c with the API key masked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.LLM.APIKey != "" {
		out.LLM.APIKey = "********"
	}
	return &out
}

// YAML encodes c as a nested YAML document.
func (c *Config) YAML() ([]byte, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(c.ToMap(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to build config tree: %w", err)
	}
	data, err := yaml.Marshal(k.Raw())
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

// WriteFile writes c to path. An existing file is only replaced when
// overwrite is set. The API key is never written.
func WriteFile(path string, c *Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	out := *c
	out.LLM.APIKey = ""
	data, err := out.YAML()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
