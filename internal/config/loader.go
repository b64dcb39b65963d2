package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/karkuvel/pesu/internal/persona"
	"gopkg.in/yaml.v3"
)

// APIKeyEnv is the environment variable consulted when provider.api_key is
// not set in the file.
const APIKeyEnv = "PESU_API_KEY"

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate], plus the environment fallback for the API key.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	if cfg.Provider.APIKey == "" {
		if key := os.Getenv(APIKeyEnv); key != "" {
			cfg.Provider.APIKey = key
			slog.Debug("using API key from environment", "var", APIKeyEnv)
		}
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Empty optional fields are allowed; only non-empty invalid values fail.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Session.Language != "" && !cfg.Session.Language.IsValid() {
		errs = append(errs, fmt.Errorf("session.language %q is invalid; valid values: %v", cfg.Session.Language, persona.Languages))
	}
	if cfg.Session.Mode != "" && !cfg.Session.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("session.mode %q is invalid; valid values: %v", cfg.Session.Mode, persona.Modes))
	}

	if cfg.Provider.APIKey == "" {
		slog.Warn("provider.api_key is empty; set it in the file or via " + APIKeyEnv)
	}

	return errors.Join(errs...)
}
