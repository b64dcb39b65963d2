// Package config provides the configuration schema and loader for the pesu
// voice companion.
package config

import (
	"log/slog"

	"github.com/karkuvel/pesu/internal/persona"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l to the corresponding slog level. Unset or unknown maps to Info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration structure for pesu.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Session  SessionConfig  `yaml:"session"`
}

// ServerConfig holds network and logging settings for the status/metrics
// HTTP endpoint.
type ServerConfig struct {
	// ListenAddr is the TCP address the status server listens on
	// (e.g., ":8080"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProviderConfig configures the speech-to-speech model backend.
type ProviderConfig struct {
	// APIKey authenticates against the model API. Can also be supplied via
	// the PESU_API_KEY environment variable, which takes precedence over an
	// empty value here.
	APIKey string `yaml:"api_key"`

	// Model overrides the default live model name. Leave empty for the
	// built-in default.
	Model string `yaml:"model"`

	// BaseURL overrides the websocket endpoint. Leave empty for the
	// built-in default.
	BaseURL string `yaml:"base_url"`
}

// SessionConfig holds the default persona for new conversations. Both fields
// can be overridden per conversation at the command prompt.
type SessionConfig struct {
	// Language is the reply language (e.g., "english", "tamil").
	Language persona.Language `yaml:"language"`

	// Mode is the companion persona ("mama" or "love").
	Mode persona.Mode `yaml:"mode"`
}
