package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// apiKeyEnv lists the environment variables checked for a key, in order.
var apiKeyEnv = []string{"ORCA_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"}

// KeySource is where the API key was found.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// lookupAPIKey returns the first key found in the environment, then in
// anthropic.api_key. A config value may reference variables (${VAR});
// one that stays unresolved counts as unset.
func lookupAPIKey(cfg *Config) (string, KeySource) {
	for _, name := range apiKeyEnv {
		if key := os.Getenv(name); key != "" {
			return key, KeySourceEnv
		}
	}
	if cfg == nil || cfg.Anthropic.APIKey == "" {
		return "", KeySourceNone
	}
	key := os.ExpandEnv(cfg.Anthropic.APIKey)
	if key == "" || strings.HasPrefix(key, "${") {
		return "", KeySourceNone
	}
	return key, KeySourceConfig
}

// GetAPIKey returns the Anthropic API key or ErrNoAPIKey.
func GetAPIKey(cfg *Config) (string, error) {
	key, src := lookupAPIKey(cfg)
	if src == KeySourceNone {
		return "", ErrNoAPIKey
	}
	return key, nil
}

// GetAPIKeySource reports where GetAPIKey would find the key.
func GetAPIKeySource(cfg *Config) KeySource {
	_, src := lookupAPIKey(cfg)
	return src
}

// NeedsAPIKey reports whether the configured model worker calls the
// Anthropic API directly and therefore needs a key.
func NeedsAPIKey(cfg *Config) bool {
	m := cfg.Workers.Model
	return m.Enabled && (m.Provider == "" || m.Provider == "anthropic") && !cfg.Anthropic.UseBedrock
}

// ValidateAPIKey checks the shape of a key without contacting the API.
func ValidateAPIKey(key string) error {
	switch {
	case key == "":
		return ErrNoAPIKey
	case !strings.HasPrefix(key, "sk-ant-"):
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	case len(key) < 20:
		return fmt.Errorf("invalid API key format: %d characters is too short", len(key))
	}
	return nil
}

// MaskAPIKey shortens a key for display to its prefix and last four
// characters.
func MaskAPIKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 15:
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}
