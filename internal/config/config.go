// Package config handles configuration loading and management for orca.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/viper"
)

// ProjectConfigName is the project-level override file.
const ProjectConfigName = ".orca.yaml"

// Config holds all configuration for orca.
type Config struct {
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Run        RunConfig        `mapstructure:"run"`
	Validation ValidationConfig `mapstructure:"validation"`
	Workers    WorkersConfig    `mapstructure:"workers"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	State      StateConfig      `mapstructure:"state"`
}

// SchedulerConfig bounds unit execution.
type SchedulerConfig struct {
	MaxConcurrency    int           `mapstructure:"max_concurrency"`
	DependencyTimeout time.Duration `mapstructure:"dependency_timeout"`
	// UnitTimeout bounds a single worker run. Zero means no limit.
	UnitTimeout time.Duration `mapstructure:"unit_timeout"`
	FailFast    bool          `mapstructure:"fail_fast"`
}

// RunConfig holds run-wide switches.
type RunConfig struct {
	DryRun       bool `mapstructure:"dry_run"`
	AllowInvalid bool `mapstructure:"allow_invalid"`
}

// ValidationConfig selects the validator gate checks.
type ValidationConfig struct {
	Syntax     bool `mapstructure:"syntax"`
	References bool `mapstructure:"references"`
	// API enables the removed-export check for requests that preserve the API.
	API bool `mapstructure:"api"`

	// Protected flags edits to credentials, migrations and lock files.
	Protected      bool     `mapstructure:"protected"`
	BlockProtected bool     `mapstructure:"block_protected"`
	ProtectedPaths []string `mapstructure:"protected_paths"`

	Typecheck   bool           `mapstructure:"typecheck"`
	Lint        bool           `mapstructure:"lint"`
	Tests       bool           `mapstructure:"tests"`
	ToolTimeout time.Duration  `mapstructure:"tool_timeout"`
	Commands    CommandsConfig `mapstructure:"commands"`
}

// CommandsConfig overrides the detected tool command lines.
type CommandsConfig struct {
	Typecheck string `mapstructure:"typecheck"`
	Lint      string `mapstructure:"lint"`
	Tests     string `mapstructure:"tests"`
}

// WorkersConfig configures the built-in workers.
type WorkersConfig struct {
	RulesFile    string      `mapstructure:"rules_file"`
	MaxFileBytes int         `mapstructure:"max_file_bytes"`
	Model        ModelConfig `mapstructure:"model"`
}

// ModelConfig configures the model-backed worker.
type ModelConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Provider is "anthropic" or "ollama".
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// LoggingConfig controls the rotating debug log.
type LoggingConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// StateConfig locates the run history database.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// ToolCommand returns the argv for a tool check, or nil when the check is
// disabled. A configured command line wins over the detected one.
func (v ValidationConfig) ToolCommand(name string, detected []string) ([]string, error) {
	var enabled bool
	var custom string
	switch name {
	case "typecheck":
		enabled, custom = v.Typecheck, v.Commands.Typecheck
	case "lint":
		enabled, custom = v.Lint, v.Commands.Lint
	case "tests":
		enabled, custom = v.Tests, v.Commands.Tests
	default:
		return nil, fmt.Errorf("unknown tool check %q", name)
	}
	if !enabled {
		return nil, nil
	}
	if custom == "" {
		return detected, nil
	}
	argv, err := shellquote.Split(custom)
	if err != nil {
		return nil, fmt.Errorf("parse validation.commands.%s: %w", name, err)
	}
	return argv, nil
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ORCA_SCHEDULER_MAX_CONCURRENCY, ANTHROPIC_API_KEY, ...)
// 2. Project config (.orca.yaml in root or a parent)
// 3. User config (~/.config/orca/config.yaml)
// 4. Built-in defaults
func Load(root string) (*Config, error) {
	v, err := load(root)
	if err != nil {
		return nil, err
	}
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return unmarshal(v)
}

// Get returns the effective value of one key, as Load would resolve it.
func Get(root, key string) (interface{}, error) {
	v, err := load(root)
	if err != nil {
		return nil, err
	}
	if !isKnownKey(v, key) {
		return nil, fmt.Errorf("unknown config key %q", key)
	}
	return v.Get(key), nil
}

// Settings returns every effective key and value, sorted by key.
func Settings(root string) ([]Setting, error) {
	v, err := load(root)
	if err != nil {
		return nil, err
	}
	keys := v.AllKeys()
	sort.Strings(keys)
	out := make([]Setting, len(keys))
	for i, k := range keys {
		out[i] = Setting{Key: k, Value: v.Get(k)}
	}
	return out, nil
}

// Setting is one resolved key.
type Setting struct {
	Key   string
	Value interface{}
}

// SetProjectValue writes one key into the project config file of root,
// creating the file if needed. The key must be known.
func SetProjectValue(root, key, value string) error {
	defaults := viper.New()
	setDefaults(defaults)
	if !isKnownKey(defaults, key) {
		return fmt.Errorf("unknown config key %q", key)
	}

	path := filepath.Join(root, ProjectConfigName)
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading project config: %w", err)
		}
	}
	v.Set(key, value)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing project config: %w", err)
	}
	return nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("scheduler.max_concurrency", cfg.Scheduler.MaxConcurrency)
	v.Set("scheduler.dependency_timeout", cfg.Scheduler.DependencyTimeout.String())
	v.Set("scheduler.unit_timeout", cfg.Scheduler.UnitTimeout.String())
	v.Set("scheduler.fail_fast", cfg.Scheduler.FailFast)
	v.Set("validation.syntax", cfg.Validation.Syntax)
	v.Set("validation.references", cfg.Validation.References)
	v.Set("validation.api", cfg.Validation.API)
	v.Set("validation.protected", cfg.Validation.Protected)
	v.Set("validation.block_protected", cfg.Validation.BlockProtected)
	v.Set("validation.protected_paths", cfg.Validation.ProtectedPaths)
	v.Set("validation.typecheck", cfg.Validation.Typecheck)
	v.Set("validation.lint", cfg.Validation.Lint)
	v.Set("validation.tests", cfg.Validation.Tests)
	v.Set("validation.tool_timeout", cfg.Validation.ToolTimeout.String())
	v.Set("workers.rules_file", cfg.Workers.RulesFile)
	v.Set("workers.max_file_bytes", cfg.Workers.MaxFileBytes)
	v.Set("workers.model.enabled", cfg.Workers.Model.Enabled)
	v.Set("workers.model.provider", cfg.Workers.Model.Provider)
	v.Set("workers.model.model", cfg.Workers.Model.Model)
	v.Set("workers.model.max_tokens", cfg.Workers.Model.MaxTokens)
	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.Set("logging.max_backups", cfg.Logging.MaxBackups)
	v.Set("logging.max_age_days", cfg.Logging.MaxAgeDays)
	v.Set("state.path", cfg.State.Path)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the project config file for root, or "" if none exists.
func GetProjectConfigPath(root string) string {
	return findProjectConfig(root)
}

// Resolve returns p unchanged when absolute, otherwise joined to root.
func Resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func load(root string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(root); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config: %w", err)
		}
		// Merge project config (takes precedence)
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	v.SetEnvPrefix("orca")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ORCA_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	return v, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

func isKnownKey(v *viper.Viper, key string) bool {
	key = strings.ToLower(key)
	for _, k := range v.AllKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("scheduler.max_concurrency", d.Scheduler.MaxConcurrency)
	v.SetDefault("scheduler.dependency_timeout", d.Scheduler.DependencyTimeout.String())
	v.SetDefault("scheduler.unit_timeout", d.Scheduler.UnitTimeout.String())
	v.SetDefault("scheduler.fail_fast", d.Scheduler.FailFast)

	v.SetDefault("run.dry_run", d.Run.DryRun)
	v.SetDefault("run.allow_invalid", d.Run.AllowInvalid)

	v.SetDefault("validation.syntax", d.Validation.Syntax)
	v.SetDefault("validation.references", d.Validation.References)
	v.SetDefault("validation.api", d.Validation.API)
	v.SetDefault("validation.protected", d.Validation.Protected)
	v.SetDefault("validation.block_protected", d.Validation.BlockProtected)
	v.SetDefault("validation.protected_paths", []string{})
	v.SetDefault("validation.typecheck", d.Validation.Typecheck)
	v.SetDefault("validation.lint", d.Validation.Lint)
	v.SetDefault("validation.tests", d.Validation.Tests)
	v.SetDefault("validation.tool_timeout", d.Validation.ToolTimeout.String())
	v.SetDefault("validation.commands.typecheck", "")
	v.SetDefault("validation.commands.lint", "")
	v.SetDefault("validation.commands.tests", "")

	v.SetDefault("workers.rules_file", d.Workers.RulesFile)
	v.SetDefault("workers.max_file_bytes", d.Workers.MaxFileBytes)
	v.SetDefault("workers.model.enabled", d.Workers.Model.Enabled)
	v.SetDefault("workers.model.provider", d.Workers.Model.Provider)
	v.SetDefault("workers.model.model", d.Workers.Model.Model)
	v.SetDefault("workers.model.max_tokens", d.Workers.Model.MaxTokens)

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)

	v.SetDefault("state.path", d.State.Path)
}

// getUserConfigDir returns the XDG config directory for orca.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "orca")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "orca")
	}
	return filepath.Join(home, ".config", "orca")
}

// findProjectConfig searches for .orca.yaml in dir and its parents.
func findProjectConfig(dir string) string {
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return ""
		}
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MaxConcurrency:    4,
			DependencyTimeout: 60 * time.Second,
		},
		Validation: ValidationConfig{
			Syntax:      true,
			References:  true,
			API:         true,
			Protected:   true,
			ToolTimeout: 5 * time.Minute,
		},
		Workers: WorkersConfig{
			RulesFile:    filepath.Join(".orca", "rules.yaml"),
			MaxFileBytes: 64 * 1024,
			Model: ModelConfig{
				Provider:  "anthropic",
				Model:     "claude-sonnet-4-20250514",
				MaxTokens: 8192,
			},
		},
		Logging: LoggingConfig{
			File:       filepath.Join(".orca", "logs", "orca-debug.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		State: StateConfig{
			Path: filepath.Join(".orca", "state.db"),
		},
	}
}
