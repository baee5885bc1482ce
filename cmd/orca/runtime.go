package main

import (
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/orca/internal/config"
	iexec "github.com/ShayCichocki/orca/internal/exec"
	"github.com/ShayCichocki/orca/internal/orchestrator"
	"github.com/ShayCichocki/orca/internal/protect"
	"github.com/ShayCichocki/orca/internal/registry"
	"github.com/ShayCichocki/orca/internal/state"
	"github.com/ShayCichocki/orca/internal/validation"
	"github.com/ShayCichocki/orca/internal/workers"
	"github.com/ShayCichocki/orca/pkg/models"
)

// runtime holds everything one command needs to drive the orchestrator.
type runtime struct {
	root     string
	cfg      *config.Config
	fs       afero.Fs
	logger   *orchestrator.DebugLogger
	store    *state.DB
	registry *registry.Registry
	tracker  *workers.TokenTracker
}

// newRuntime loads the configuration of root and builds the logger, the
// run store and the worker registry.
func newRuntime(root string) (*runtime, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := checkToolCommands(cfg.Validation); err != nil {
		return nil, err
	}

	rt := &runtime{root: root, cfg: cfg, fs: afero.NewOsFs()}

	rt.logger, err = orchestrator.NewRotatingLogger(logConfig(root, cfg.Logging))
	if err != nil {
		// Logging is optional
		rt.logger = orchestrator.NopLogger()
	}

	rt.store, err = openStore(root, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// logConfig overlays the logging section on the default log location.
// An empty file disables the debug log.
func logConfig(root string, cfg config.LoggingConfig) orchestrator.LogConfig {
	lc := orchestrator.DefaultLogConfig(root)
	lc.Path = ""
	if cfg.File != "" {
		lc.Path = config.Resolve(root, cfg.File)
	}
	if cfg.MaxSizeMB > 0 {
		lc.MaxSizeMB = cfg.MaxSizeMB
	}
	if cfg.MaxBackups > 0 {
		lc.MaxBackups = cfg.MaxBackups
	}
	if cfg.MaxAgeDays > 0 {
		lc.MaxAgeDays = cfg.MaxAgeDays
	}
	return lc
}

// openStore opens and migrates the run history database.
func openStore(root string, cfg *config.Config) (*state.DB, error) {
	db, err := state.Open(config.Resolve(root, cfg.State.Path))
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate run history: %w", err)
	}
	return db, nil
}

// Close releases the store and the log file.
func (rt *runtime) Close() {
	if rt.store != nil {
		rt.store.Close()
	}
	rt.logger.Close()
}

// buildRegistry registers the built-in workers. The model provider is only
// created when the model worker is enabled.
func (rt *runtime) buildRegistry() error {
	rules, err := workers.LoadRules(rt.fs, config.Resolve(rt.root, rt.cfg.Workers.RulesFile))
	if err != nil {
		return err
	}
	provider, tracker, err := buildProvider(rt.cfg)
	if err != nil {
		return err
	}
	rt.tracker = tracker

	opts := contentOptions(rt.cfg.Validation)
	rt.registry = registry.New()
	workers.Register(rt.registry, workers.Config{
		Fs:           rt.fs,
		Root:         rt.root,
		Rules:        rules,
		Provider:     provider,
		MaxFileBytes: rt.cfg.Workers.MaxFileBytes,
		Gate:         validation.NewGate(rt.fs, rt.root, opts.Checks()...),
	})
	return nil
}

// buildProvider returns the configured model provider, or nil when the
// model worker is disabled.
func buildProvider(cfg *config.Config) (workers.Provider, *workers.TokenTracker, error) {
	m := cfg.Workers.Model
	if !m.Enabled {
		return nil, nil, nil
	}

	switch m.Provider {
	case "", "anthropic":
		var key string
		if config.NeedsAPIKey(cfg) {
			k, err := config.GetAPIKey(cfg)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or anthropic.api_key, or disable workers.model.enabled", err)
			}
			if err := config.ValidateAPIKey(k); err != nil {
				return nil, nil, fmt.Errorf("%s API key: %w", config.GetAPIKeySource(cfg), err)
			}
			key = k
		}
		p, err := workers.NewAnthropicProvider(workers.AnthropicConfig{
			Model:      m.Model,
			APIKey:     key,
			UseBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:  cfg.Anthropic.AWSRegion,
			AWSProfile: cfg.Anthropic.AWSProfile,
			MaxTokens:  int64(m.MaxTokens),
		})
		if err != nil {
			return nil, nil, err
		}
		return p, p.Tracker(), nil
	case "ollama":
		p, err := workers.NewOllamaProvider(m.Model)
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown workers.model.provider %q: must be anthropic or ollama", m.Provider)
	}
}

// executorConfig maps the scheduler section to executor limits.
func executorConfig(cfg config.SchedulerConfig) orchestrator.ExecutorConfig {
	return orchestrator.ExecutorConfig{
		MaxConcurrency:    cfg.MaxConcurrency,
		DependencyTimeout: cfg.DependencyTimeout,
		UnitTimeout:       cfg.UnitTimeout,
		FailFast:          cfg.FailFast,
	}
}

// contentOptions enables the content checks selected in cfg and no tools.
func contentOptions(cfg config.ValidationConfig) validation.Options {
	opts := validation.Options{
		Syntax:      cfg.Syntax,
		References:  cfg.References,
		ToolTimeout: cfg.ToolTimeout,
	}
	if cfg.Protected {
		opts.Protected = protect.New(cfg.ProtectedPaths...)
		opts.BlockProtected = cfg.BlockProtected
	}
	return opts
}

// validationOptions builds the gate options for one run. Tool commands
// come from the configuration or, failing that, from the detected project.
func validationOptions(cfg config.ValidationConfig, cb *models.CodebaseContext, req models.EditRequest, runner iexec.CommandRunner) validation.Options {
	opts := contentOptions(cfg)
	opts.API = cfg.API && req.Constraints.PreserveAPI
	opts.Runner = runner
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = 5 * time.Minute
	}

	// Command lines were checked when the runtime was built.
	opts.Typecheck, _ = cfg.ToolCommand("typecheck", cb.BuildCommand)
	opts.Lint, _ = cfg.ToolCommand("lint", cb.LintCommand)
	if req.Constraints.WantTests() {
		opts.Tests, _ = cfg.ToolCommand("tests", cb.TestCommand)
	}
	return opts
}

// gateFactory returns the orchestrator gate factory for cfg.
func gateFactory(cfg config.ValidationConfig, runner iexec.CommandRunner) orchestrator.GateFactory {
	return func(fs afero.Fs, root string, cb *models.CodebaseContext, req models.EditRequest) *validation.Gate {
		opts := validationOptions(cfg, cb, req, runner)
		return validation.NewGate(fs, root, opts.Checks()...)
	}
}

// checkToolCommands reports unparsable custom tool command lines.
func checkToolCommands(cfg config.ValidationConfig) error {
	for _, name := range []string{"typecheck", "lint", "tests"} {
		if _, err := cfg.ToolCommand(name, nil); err != nil {
			return err
		}
	}
	return nil
}
