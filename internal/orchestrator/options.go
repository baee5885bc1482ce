package orchestrator

import (
	"github.com/spf13/afero"

	"github.com/ShayCichocki/orca/internal/registry"
	"github.com/ShayCichocki/orca/internal/state"
	"github.com/ShayCichocki/orca/internal/validation"
	"github.com/ShayCichocki/orca/pkg/models"
)

// RequiredConfig contains the minimal required configuration for an Orchestrator.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// RepoPath is the root of the project being edited.
	RepoPath string
	// Registry maps capabilities to workers.
	Registry *registry.Registry
}

// GateFactory builds the validator gate for one run.
type GateFactory func(fs afero.Fs, root string, cb *models.CodebaseContext, req models.EditRequest) *validation.Gate

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	fs           afero.Fs
	logger       *DebugLogger
	emitter      *EventEmitter
	store        state.Store
	executor     ExecutorConfig
	dryRun       bool
	allowInvalid bool
	approver     func(cs *models.ChangeSet) bool
	gateFactory  GateFactory
	codebase     *models.CodebaseContext
}

func defaultOptions() *orchestratorOptions {
	return &orchestratorOptions{
		fs:          afero.NewOsFs(),
		executor:    DefaultExecutorConfig(),
		gateFactory: DefaultGate,
	}
}

// WithFs sets the filesystem the project is read from and written to.
func WithFs(fs afero.Fs) Option {
	return func(o *orchestratorOptions) { o.fs = fs }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithEmitter sets the event emitter. Without one, events are discarded.
func WithEmitter(e *EventEmitter) Option {
	return func(o *orchestratorOptions) { o.emitter = e }
}

// WithStore enables run history and rollback snapshots.
func WithStore(s state.Store) Option {
	return func(o *orchestratorOptions) { o.store = s }
}

// WithExecutorConfig sets the scheduler limits.
func WithExecutorConfig(cfg ExecutorConfig) Option {
	return func(o *orchestratorOptions) { o.executor = cfg }
}

// WithDryRun validates the change set but never applies it.
func WithDryRun(b bool) Option {
	return func(o *orchestratorOptions) { o.dryRun = b }
}

// WithAllowInvalid applies change sets that failed validation.
func WithAllowInvalid(b bool) Option {
	return func(o *orchestratorOptions) { o.allowInvalid = b }
}

// WithApprover sets the callback asked before applying a change set whose
// request requires review.
func WithApprover(fn func(cs *models.ChangeSet) bool) Option {
	return func(o *orchestratorOptions) { o.approver = fn }
}

// WithGateFactory replaces the default validator gate.
func WithGateFactory(f GateFactory) Option {
	return func(o *orchestratorOptions) {
		if f != nil {
			o.gateFactory = f
		}
	}
}

// WithCodebase skips detection and uses cb for every run (mainly for testing).
func WithCodebase(cb *models.CodebaseContext) Option {
	return func(o *orchestratorOptions) { o.codebase = cb }
}

// DefaultGate runs the content checks, adding the removed-export check
// when the request preserves the API.
func DefaultGate(fs afero.Fs, root string, cb *models.CodebaseContext, req models.EditRequest) *validation.Gate {
	opts := validation.DefaultOptions()
	opts.API = req.Constraints.PreserveAPI
	return validation.NewGate(fs, root, opts.Checks()...)
}
