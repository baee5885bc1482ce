package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/orca/internal/apply"
	"github.com/ShayCichocki/orca/internal/codebase"
	"github.com/ShayCichocki/orca/internal/planner"
	"github.com/ShayCichocki/orca/internal/registry"
	"github.com/ShayCichocki/orca/internal/state"
	"github.com/ShayCichocki/orca/internal/validation"
	"github.com/ShayCichocki/orca/pkg/models"
)

var (
	// ErrPostValidationFailed indicates the post-apply checks failed and the
	// change set was rolled back.
	ErrPostValidationFailed = errors.New("post-apply validation failed")
	// ErrNotApplied indicates a rollback was requested for a run that was
	// never applied or was already rolled back.
	ErrNotApplied = errors.New("run is not applied")
	// ErrNoSnapshot indicates an applied run has no stored snapshot.
	ErrNoSnapshot = errors.New("no snapshot stored for run")
	// ErrNoStore indicates an operation needs run history but none is configured.
	ErrNoStore = errors.New("no run store configured")
)

// Orchestrator coordinates one edit request from plan to apply.
// It wires together: planner -> executor -> aggregator -> gate -> apply manager.
type Orchestrator struct {
	root     string
	fs       afero.Fs
	registry *registry.Registry
	planner  *planner.Planner
	applier  *apply.Manager
	opts     *orchestratorOptions
}

// New creates an Orchestrator for the project at req.RepoPath.
func New(req RequiredConfig, opts ...Option) *Orchestrator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger != nil {
		setPackageLogger(o.logger)
	}

	applier := apply.NewManager(o.fs, req.RepoPath)
	applier.SetDebugLog(debugLog)

	return &Orchestrator{
		root:     req.RepoPath,
		fs:       o.fs,
		registry: req.Registry,
		planner:  planner.New(o.fs, req.RepoPath, planner.WithDebugLog(debugLog)),
		applier:  applier,
		opts:     o,
	}
}

// Codebase returns the project description shared with every worker.
func (o *Orchestrator) Codebase() *models.CodebaseContext {
	if o.opts.codebase != nil {
		return o.opts.codebase
	}
	cb := codebase.Detect(o.fs, o.root)
	debugLog("[orchestrator] detected %s project, languages %v, frameworks %v", cb.ProjectType, cb.Languages, cb.Frameworks)
	return cb
}

// Plan builds and validates the edit plan of req without running it.
func (o *Orchestrator) Plan(ctx context.Context, req models.EditRequest) (*models.EditPlan, error) {
	plan, err := o.planner.Plan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	return plan, nil
}

// Preview renders the diffs a change set would write.
func (o *Orchestrator) Preview(cs *models.ChangeSet) []apply.FileDiff {
	return o.applier.Preview(cs)
}

// Run executes the full workflow for req:
//  1. Detect the codebase and build the plan
//  2. Run every unit through its worker
//  3. Merge the results and validate the change set
//  4. Unless dry run: snapshot, apply, verify, and roll back on failure
//
// The change set is returned whenever one was built, including when apply
// is refused or rolled back; the error then says why.
func (o *Orchestrator) Run(ctx context.Context, req models.EditRequest) (*models.ChangeSet, error) {
	started := time.Now()
	cb := o.Codebase()

	plan, err := o.Plan(ctx, req)
	if err != nil {
		return nil, o.fail(nil, nil, err)
	}
	debugLog("[orchestrator] plan %s: %d units, order=%s, risk=%s, files=%d", plan.ID, len(plan.Units), plan.ExecutionOrder, plan.RiskLevel, len(plan.AffectedFiles))
	o.emit(OrchestratorEvent{Type: EventPlanCreated, Plan: plan, Message: req.Goal})

	run := o.recordPlan(plan)

	executor := NewExecutor(o.registry, o.opts.executor, o.opts.emitter)
	results, err := executor.Execute(ctx, plan, cb)
	if err != nil {
		return nil, o.fail(run, nil, fmt.Errorf("execute: %w", err))
	}

	gate := o.opts.gateFactory(o.fs, o.root, cb, req)
	gate.SetDebugLog(debugLog)
	cs := NewAggregator(gate).Aggregate(ctx, plan, results)
	if o.opts.dryRun && len(cs.Edits) > 0 {
		skippedPostChecks(gate, cs)
	}
	o.emit(OrchestratorEvent{
		Type:      EventValidationCompleted,
		ChangeSet: cs,
		Message:   fmt.Sprintf("%d errors, %d warnings", len(cs.Validation.Errors), len(cs.Validation.Warnings)),
	})
	o.recordChangeSet(run, cs, state.RunValidated)

	if o.opts.dryRun {
		debugLog("[orchestrator] dry run: change set %s not applied", cs.ID)
		return cs, nil
	}
	if len(cs.Edits) == 0 {
		debugLog("[orchestrator] change set %s has no edits", cs.ID)
		return cs, nil
	}

	if err := o.applyChangeSet(ctx, run, gate, req, cs); err != nil {
		return cs, o.fail(run, cs, err)
	}
	debugLog("[orchestrator] run %s applied in %s", plan.ID, time.Since(started).Round(time.Millisecond))
	return cs, nil
}

// skippedPostChecks warns about each post-apply check a dry run leaves out.
func skippedPostChecks(gate *validation.Gate, cs *models.ChangeSet) {
	for _, c := range gate.Checks() {
		if c.Stage() != validation.StagePost {
			continue
		}
		cs.Validation.Warnings = append(cs.Validation.Warnings, models.ValidationIssue{
			Kind:    models.IssueTool,
			Message: fmt.Sprintf("%s not run: post-apply checks are skipped in dry run", c.Name()),
		})
	}
}

// applyChangeSet authorizes, snapshots, writes and verifies cs.
func (o *Orchestrator) applyChangeSet(ctx context.Context, run *state.Run, gate *validation.Gate, req models.EditRequest, cs *models.ChangeSet) error {
	policy := apply.Policy{
		AllowInvalid:  o.opts.allowInvalid,
		RequireReview: req.Constraints.RequiresReview,
		Approve:       o.opts.approver,
	}
	if err := policy.Authorize(cs); err != nil {
		return err
	}

	txn, err := o.applier.Prepare(cs)
	if err != nil {
		return fmt.Errorf("prepare apply: %w", err)
	}
	if err := o.recordSnapshot(run, cs, txn.RollbackData()); err != nil {
		return err
	}

	applyStart := time.Now()
	o.emit(OrchestratorEvent{Type: EventApplyStarted, ChangeSet: cs, Message: fmt.Sprintf("%d files", len(cs.Edits))})
	if err := txn.Apply(); err != nil {
		var ae *apply.ApplyError
		if errors.As(err, &ae) && ae.RolledBack {
			o.emit(OrchestratorEvent{Type: EventRollbackCompleted, ChangeSet: cs, Error: err, Message: "apply failed, project restored"})
			o.recordChangeSet(run, cs, state.RunRolledBack)
		}
		return err
	}

	if gate.HasStage(validation.StagePost) {
		post := gate.Verify(ctx, cs.Edits)
		cs.Validation.Warnings = append(cs.Validation.Warnings, post.Warnings...)
		cs.Validation.Errors = append(cs.Validation.Errors, post.Errors...)
		cs.Validation.Valid = len(cs.Validation.Errors) == 0
		if len(post.Errors) > 0 && !o.opts.allowInvalid {
			debugLog("[orchestrator] post-apply checks failed with %d errors, rolling back", len(post.Errors))
			rbErr := o.applier.Rollback(cs.RollbackData)
			if rbErr == nil {
				cs.Applied = false
				o.emit(OrchestratorEvent{Type: EventRollbackCompleted, ChangeSet: cs, Message: "post-apply checks failed, project restored"})
				o.recordChangeSet(run, cs, state.RunRolledBack)
			}
			return errors.Join(fmt.Errorf("%w: %d errors", ErrPostValidationFailed, len(post.Errors)), rbErr)
		}
	}

	o.emit(OrchestratorEvent{Type: EventApplyCompleted, ChangeSet: cs, Duration: time.Since(applyStart)})
	o.recordChangeSet(run, cs, state.RunApplied)
	return nil
}

// RollbackRun restores the project to its state before the run was applied.
func (o *Orchestrator) RollbackRun(ctx context.Context, runID string) error {
	if o.opts.store == nil {
		return ErrNoStore
	}
	run, err := o.opts.store.GetRun(runID)
	if err != nil {
		return err
	}
	if run.RolledBack || !(run.Applied || run.Status == state.RunApplying) {
		return fmt.Errorf("rollback %s: %w (status %s)", runID, ErrNotApplied, run.Status)
	}
	data, err := o.opts.store.GetSnapshot(runID)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("rollback %s: %w", runID, ErrNoSnapshot)
	}

	if err := o.applier.Rollback(data); err != nil {
		return fmt.Errorf("rollback %s: %w", runID, err)
	}
	if err := o.opts.store.MarkRolledBack(runID); err != nil {
		return err
	}
	debugLog("[orchestrator] run %s rolled back", runID)
	o.emit(OrchestratorEvent{Type: EventRollbackCompleted, Message: "run " + runID + " rolled back"})
	return nil
}

// fail emits task-error, records the failure, and returns err.
func (o *Orchestrator) fail(run *state.Run, cs *models.ChangeSet, err error) error {
	debugLog("[orchestrator] run failed: %v", err)
	o.emit(OrchestratorEvent{Type: EventTaskError, ChangeSet: cs, Error: err, Message: err.Error()})
	if run != nil && run.Status != state.RunRolledBack {
		status := state.RunFailed
		if cs != nil && !cs.Applied && run.Status == state.RunValidated {
			// Refused or failed before any write.
			status = state.RunValidated
		}
		o.recordChangeSet(run, cs, status)
	}
	return err
}

func (o *Orchestrator) emit(ev OrchestratorEvent) {
	o.opts.emitter.Emit(ev)
}

// recordPlan saves a new run for plan. Persistence failures are logged
// and do not stop the run.
func (o *Orchestrator) recordPlan(plan *models.EditPlan) *state.Run {
	if o.opts.store == nil {
		return nil
	}
	run := &state.Run{
		ID:          plan.ID,
		Description: plan.Request.Goal,
		CreatedAt:   plan.CreatedAt,
		Status:      state.RunPlanned,
		Plan:        plan,
	}
	if err := o.opts.store.SaveRun(run); err != nil {
		debugLog("[orchestrator] WARNING: save run %s: %v", plan.ID, err)
		return nil
	}
	return run
}

func (o *Orchestrator) recordChangeSet(run *state.Run, cs *models.ChangeSet, status state.RunStatus) {
	if run == nil {
		return
	}
	run.Status = status
	if cs != nil {
		run.ChangeSet = cs
		run.Valid = cs.Validation.Valid
		run.Applied = cs.Applied
	}
	run.RolledBack = status == state.RunRolledBack
	if err := o.opts.store.UpdateRun(run); err != nil {
		debugLog("[orchestrator] WARNING: update run %s: %v", run.ID, err)
	}
}

// recordSnapshot persists the rollback data before anything is written.
// Without a durable snapshot the run could not be undone later, so a
// failure here stops the apply.
func (o *Orchestrator) recordSnapshot(run *state.Run, cs *models.ChangeSet, data *models.RollbackData) error {
	if run == nil {
		return nil
	}
	if err := o.opts.store.SaveSnapshot(run.ID, data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	o.recordChangeSet(run, cs, state.RunApplying)
	return nil
}
