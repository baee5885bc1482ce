package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/orca/internal/graph"
	"github.com/ShayCichocki/orca/internal/registry"
	"github.com/ShayCichocki/orca/pkg/models"
)

// ErrDependencyTimeout indicates a unit waited too long for its dependencies.
var ErrDependencyTimeout = errors.New("dependency timeout")

// DependencyTimeoutError reports the unit that gave up waiting and the
// dependencies that had not produced a result.
type DependencyTimeoutError struct {
	UnitID  string
	Missing []string
	Waited  time.Duration
}

func (e *DependencyTimeoutError) Error() string {
	return fmt.Sprintf("%s: unit %s waited %s for %v", ErrDependencyTimeout, e.UnitID, e.Waited.Round(time.Millisecond), e.Missing)
}

func (e *DependencyTimeoutError) Unwrap() error {
	return ErrDependencyTimeout
}

// ExecutorConfig bounds how units are run.
type ExecutorConfig struct {
	// MaxConcurrency caps the number of workers running at once.
	// Zero or negative means one slot per unit.
	MaxConcurrency int
	// DependencyTimeout is how long a unit may wait for its dependencies.
	DependencyTimeout time.Duration
	// UnitTimeout bounds a single worker run. Zero means no limit.
	UnitTimeout time.Duration
	// FailFast skips units whose dependency failed instead of running them.
	FailFast bool
}

// DefaultExecutorConfig returns the default executor configuration.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrency:    4,
		DependencyTimeout: 60 * time.Second,
	}
}

// Executor runs the units of a plan through the registry, releasing each
// unit as soon as every dependency has produced a result.
type Executor struct {
	registry *registry.Registry
	cfg      ExecutorConfig
	emitter  *EventEmitter
}

// NewExecutor creates an executor. A nil emitter discards events.
func NewExecutor(reg *registry.Registry, cfg ExecutorConfig, emitter *EventEmitter) *Executor {
	if cfg.DependencyTimeout <= 0 {
		cfg.DependencyTimeout = DefaultExecutorConfig().DependencyTimeout
	}
	return &Executor{registry: reg, cfg: cfg, emitter: emitter}
}

// execution is the scheduler-local state of one Execute call.
type execution struct {
	// done is closed when the unit with that ID has a result.
	done map[string]chan struct{}

	mu      sync.Mutex
	results map[string]*models.WorkResult
	fatal   error
	// active counts units past their dependency wait that have not yet
	// recorded a result, whether queued for a slot or running.
	active       int
	lastProgress time.Time
}

func newExecution(units []*models.WorkUnit) *execution {
	x := &execution{
		done:         make(map[string]chan struct{}, len(units)),
		results:      make(map[string]*models.WorkResult, len(units)),
		lastProgress: time.Now(),
	}
	for _, u := range units {
		x.done[u.ID] = make(chan struct{})
	}
	return x
}

func (x *execution) record(res *models.WorkResult) {
	x.mu.Lock()
	x.results[res.UnitID] = res
	x.lastProgress = time.Now()
	x.mu.Unlock()
}

func (x *execution) begin() {
	x.mu.Lock()
	x.active++
	x.mu.Unlock()
}

func (x *execution) end() {
	x.mu.Lock()
	x.active--
	x.lastProgress = time.Now()
	x.mu.Unlock()
}

// idleFor returns how long the plan has gone without any unit queued,
// running or finishing. It is zero while any unit is active.
func (x *execution) idleFor() time.Duration {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.active > 0 {
		return 0
	}
	return time.Since(x.lastProgress)
}

func (x *execution) result(id string) *models.WorkResult {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.results[id]
}

// setFatal keeps the most telling timeout: one naming a dependency that is
// not in the plan wins over one naming a unit that is merely slow.
func (x *execution) setFatal(err *DependencyTimeoutError) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.fatal == nil {
		x.fatal = err
		return true
	}
	var cur *DependencyTimeoutError
	if errors.As(x.fatal, &cur) && !x.namesUnknown(cur) && x.namesUnknown(err) {
		x.fatal = err
	}
	return false
}

func (x *execution) namesUnknown(err *DependencyTimeoutError) bool {
	for _, id := range err.Missing {
		if _, ok := x.done[id]; !ok {
			return true
		}
	}
	return false
}

// pending returns the IDs in ids that have no result yet.
func (x *execution) pending(ids []string) []string {
	var out []string
	for _, id := range ids {
		ch, ok := x.done[id]
		if !ok {
			out = append(out, id)
			continue
		}
		select {
		case <-ch:
		default:
			out = append(out, id)
		}
	}
	return out
}

// await blocks until every unit in ids has a result. IDs that are not in
// the plan can never be satisfied and fail once timeout has passed. For
// plan units the clock only runs while the plan is idle, so a long but
// progressing chain of dependencies never times out.
func (x *execution) await(ctx context.Context, unitID string, ids []string, timeout time.Duration) error {
	if len(ids) == 0 {
		return nil
	}
	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	expired := func() error {
		return &DependencyTimeoutError{
			UnitID:  unitID,
			Missing: x.pending(ids),
			Waited:  time.Since(start),
		}
	}

	for _, id := range ids {
		if _, ok := x.done[id]; !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return expired()
			}
		}
	}

	for _, id := range ids {
		ch := x.done[id]
	wait:
		for {
			select {
			case <-ch:
				break wait
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				idle := x.idleFor()
				if idle >= timeout {
					return expired()
				}
				timer.Reset(timeout - idle)
			}
		}
	}
	return nil
}

// Execute runs every unit of plan and returns their results in stable
// topological order. Unit failures are contained in failed results. A
// dependency timeout cancels the remaining units and is returned as a
// *DependencyTimeoutError together with the results collected so far.
func (e *Executor) Execute(ctx context.Context, plan *models.EditPlan, cb *models.CodebaseContext) ([]*models.WorkResult, error) {
	g := graph.New()
	g.SetDebugLog(debugLog)
	if err := g.Build(plan.Units); err != nil {
		return nil, fmt.Errorf("build plan graph: %w", err)
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("order plan: %w", err)
	}

	waits := e.waitSets(plan, g)
	slots := e.cfg.MaxConcurrency
	if slots <= 0 {
		slots = len(plan.Units)
	}
	if slots == 0 {
		return nil, nil
	}
	sem := make(chan struct{}, slots)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	debugLog("[executor] executing plan %s: %d units, order=%s, slots=%d", plan.ID, len(plan.Units), plan.ExecutionOrder, slots)

	x := newExecution(plan.Units)
	var wg sync.WaitGroup
	for _, u := range plan.Units {
		wg.Add(1)
		go func(u *models.WorkUnit) {
			defer wg.Done()
			defer close(x.done[u.ID])

			if err := x.await(ctx, u.ID, waits[u.ID], e.cfg.DependencyTimeout); err != nil {
				var timeout *DependencyTimeoutError
				if errors.As(err, &timeout) {
					debugLog("[executor] %v", timeout)
					if x.setFatal(timeout) {
						cancel()
					}
				}
				x.record(models.FailedResult(u, fmt.Sprintf("not started: %v", err)))
				return
			}

			x.begin()
			defer x.end()
			if ctx.Err() == nil {
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
				}
			}
			if err := ctx.Err(); err != nil {
				x.record(models.FailedResult(u, fmt.Sprintf("not started: %v", err)))
				return
			}
			res := e.runUnit(ctx, u, cb, x)
			<-sem
			x.record(res)
		}(u)
	}
	wg.Wait()

	results := make([]*models.WorkResult, 0, len(order))
	for _, id := range order {
		if res := x.result(id); res != nil {
			results = append(results, res)
		}
	}

	if x.fatal != nil {
		return results, x.fatal
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// waitSets returns, per unit, the IDs it must wait for: its declared
// dependencies and, for staged plans, every unit of a shallower level.
func (e *Executor) waitSets(plan *models.EditPlan, g *graph.DependencyGraph) map[string][]string {
	waits := make(map[string][]string, len(plan.Units))
	for _, u := range plan.Units {
		waits[u.ID] = append([]string(nil), u.Dependencies...)
	}
	if plan.ExecutionOrder != models.OrderStaged {
		return waits
	}

	levels := g.Levels()
	for _, u := range plan.Units {
		seen := make(map[string]bool, len(waits[u.ID]))
		for _, id := range waits[u.ID] {
			seen[id] = true
		}
		for _, other := range plan.Units {
			if levels[other.ID] < levels[u.ID] && !seen[other.ID] {
				waits[u.ID] = append(waits[u.ID], other.ID)
			}
		}
	}
	return waits
}

// runUnit dispatches one unit to its worker. It never returns nil.
func (e *Executor) runUnit(ctx context.Context, u *models.WorkUnit, cb *models.CodebaseContext, x *execution) *models.WorkResult {
	started := time.Now()
	e.emitter.Emit(OrchestratorEvent{Type: EventUnitStarted, Unit: u, Message: u.Description})
	debugLog("[executor] unit %s (%s) started", u.ID, u.Capability)

	res := e.dispatch(ctx, u, cb, x)
	res.UnitID = u.ID
	res.Capability = u.Capability
	if res.Status == "" {
		res.Status = models.ResultSuccess
		if len(res.Errors) > 0 {
			res.Status = models.ResultFailed
		}
	}
	res.StartedAt = started
	res.CompletedAt = time.Now()
	if res.Metrics == nil {
		res.Metrics = &models.Metrics{}
	}
	res.Metrics.Duration = res.CompletedAt.Sub(started)

	debugLog("[executor] unit %s finished: %s in %s", u.ID, res.Status, res.Metrics.Duration)
	e.emitter.Emit(OrchestratorEvent{Type: EventUnitCompleted, Unit: u, Result: res, Duration: res.Metrics.Duration})
	return res
}

func (e *Executor) dispatch(ctx context.Context, u *models.WorkUnit, cb *models.CodebaseContext, x *execution) *models.WorkResult {
	if e.cfg.FailFast {
		for _, dep := range u.Dependencies {
			if r := x.result(dep); r != nil && r.Status == models.ResultFailed {
				return models.FailedResult(u, fmt.Sprintf("skipped: dependency %s failed", dep))
			}
		}
	}

	w, err := e.registry.Lookup(u.Capability)
	if err != nil {
		return models.FailedResult(u, err.Error())
	}

	if e.cfg.UnitTimeout <= 0 {
		return invoke(ctx, w, u, cb)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.UnitTimeout)
	defer cancel()
	out := make(chan *models.WorkResult, 1)
	go func() { out <- invoke(runCtx, w, u, cb) }()
	select {
	case res := <-out:
		return res
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return models.FailedResult(u, fmt.Sprintf("canceled: %v", ctx.Err()))
		}
		return models.FailedResult(u, fmt.Sprintf("unit timed out after %s", e.cfg.UnitTimeout))
	}
}

// invoke runs the worker, converting errors and panics to failed results.
func invoke(ctx context.Context, w registry.Worker, u *models.WorkUnit, cb *models.CodebaseContext) (res *models.WorkResult) {
	defer func() {
		if p := recover(); p != nil {
			res = models.FailedResult(u, fmt.Sprintf("worker panic: %v", p))
		}
	}()

	res, err := w.Run(ctx, u, cb)
	if err != nil {
		failed := models.FailedResult(u, err.Error())
		if res != nil {
			failed.Warnings = res.Warnings
		}
		return failed
	}
	if res == nil {
		return models.FailedResult(u, "worker returned no result")
	}
	return res
}
