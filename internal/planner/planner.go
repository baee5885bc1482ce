// Package planner turns an edit request into an edit plan of dependent
// work units.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/ShayCichocki/orca/internal/deps"
	"github.com/ShayCichocki/orca/internal/discover"
	"github.com/ShayCichocki/orca/internal/graph"
	"github.com/ShayCichocki/orca/pkg/models"
)

// ErrEmptyScope is returned when no source file matches the request scope.
var ErrEmptyScope = errors.New("empty scope: no files match the requested scope")

// Planner builds edit plans for a project rooted at a directory.
type Planner struct {
	fs       afero.Fs
	root     string
	newID    func() string
	now      func() time.Time
	debugLog func(format string, args ...interface{})
}

// Option configures a Planner.
type Option func(*Planner)

// WithIDGenerator replaces the UUID generator used for plan and unit IDs.
func WithIDGenerator(fn func() string) Option {
	return func(p *Planner) {
		p.newID = fn
	}
}

// WithClock replaces the time source used for CreatedAt.
func WithClock(fn func() time.Time) Option {
	return func(p *Planner) {
		p.now = fn
	}
}

// WithDebugLog sets the debug logging function.
func WithDebugLog(fn func(format string, args ...interface{})) Option {
	return func(p *Planner) {
		if fn != nil {
			p.debugLog = fn
		}
	}
}

// New creates a planner reading the project at root through fs.
func New(fs afero.Fs, root string, opts ...Option) *Planner {
	p := &Planner{
		fs:       fs,
		root:     root,
		newID:    func() string { return uuid.New().String() },
		now:      time.Now,
		debugLog: func(format string, args ...interface{}) {},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan resolves the request scope, groups the files into batches and
// creates the work units. It returns ErrEmptyScope when nothing matches
// and a *graph.CycleError when the units would form a cycle.
func (p *Planner) Plan(ctx context.Context, req models.EditRequest) (*models.EditPlan, error) {
	res, err := discover.New(p.fs, p.root).Resolve(ctx, req.Scope, req.Goal, req.Constraints.MaxFiles)
	if err != nil {
		return nil, fmt.Errorf("resolve scope: %w", err)
	}
	if len(res.Sources) == 0 {
		return nil, fmt.Errorf("%w %v", ErrEmptyScope, req.Scope)
	}
	p.debugLog("[planner] scope resolved: %d sources, %d tests, %d docs", len(res.Sources), len(res.Tests), len(res.Docs))

	analyzed := append(append([]string{}, res.Sources...), res.Tests...)
	g, err := deps.NewAnalyzer(p.fs, p.root).Analyze(ctx, analyzed)
	if err != nil {
		return nil, fmt.Errorf("analyze dependencies: %w", err)
	}

	batches := GroupFiles(res.Sources, g.Cycles())
	AssignTests(batches, res.Tests, g)

	units := p.buildUnits(req, res, batches)
	return p.finish(req, res, units)
}

// FromUnits builds a plan from caller-supplied units, validating the
// dependency graph the same way Plan does.
func (p *Planner) FromUnits(req models.EditRequest, units []*models.WorkUnit) (*models.EditPlan, error) {
	res := &discover.Result{}
	seen := make(map[string]bool)
	for _, u := range units {
		for _, f := range u.Files {
			if !seen[f] {
				seen[f] = true
				res.Sources = append(res.Sources, f)
			}
		}
	}
	return p.finish(req, res, units)
}

func (p *Planner) finish(req models.EditRequest, res *discover.Result, units []*models.WorkUnit) (*models.EditPlan, error) {
	dg := graph.New()
	dg.SetDebugLog(p.debugLog)
	if err := dg.Build(units); err != nil {
		return nil, fmt.Errorf("validate plan: %w", err)
	}
	for _, u := range units {
		if missing := dg.MissingDependencies(u.ID); len(missing) > 0 {
			p.debugLog("[planner] unit %s depends on unknown units %v", u.ID, missing)
		}
	}

	var analysisIDs []string
	for _, u := range units {
		if u.Capability == models.CapabilityAnalysis {
			analysisIDs = append(analysisIDs, u.ID)
		}
	}

	files := res.All()
	plan := &models.EditPlan{
		ID:                p.newID(),
		Request:           req,
		Units:             units,
		ExecutionOrder:    ExecutionOrder(len(units), dg.EdgeCount(analysisIDs...)),
		AffectedFiles:     files,
		RiskLevel:         Risk(files, req.Constraints, len(res.Tests) > 0),
		EstimatedDuration: EstimateDuration(units),
		Complexity:        AnalyzeComplexity(req),
		CreatedAt:         p.now(),
	}
	p.debugLog("[planner] plan %s: %d units, order=%s, risk=%s", plan.ID, len(units), plan.ExecutionOrder, plan.RiskLevel)
	return plan, nil
}

func (p *Planner) buildUnits(req models.EditRequest, res *discover.Result, batches []*Batch) []*models.WorkUnit {
	c := req.Constraints
	goal := req.Goal

	analysis := &models.WorkUnit{
		ID:          p.newID(),
		Capability:  models.CapabilityAnalysis,
		Description: fmt.Sprintf("Analyze %d files for: %s", len(res.All()), goal),
		Files:       res.All(),
		Priority:    models.PriorityHigh,
		Constraints: c,
		Goal:        goal,
	}
	units := []*models.WorkUnit{analysis}

	mentionsTests := strings.Contains(strings.ToLower(goal), "test")
	for _, b := range batches {
		rewrite := &models.WorkUnit{
			ID:           p.newID(),
			Capability:   models.CapabilityRewrite,
			Description:  fmt.Sprintf("Rewrite %s: %s", b.Name, goal),
			Files:        b.Sources,
			Priority:     models.PriorityHigh,
			Dependencies: []string{analysis.ID},
			Constraints:  c,
			Batch:        b.Name,
			Goal:         goal,
		}
		units = append(units, rewrite)

		var testSync *models.WorkUnit
		if c.WantTests() && (len(b.Tests) > 0 || c.TestsExplicit() || mentionsTests) {
			files := b.Tests
			if len(files) == 0 {
				files = b.Sources
			}
			testSync = &models.WorkUnit{
				ID:           p.newID(),
				Capability:   models.CapabilityTestSync,
				Description:  fmt.Sprintf("Update tests for %s", b.Name),
				Files:        files,
				Priority:     models.PriorityMedium,
				Dependencies: []string{rewrite.ID},
				Constraints:  c,
				Batch:        b.Name,
				Goal:         goal,
			}
			units = append(units, testSync)
		}

		if c.WantDocs() {
			units = append(units, &models.WorkUnit{
				ID:           p.newID(),
				Capability:   models.CapabilityDocSync,
				Description:  fmt.Sprintf("Update documentation for %s", b.Name),
				Files:        append(append([]string{}, b.Sources...), res.Docs...),
				Priority:     models.PriorityLow,
				Dependencies: []string{rewrite.ID},
				Constraints:  c,
				Batch:        b.Name,
				Goal:         goal,
			})
		}

		if c.EnforceStyle {
			styleDeps := []string{rewrite.ID}
			if testSync != nil {
				styleDeps = append(styleDeps, testSync.ID)
			}
			units = append(units, &models.WorkUnit{
				ID:           p.newID(),
				Capability:   models.CapabilityStyleCheck,
				Description:  fmt.Sprintf("Check style of %s", b.Name),
				Files:        append(append([]string{}, b.Sources...), b.Tests...),
				Priority:     models.PriorityLow,
				Dependencies: styleDeps,
				Constraints:  c,
				Batch:        b.Name,
				Goal:         goal,
			})
		}
	}
	return units
}
