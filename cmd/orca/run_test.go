package main

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/ShayCichocki/orca/internal/apply"
	"github.com/ShayCichocki/orca/internal/config"
	"github.com/ShayCichocki/orca/internal/orchestrator"
	"github.com/ShayCichocki/orca/internal/state"
	"github.com/ShayCichocki/orca/pkg/models"
)

func TestRequestFlags(t *testing.T) {
	tests := []struct {
		name    string
		flags   requestFlags
		goal    string
		want    models.Constraints
		wantErr bool
	}{
		{
			name:  "defaults",
			flags: requestFlags{scope: []string{"src"}},
			goal:  "rename",
			want:  models.Constraints{},
		},
		{
			name:  "no tests and docs",
			flags: requestFlags{scope: []string{"src"}, noTests: true, noDocs: true},
			goal:  "rename",
			want:  models.Constraints{UpdateTests: models.Bool(false), UpdateDocs: models.Bool(false)},
		},
		{
			name:  "explicit tests and options",
			flags: requestFlags{scope: []string{"src"}, tests: true, style: true, preserveAPI: true, maxFiles: 5, review: true, allowBreaking: true},
			goal:  "rename",
			want: models.Constraints{
				UpdateTests:          models.Bool(true),
				EnforceStyle:         true,
				PreserveAPI:          true,
				MaxFiles:             5,
				RequiresReview:       true,
				AllowBreakingChanges: true,
			},
		},
		{name: "missing scope", flags: requestFlags{}, goal: "rename", wantErr: true},
		{name: "blank goal", flags: requestFlags{scope: []string{"src"}}, goal: "  ", wantErr: true},
		{name: "conflicting test flags", flags: requestFlags{scope: []string{"src"}, tests: true, noTests: true}, goal: "x", wantErr: true},
		{name: "negative max files", flags: requestFlags{scope: []string{"src"}, maxFiles: -1}, goal: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := tt.flags.request(tt.goal)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("request() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("request() error = %v", err)
			}
			if req.Goal != strings.TrimSpace(tt.goal) {
				t.Errorf("Goal = %q, want %q", req.Goal, tt.goal)
			}
			if !reflect.DeepEqual(req.Scope, tt.flags.scope) {
				t.Errorf("Scope = %v, want %v", req.Scope, tt.flags.scope)
			}
			if !reflect.DeepEqual(req.Constraints, tt.want) {
				t.Errorf("Constraints = %+v, want %+v", req.Constraints, tt.want)
			}
		})
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"yes", true},
	}
	for _, tt := range tests {
		var out strings.Builder
		if got := confirm(strings.NewReader(tt.input), &out, "Apply?"); got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "Apply? [y/N]") {
			t.Errorf("prompt = %q", out.String())
		}
	}
}

func TestFormatEvent(t *testing.T) {
	unit := &models.WorkUnit{ID: "0123456789", Capability: models.CapabilityRewrite, Description: "Rewrite src"}
	tests := []struct {
		name     string
		ev       orchestrator.OrchestratorEvent
		contains string
		attr     color.Attribute
	}{
		{
			name:     "unit started",
			ev:       orchestrator.OrchestratorEvent{Type: orchestrator.EventUnitStarted, Unit: unit},
			contains: "rewrite Rewrite src",
			attr:     color.FgBlue,
		},
		{
			name: "unit failed",
			ev: orchestrator.OrchestratorEvent{
				Type:   orchestrator.EventUnitCompleted,
				Unit:   unit,
				Result: &models.WorkResult{Status: models.ResultFailed, Errors: []string{"boom"}},
			},
			contains: "✗ rewrite 01234567 (0 files, 0s): boom",
			attr:     color.FgRed,
		},
		{
			name:     "task error",
			ev:       orchestrator.OrchestratorEvent{Type: orchestrator.EventTaskError, Message: "no files"},
			contains: "Error: no files",
			attr:     color.FgRed,
		},
		{
			name:     "apply completed",
			ev:       orchestrator.OrchestratorEvent{Type: orchestrator.EventApplyCompleted, Duration: 1500 * time.Millisecond},
			contains: "Applied in 1.5s",
			attr:     color.FgGreen,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, attr := formatEvent(tt.ev)
			if !strings.Contains(line, tt.contains) {
				t.Errorf("line = %q, want it to contain %q", line, tt.contains)
			}
			if attr != tt.attr {
				t.Errorf("attr = %v, want %v", attr, tt.attr)
			}
		})
	}

	if line, _ := formatEvent(orchestrator.OrchestratorEvent{Type: orchestrator.EventUnitStarted}); line != "" {
		t.Errorf("unit event without unit = %q, want empty", line)
	}
}

func TestEventPrinter_HoldKeepsPromptTogether(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = noColor }()

	emitter := orchestrator.NewEventEmitter(8)
	emitter.Emit(orchestrator.OrchestratorEvent{Type: orchestrator.EventTaskError, Message: "first"})
	emitter.Emit(orchestrator.OrchestratorEvent{Type: orchestrator.EventTaskError, Message: "second"})

	var out strings.Builder
	printer := newEventPrinter(&out, emitter.Events())
	release := printer.hold()

	done := make(chan struct{})
	go func() {
		printer.run()
		close(done)
	}()
	emitter.Emit(orchestrator.OrchestratorEvent{Type: orchestrator.EventTaskError, Message: "third"})
	time.Sleep(20 * time.Millisecond)
	out.WriteString("Apply 2 files? [y/N] y\n")
	release()

	emitter.Close()
	<-done

	got := out.String()
	order := []string{"first", "second", "Apply 2 files?", "third"}
	last := -1
	for _, want := range order {
		i := strings.Index(got, want)
		if i < 0 {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
		if i < last {
			t.Errorf("%q printed out of order:\n%s", want, got)
		}
		last = i
	}
}

func TestFormatIssue(t *testing.T) {
	tests := []struct {
		issue models.ValidationIssue
		want  string
	}{
		{models.ValidationIssue{File: "a.ts", Line: 3, Message: "unclosed '{'", Kind: models.IssueSyntax}, "a.ts:3: unclosed '{' (syntax)"},
		{models.ValidationIssue{File: "a.ts", Message: "export \"a\" removed", Kind: models.IssueAPI}, "a.ts: export \"a\" removed (api)"},
		{models.ValidationIssue{UnitID: "0123456789", Capability: models.CapabilityDocSync, Message: "no rules", Kind: models.IssueUnit}, "[doc-sync 01234567] no rules (unit)"},
	}
	for _, tt := range tests {
		if got := formatIssue(tt.issue); got != tt.want {
			t.Errorf("formatIssue() = %q, want %q", got, tt.want)
		}
	}
}

func TestRenderSummary(t *testing.T) {
	cs := &models.ChangeSet{
		ID:     "cs-123456789",
		PlanID: "plan-123456789",
		Edits:  []models.FileEdit{{FilePath: "a.ts"}},
		Validation: models.ValidationResult{
			Valid:  false,
			Errors: []models.ValidationIssue{{File: "a.ts", Message: "bad", Kind: models.IssueSyntax}},
		},
	}
	out := renderSummary(cs, true)
	for _, want := range []string{"Change set cs-12345", "Files:    1", "invalid", "dry run", "a.ts: bad (syntax)"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "orca rollback") {
		t.Error("summary offers rollback for an unapplied change set")
	}

	cs.Applied = true
	cs.Validation = models.ValidationResult{Valid: true}
	if out := renderSummary(cs, false); !strings.Contains(out, "orca rollback plan-123") {
		t.Errorf("applied summary missing rollback hint:\n%s", out)
	}
}

func TestPrintDiffs(t *testing.T) {
	diffs := []apply.FileDiff{
		{Path: "a.ts", Added: 1, Removed: 1, Unified: "--- a/a.ts\n+++ b/a.ts\n@@ -1 +1 @@\n-var a\n+const a\n"},
		{Path: "new.ts", IsNew: true, Added: 1, Unified: "+x"},
		{Path: "bad.ts", Error: "edit not applicable"},
	}
	var out strings.Builder
	printDiffs(&out, diffs, false)
	got := out.String()
	for _, want := range []string{"a.ts (+1 -1)", "-var a\n+const a\n", "new.ts (+1 -0) [new]", "+x\n", "edit not applicable"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestHighlightDiff(t *testing.T) {
	diff := "--- a/a.ts\n+++ b/a.ts\n-var a\n+const a\n"
	got := highlightDiff(diff)
	if !strings.Contains(got, "const a") || !strings.Contains(got, "var a") {
		t.Errorf("highlightDiff() lost content: %q", got)
	}
}

func TestPlanTable(t *testing.T) {
	plan := &models.EditPlan{
		ID: "plan-1",
		Units: []*models.WorkUnit{
			{ID: "analysis-0001", Capability: models.CapabilityAnalysis, Priority: models.PriorityHigh, Files: []string{"a", "b"}},
			{ID: "rewrite-00001", Capability: models.CapabilityRewrite, Priority: models.PriorityHigh, Batch: "src", Files: []string{"a"}, Dependencies: []string{"analysis-0001"}},
		},
	}
	out := planTable(plan).Render()
	for _, want := range []string{"CAPABILITY", "analysis", "rewrite-", "analysis", "src"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("a much longer goal", 10); got != "a much ..." {
		t.Errorf("truncate() = %q, want %q", got, "a much ...")
	}
}

func TestResolveRunID(t *testing.T) {
	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, id := range []string{"abc123", "abd456", "xyz789"} {
		if err := db.SaveRun(&state.Run{ID: id, Description: "goal", CreatedAt: time.Now()}); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}

	tests := []struct {
		prefix  string
		want    string
		wantErr error
	}{
		{prefix: "xyz789", want: "xyz789"},
		{prefix: "abc", want: "abc123"},
		{prefix: "ab", wantErr: ErrAmbiguousRun},
		{prefix: "nope", wantErr: state.ErrRunNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			got, err := resolveRunID(db, tt.prefix)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("resolveRunID(%q) error = %v, want %v", tt.prefix, err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("resolveRunID(%q) = %q, %v; want %q", tt.prefix, got, err, tt.want)
			}
		})
	}
}

func TestValidationOptions(t *testing.T) {
	cfg := config.Default().Validation
	cfg.Lint = true
	cfg.Tests = true
	cfg.Commands.Lint = "eslint --max-warnings 0 ."
	cb := &models.CodebaseContext{
		BuildCommand: []string{"npx", "tsc", "--noEmit"},
		LintCommand:  []string{"npm", "run", "lint"},
		TestCommand:  []string{"npm", "test"},
	}

	req := models.EditRequest{Constraints: models.Constraints{PreserveAPI: true}}
	opts := validationOptions(cfg, cb, req, nil)
	if !opts.API {
		t.Error("API = false, want true for a request that preserves the API")
	}
	if opts.Typecheck != nil {
		t.Errorf("Typecheck = %v, want nil when disabled", opts.Typecheck)
	}
	if want := []string{"eslint", "--max-warnings", "0", "."}; !reflect.DeepEqual(opts.Lint, want) {
		t.Errorf("Lint = %v, want %v", opts.Lint, want)
	}
	if want := []string{"npm", "test"}; !reflect.DeepEqual(opts.Tests, want) {
		t.Errorf("Tests = %v, want %v", opts.Tests, want)
	}

	req.Constraints = models.Constraints{UpdateTests: models.Bool(false)}
	opts = validationOptions(cfg, cb, req, nil)
	if opts.API || opts.Tests != nil {
		t.Errorf("API = %v, Tests = %v; want neither", opts.API, opts.Tests)
	}
}

func TestContentOptions_Protected(t *testing.T) {
	cfg := config.Default().Validation
	cfg.ProtectedPaths = []string{"generated/**"}
	cfg.BlockProtected = true

	opts := contentOptions(cfg)
	if opts.Protected == nil || !opts.BlockProtected {
		t.Fatalf("Protected = %v, BlockProtected = %v; want detector and blocking", opts.Protected, opts.BlockProtected)
	}
	if _, ok := opts.Protected.Match("generated/api.ts"); !ok {
		t.Error("extra protected path not matched")
	}

	cfg.Protected = false
	if opts := contentOptions(cfg); opts.Protected != nil {
		t.Error("Protected detector built while disabled")
	}
}

func TestLogConfig(t *testing.T) {
	root := "/proj"
	got := logConfig(root, config.LoggingConfig{File: "logs/x.log", MaxBackups: 7})
	want := orchestrator.LogConfig{Path: filepath.Join(root, "logs", "x.log"), MaxSizeMB: 10, MaxBackups: 7, MaxAgeDays: 14}
	if got != want {
		t.Errorf("logConfig() = %+v, want %+v", got, want)
	}
	if got := logConfig(root, config.LoggingConfig{}); got.Path != "" {
		t.Errorf("logConfig(empty).Path = %q, want disabled", got.Path)
	}
}

func TestExecutorConfig(t *testing.T) {
	got := executorConfig(config.SchedulerConfig{MaxConcurrency: 2, DependencyTimeout: time.Second, UnitTimeout: time.Minute, FailFast: true})
	want := orchestrator.ExecutorConfig{MaxConcurrency: 2, DependencyTimeout: time.Second, UnitTimeout: time.Minute, FailFast: true}
	if got != want {
		t.Errorf("executorConfig() = %+v, want %+v", got, want)
	}
}

func TestBuildProvider_Disabled(t *testing.T) {
	cfg := config.Default()
	cfg.Workers.Model.Enabled = false
	p, tracker, err := buildProvider(cfg)
	if p != nil || tracker != nil || err != nil {
		t.Errorf("buildProvider() = %v, %v, %v; want all nil", p, tracker, err)
	}

	cfg.Workers.Model.Enabled = true
	cfg.Workers.Model.Provider = "bogus"
	if _, _, err := buildProvider(cfg); err == nil {
		t.Error("buildProvider() error = nil for unknown provider")
	}
}

func TestCheckToolCommands(t *testing.T) {
	cfg := config.Default().Validation
	cfg.Tests = true
	cfg.Commands.Tests = `npm test "unterminated`
	if err := checkToolCommands(cfg); err == nil {
		t.Error("checkToolCommands() error = nil, want parse error")
	}
}
