package validation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/orca/pkg/models"
)

// Stage selects when a check runs.
type Stage int

const (
	// StagePre checks run over proposed content before anything is written.
	StagePre Stage = iota
	// StagePost checks run over the working tree after apply.
	StagePost
)

// Findings are the errors and warnings one check produced.
type Findings struct {
	Errors   []models.ValidationIssue
	Warnings []models.ValidationIssue
}

func (f *Findings) errorf(kind models.IssueKind, file string, line int, format string, args ...interface{}) {
	f.Errors = append(f.Errors, models.ValidationIssue{File: file, Line: line, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

func (f *Findings) warnf(kind models.IssueKind, file string, line int, format string, args ...interface{}) {
	f.Warnings = append(f.Warnings, models.ValidationIssue{File: file, Line: line, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Check is one independent validation pass.
type Check interface {
	Name() string
	Stage() Stage
	Run(ctx context.Context, in *Input) Findings
}

// Input is the shared, read-only view of an edit set given to every check.
type Input struct {
	// Root is the project directory.
	Root string
	// Edits is the merged edit set, one entry per file.
	Edits []models.FileEdit
	// Originals holds the current content of files that exist.
	Originals map[string]string
	// Rendered holds the proposed content of every file whose edits applied.
	Rendered map[string]string

	fs afero.Fs
}

// Exists reports whether a project path will exist once the edits are applied.
func (in *Input) Exists(rel string) bool {
	if _, ok := in.Rendered[rel]; ok {
		return true
	}
	if _, ok := in.Originals[rel]; ok {
		return true
	}
	if in.fs == nil {
		return false
	}
	info, err := in.fs.Stat(filepath.Join(in.Root, filepath.FromSlash(rel)))
	return err == nil && !info.IsDir()
}

// Gate runs checks over edit sets and produces a verdict. Checks run
// concurrently; their findings are merged in registration order.
type Gate struct {
	fs       afero.Fs
	root     string
	checks   []Check
	debugLog func(format string, args ...interface{})
}

// NewGate creates a gate reading the project at root through fs.
func NewGate(fs afero.Fs, root string, checks ...Check) *Gate {
	return &Gate{
		fs:       fs,
		root:     root,
		checks:   checks,
		debugLog: func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (g *Gate) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Checks returns the registered checks.
func (g *Gate) Checks() []Check {
	return g.checks
}

// HasStage reports whether any check runs at stage s.
func (g *Gate) HasStage(s Stage) bool {
	for _, c := range g.checks {
		if c.Stage() == s {
			return true
		}
	}
	return false
}

// Validate renders every edit against the current content and runs the
// pre-apply checks over the result. Edits that do not apply are errors.
func (g *Gate) Validate(ctx context.Context, edits []models.FileEdit) models.ValidationResult {
	in, findings := g.prepare(edits)
	return g.run(ctx, StagePre, in, findings)
}

// Verify runs the post-apply checks against the working tree.
func (g *Gate) Verify(ctx context.Context, edits []models.FileEdit) models.ValidationResult {
	in, _ := g.prepare(edits)
	return g.run(ctx, StagePost, in, Findings{})
}

func (g *Gate) prepare(edits []models.FileEdit) (*Input, Findings) {
	in := &Input{
		Root:      g.root,
		Edits:     edits,
		Originals: make(map[string]string),
		Rendered:  make(map[string]string),
		fs:        g.fs,
	}
	var f Findings

	for _, fe := range edits {
		if err := models.CheckPath(fe.FilePath); err != nil {
			f.errorf(models.IssueEdit, fe.FilePath, 0, "%v", err)
			continue
		}
		abs := filepath.Join(g.root, filepath.FromSlash(fe.FilePath))
		data, err := afero.ReadFile(g.fs, abs)
		switch {
		case err == nil:
			in.Originals[fe.FilePath] = string(data)
		case os.IsNotExist(err):
			if !fe.IsNewFile {
				f.errorf(models.IssueEdit, fe.FilePath, 0, "file does not exist")
				continue
			}
		default:
			f.errorf(models.IssueEdit, fe.FilePath, 0, "read file: %v", err)
			continue
		}

		rendered, err := fe.Render(in.Originals[fe.FilePath])
		if err != nil {
			f.errorf(models.IssueEdit, fe.FilePath, 0, "%v", err)
			continue
		}
		if fe.IsNewFile {
			if _, exists := in.Originals[fe.FilePath]; exists {
				f.warnf(models.IssueEdit, fe.FilePath, 0, "new file already exists and will be overwritten")
			}
		}
		in.Rendered[fe.FilePath] = rendered
	}
	return in, f
}

func (g *Gate) run(ctx context.Context, stage Stage, in *Input, pre Findings) models.ValidationResult {
	var active []Check
	for _, c := range g.checks {
		if c.Stage() == stage {
			active = append(active, c)
		}
	}

	out := make([]Findings, len(active))
	var wg sync.WaitGroup
	for i, c := range active {
		wg.Add(1)
		go func(i int, c Check) {
			defer wg.Done()
			start := time.Now()
			out[i] = c.Run(ctx, in)
			g.debugLog("[validation] check %s: %d errors, %d warnings in %s", c.Name(), len(out[i].Errors), len(out[i].Warnings), time.Since(start).Round(time.Millisecond))
		}(i, c)
	}
	wg.Wait()

	res := models.ValidationResult{Errors: pre.Errors, Warnings: pre.Warnings}
	for _, f := range out {
		res.Errors = append(res.Errors, f.Errors...)
		res.Warnings = append(res.Warnings, f.Warnings...)
	}
	res.Valid = len(res.Errors) == 0
	return res
}
