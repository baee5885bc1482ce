package validation

import (
	"context"

	"github.com/ShayCichocki/orca/internal/deps"
	"github.com/ShayCichocki/orca/pkg/models"
)

// ReferenceCheck resolves the relative imports of proposed content against
// the project as it will look after apply. An import introduced by the
// edits that resolves nowhere is an error; one that was already broken
// before is a warning.
type ReferenceCheck struct{}

func (ReferenceCheck) Name() string { return "references" }

func (ReferenceCheck) Stage() Stage { return StagePre }

func (ReferenceCheck) Run(ctx context.Context, in *Input) Findings {
	var f Findings
	for _, file := range sortedKeys(in.Rendered) {
		if deps.Language(file) == "" {
			continue
		}
		before := make(map[string]bool)
		if orig, ok := in.Originals[file]; ok {
			for _, spec := range deps.ParseImports(file, orig) {
				before[spec] = true
			}
		}
		for _, spec := range deps.ParseImports(file, in.Rendered[file]) {
			if !deps.IsRelative(spec) {
				continue
			}
			if _, ok := deps.Resolve(file, spec, in.Exists); ok {
				continue
			}
			if before[spec] {
				f.warnf(models.IssueReference, file, 0, "import %q does not resolve (already broken)", spec)
				continue
			}
			f.errorf(models.IssueReference, file, 0, "import %q does not resolve to a file", spec)
		}
	}
	return f
}

// APICheck reports exports that the edits remove from existing files.
type APICheck struct{}

func (APICheck) Name() string { return "api" }

func (APICheck) Stage() Stage { return StagePre }

func (APICheck) Run(ctx context.Context, in *Input) Findings {
	var f Findings
	for _, file := range sortedKeys(in.Rendered) {
		orig, ok := in.Originals[file]
		if !ok {
			continue
		}
		after := make(map[string]bool)
		for _, name := range deps.ParseExports(file, in.Rendered[file]) {
			after[name] = true
		}
		for _, name := range deps.ParseExports(file, orig) {
			if !after[name] {
				f.errorf(models.IssueAPI, file, 0, "export %q removed", name)
			}
		}
	}
	return f
}
