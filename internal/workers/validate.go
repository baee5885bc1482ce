package workers

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/orca/internal/validation"
	"github.com/ShayCichocki/orca/pkg/models"
)

// ValidationWorker runs the pre-apply checks over the current content of
// its files and reports findings as warnings. It produces no edits.
type ValidationWorker struct {
	gate *validation.Gate
}

// NewValidationWorker creates a validation worker backed by gate.
func NewValidationWorker(gate *validation.Gate) *ValidationWorker {
	return &ValidationWorker{gate: gate}
}

func (w *ValidationWorker) Run(ctx context.Context, unit *models.WorkUnit, cb *models.CodebaseContext) (*models.WorkResult, error) {
	res := newResult(unit)
	edits := make([]models.FileEdit, len(unit.Files))
	for i, f := range unit.Files {
		edits[i] = models.FileEdit{FilePath: f}
	}

	verdict := w.gate.Validate(ctx, edits)
	for _, issue := range append(verdict.Errors, verdict.Warnings...) {
		res.Warnings = append(res.Warnings, formatIssue(issue))
	}
	res.Analysis = verdict
	return finish(res), nil
}

func formatIssue(i models.ValidationIssue) string {
	switch {
	case i.File != "" && i.Line > 0:
		return fmt.Sprintf("%s:%d: %s", i.File, i.Line, i.Message)
	case i.File != "":
		return fmt.Sprintf("%s: %s", i.File, i.Message)
	default:
		return i.Message
	}
}
