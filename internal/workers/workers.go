// Package workers provides the built-in workers bound to each capability:
// dependency analysis, rules-based and model-based rewriting, style
// normalization, and a read-only validation pass.
package workers

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/orca/internal/registry"
	"github.com/ShayCichocki/orca/internal/textdiff"
	"github.com/ShayCichocki/orca/internal/validation"
	"github.com/ShayCichocki/orca/pkg/models"
)

// Config selects and configures the built-in workers.
type Config struct {
	Fs   afero.Fs
	Root string
	// Rules drive the rules worker.
	Rules []Rule
	// Provider enables the model worker for rewrite, test-sync and doc-sync.
	// Nil leaves those capabilities to the rules worker.
	Provider Provider
	// MaxFileBytes caps the file content sent to the model. Zero means the default.
	MaxFileBytes int
	// Gate backs the validation capability. Nil leaves it unregistered.
	Gate *validation.Gate
}

// Register binds the built-in workers to every capability they serve.
func Register(reg *registry.Registry, cfg Config) {
	reg.Register(models.CapabilityAnalysis, NewAnalysisWorker(cfg.Fs, cfg.Root))
	reg.Register(models.CapabilityStyleCheck, NewStyleWorker(cfg.Fs, cfg.Root))

	var content registry.Worker = NewRulesWorker(cfg.Fs, cfg.Root, cfg.Rules)
	if cfg.Provider != nil {
		content = NewModelWorker(cfg.Fs, cfg.Root, cfg.Provider, cfg.MaxFileBytes)
	}
	for _, kind := range []models.Capability{models.CapabilityRewrite, models.CapabilityTestSync, models.CapabilityDocSync} {
		reg.Register(kind, content)
	}

	if cfg.Gate != nil {
		reg.Register(models.CapabilityValidation, NewValidationWorker(cfg.Gate))
	}
}

// fileReader reads project files relative to a root.
type fileReader struct {
	fs   afero.Fs
	root string
}

// read returns the content of a project file. A missing file is reported
// through exists rather than as an error.
func (r fileReader) read(rel string) (content string, exists bool, err error) {
	data, err := afero.ReadFile(r.fs, filepath.Join(r.root, filepath.FromSlash(rel)))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// contentEdit converts a before/after pair into a file edit with minimal
// hunks. It returns false when nothing changed.
func contentEdit(file, before, after string, isNew bool) (models.FileEdit, bool) {
	if !isNew && before == after {
		return models.FileEdit{}, false
	}
	fe := models.FileEdit{FilePath: file, IsNewFile: isNew}
	if isNew {
		fe.Edits = []models.TextEdit{{NewText: after}}
		return fe, true
	}
	for _, h := range textdiff.Hunks(before, after) {
		fe.Edits = append(fe.Edits, models.TextEdit{OldText: h.OldText, NewText: h.NewText})
	}
	return fe, true
}

// tally fills the modification metrics of res from the edits it carries.
func tally(res *models.WorkResult, before map[string]string, after map[string]string) {
	m := &models.Metrics{FilesModified: len(res.Edits)}
	for _, fe := range res.Edits {
		added, removed := textdiff.Stats(textdiff.Lines(before[fe.FilePath], after[fe.FilePath]))
		m.LinesAdded += added
		m.LinesRemoved += removed
	}
	if res.Metrics != nil {
		m.FilesAnalyzed = res.Metrics.FilesAnalyzed
	}
	res.Metrics = m
}

// newResult starts a result for unit.
func newResult(unit *models.WorkUnit) *models.WorkResult {
	return &models.WorkResult{
		UnitID:     unit.ID,
		Capability: unit.Capability,
		StartedAt:  time.Now(),
		Metrics:    &models.Metrics{FilesAnalyzed: len(unit.Files)},
	}
}

// finish sets the status from the collected errors and warnings.
func finish(res *models.WorkResult) *models.WorkResult {
	switch {
	case len(res.Errors) > 0 && len(res.Edits) == 0:
		res.Status = models.ResultFailed
	case len(res.Errors) > 0:
		res.Status = models.ResultPartial
	default:
		res.Status = models.ResultSuccess
	}
	res.CompletedAt = time.Now()
	return res
}

// canceled reports a context error as a result error.
func canceled(ctx context.Context, res *models.WorkResult) bool {
	if err := ctx.Err(); err != nil {
		res.Errors = append(res.Errors, err.Error())
		return true
	}
	return false
}
