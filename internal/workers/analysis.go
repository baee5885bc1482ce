package workers

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/orca/internal/deps"
	"github.com/ShayCichocki/orca/pkg/models"
)

// Summary is the analysis payload of an analysis result.
type Summary struct {
	Files      int                 `json:"files"`
	Imports    map[string][]string `json:"imports"`
	Exports    map[string][]string `json:"exports"`
	Cycles     [][]string          `json:"cycles,omitempty"`
	Unresolved map[string][]string `json:"unresolved,omitempty"`
	// Dependents maps each file to the files in the set that import it.
	Dependents map[string][]string `json:"dependents,omitempty"`
}

// AnalysisWorker reports the reference structure of its files and
// produces no edits.
type AnalysisWorker struct {
	analyzer *deps.Analyzer
}

// NewAnalysisWorker creates an analysis worker reading through fs.
func NewAnalysisWorker(fs afero.Fs, root string) *AnalysisWorker {
	return &AnalysisWorker{analyzer: deps.NewAnalyzer(fs, root)}
}

func (w *AnalysisWorker) Run(ctx context.Context, unit *models.WorkUnit, cb *models.CodebaseContext) (*models.WorkResult, error) {
	res := newResult(unit)
	g, err := w.analyzer.Analyze(ctx, unit.Files)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	s := &Summary{
		Files:      len(unit.Files),
		Imports:    make(map[string][]string, len(g.Records)),
		Exports:    make(map[string][]string, len(g.Records)),
		Cycles:     g.Cycles(),
		Unresolved: make(map[string][]string),
		Dependents: make(map[string][]string),
	}
	for file, rec := range g.Records {
		s.Imports[file] = rec.Imports
		s.Exports[file] = rec.Exports
		if len(rec.Unresolved) > 0 {
			s.Unresolved[file] = rec.Unresolved
		}
		if dependents := g.Dependents(file); len(dependents) > 0 {
			s.Dependents[file] = dependents
		}
	}
	for _, cycle := range s.Cycles {
		res.Warnings = append(res.Warnings, fmt.Sprintf("import cycle: %v", cycle))
	}

	res.Analysis = s
	return finish(res), nil
}
