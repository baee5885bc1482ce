package validation

import (
	"context"

	"github.com/ShayCichocki/orca/internal/protect"
	"github.com/ShayCichocki/orca/pkg/models"
)

// ProtectedCheck flags edits to credentials, migrations, lock files and
// other protected paths. Findings are warnings unless Block is set.
type ProtectedCheck struct {
	Detector *protect.Detector
	Block    bool
}

func (c *ProtectedCheck) Name() string { return "protected" }

func (c *ProtectedCheck) Stage() Stage { return StagePre }

func (c *ProtectedCheck) Run(ctx context.Context, in *Input) Findings {
	var f Findings
	if c.Detector == nil {
		return f
	}
	for _, e := range in.Edits {
		reason, ok := c.Detector.Match(e.FilePath)
		if !ok {
			continue
		}
		if c.Block {
			f.errorf(models.IssueProtected, e.FilePath, 0, "edit to protected path: %s", reason)
		} else {
			f.warnf(models.IssueProtected, e.FilePath, 0, "edit to protected path: %s", reason)
		}
	}
	return f
}
