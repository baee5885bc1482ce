package validation

import (
	"time"

	iexec "github.com/ShayCichocki/orca/internal/exec"
	"github.com/ShayCichocki/orca/internal/protect"
	"github.com/ShayCichocki/orca/pkg/models"
)

// Options selects the checks a gate runs.
type Options struct {
	Syntax     bool
	References bool
	// API enables the removed-export check.
	API bool

	// Protected flags edits to protected paths. Block turns the warnings
	// into errors.
	Protected      *protect.Detector
	BlockProtected bool

	// Typecheck, Lint and Tests are tool command lines. Empty disables the tool.
	Typecheck []string
	Lint      []string
	Tests     []string

	// Runner executes tool commands. Required when any tool is set.
	Runner      iexec.CommandRunner
	ToolTimeout time.Duration
}

// DefaultOptions enables the content checks and no tools.
func DefaultOptions() Options {
	return Options{
		Syntax:      true,
		References:  true,
		ToolTimeout: 5 * time.Minute,
	}
}

// Checks builds the check list in reporting order.
func (o Options) Checks() []Check {
	var checks []Check
	if o.Syntax {
		checks = append(checks, SyntaxCheck{})
	}
	if o.References {
		checks = append(checks, ReferenceCheck{})
	}
	if o.API {
		checks = append(checks, APICheck{})
	}
	if o.Protected != nil {
		checks = append(checks, &ProtectedCheck{Detector: o.Protected, Block: o.BlockProtected})
	}

	tools := []struct {
		name string
		kind models.IssueKind
		cmd  []string
	}{
		{"typecheck", models.IssueTool, o.Typecheck},
		{"lint", models.IssueTool, o.Lint},
		{"tests", models.IssueTest, o.Tests},
	}
	for _, t := range tools {
		if len(t.cmd) == 0 || o.Runner == nil {
			continue
		}
		checks = append(checks, &ToolCheck{
			CheckName: t.name,
			Kind:      t.kind,
			Command:   t.cmd,
			Runner:    o.Runner,
			Timeout:   o.ToolTimeout,
		})
	}
	return checks
}
