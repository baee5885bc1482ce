package validation

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	iexec "github.com/ShayCichocki/orca/internal/exec"
	"github.com/ShayCichocki/orca/pkg/models"
)

// maxToolIssues caps the error lines reported per tool run.
const maxToolIssues = 20

// toolErrorRe matches output lines that report a failure.
var toolErrorRe = regexp.MustCompile(`(?i)\berror\b|^\s*(--- )?FAIL\b|✗|✕`)

// fileLineRe extracts "path:line" or "path(line," prefixes from tool output.
var fileLineRe = regexp.MustCompile(`^\s*([\w./\\-]+\.\w+)[:(](\d+)`)

// ToolCheck runs an external command (type checker, linter, test runner)
// against the working tree after apply. A tool that is not installed or
// cannot run produces a warning; a failing run produces errors.
type ToolCheck struct {
	// CheckName identifies the check, e.g. "typecheck".
	CheckName string
	// Kind classifies the findings.
	Kind models.IssueKind
	// Command is the argv to run. Empty disables the check.
	Command []string
	// Runner executes the command.
	Runner iexec.CommandRunner
	// Timeout bounds one run. Zero means no limit.
	Timeout time.Duration
}

func (t *ToolCheck) Name() string { return t.CheckName }

func (t *ToolCheck) Stage() Stage { return StagePost }

func (t *ToolCheck) Run(ctx context.Context, in *Input) Findings {
	var f Findings
	if len(t.Command) == 0 {
		return f
	}
	if _, err := t.Runner.LookPath(t.Command[0]); err != nil {
		f.warnf(models.IssueTool, "", 0, "%s skipped: %s is not available", t.CheckName, t.Command[0])
		return f
	}

	runCtx := ctx
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	out, err := t.Runner.Run(runCtx, in.Root, t.Command[0], t.Command[1:]...)
	if err == nil {
		return f
	}

	cmdline := strings.Join(t.Command, " ")
	var exitErr *exec.ExitError
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		f.warnf(models.IssueTool, "", 0, "%s skipped: %s timed out after %s", t.CheckName, cmdline, t.Timeout)
	case errors.Is(err, exec.ErrNotFound):
		f.warnf(models.IssueTool, "", 0, "%s skipped: %v", t.CheckName, err)
	case errors.As(err, &exitErr):
		issues := ParseToolOutput(string(out), t.Kind)
		if len(issues) == 0 {
			issues = []models.ValidationIssue{{Kind: t.Kind, Message: fmt.Sprintf("%s failed: %v", cmdline, err)}}
		}
		f.Errors = append(f.Errors, issues...)
	default:
		f.warnf(models.IssueTool, "", 0, "%s skipped: could not run %s: %v", t.CheckName, cmdline, err)
	}
	return f
}

// ParseToolOutput turns failure lines of tool output into issues, keeping
// file and line when the line starts with a location.
func ParseToolOutput(output string, kind models.IssueKind) []models.ValidationIssue {
	var issues []models.ValidationIssue
	for _, line := range strings.Split(output, "\n") {
		if !toolErrorRe.MatchString(line) {
			continue
		}
		issue := models.ValidationIssue{Kind: kind, Message: strings.TrimSpace(line)}
		if m := fileLineRe.FindStringSubmatch(line); m != nil {
			issue.File = m[1]
			if n, err := strconv.Atoi(m[2]); err == nil {
				issue.Line = n
			}
		}
		issues = append(issues, issue)
		if len(issues) == maxToolIssues {
			break
		}
	}
	return issues
}
