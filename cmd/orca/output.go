package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ShayCichocki/orca/internal/apply"
	"github.com/ShayCichocki/orca/internal/orchestrator"
	"github.com/ShayCichocki/orca/pkg/models"
)

// maxListedIssues caps the issues listed in the run summary per severity.
const maxListedIssues = 20

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ECDC4"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("243")).
			Padding(0, 1)
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#96E6A1")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

// shortID returns the first eight characters of an ID.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatEvent returns the progress line for ev and the color to print it in.
// Events that are not shown return an empty line.
func formatEvent(ev orchestrator.OrchestratorEvent) (string, color.Attribute) {
	switch ev.Type {
	case orchestrator.EventPlanCreated:
		if ev.Plan == nil {
			return "", 0
		}
		return fmt.Sprintf("Plan %s: %d units over %d files (%s, risk %s)",
			shortID(ev.Plan.ID), len(ev.Plan.Units), len(ev.Plan.AffectedFiles), ev.Plan.ExecutionOrder, ev.Plan.RiskLevel), color.FgCyan
	case orchestrator.EventUnitStarted:
		if ev.Unit == nil {
			return "", 0
		}
		return fmt.Sprintf("  ▶ %s %s", ev.Unit.Capability, ev.Unit.Description), color.FgBlue
	case orchestrator.EventUnitCompleted:
		if ev.Unit == nil || ev.Result == nil {
			return "", 0
		}
		mark, attr := "✓", color.FgGreen
		switch ev.Result.Status {
		case models.ResultFailed:
			mark, attr = "✗", color.FgRed
		case models.ResultPartial:
			mark, attr = "⚠", color.FgYellow
		}
		line := fmt.Sprintf("  %s %s %s (%d files, %s)", mark, ev.Unit.Capability, shortID(ev.Unit.ID), len(ev.Result.Edits), ev.Duration.Round(time.Millisecond))
		if len(ev.Result.Errors) > 0 {
			line += ": " + ev.Result.Errors[0]
		}
		return line, attr
	case orchestrator.EventValidationCompleted:
		attr := color.FgGreen
		if ev.ChangeSet != nil && !ev.ChangeSet.Validation.Valid {
			attr = color.FgRed
		}
		return "Validation: " + ev.Message, attr
	case orchestrator.EventApplyStarted:
		return "Applying " + ev.Message, color.FgCyan
	case orchestrator.EventApplyCompleted:
		return fmt.Sprintf("Applied in %s", ev.Duration.Round(time.Millisecond)), color.FgGreen
	case orchestrator.EventRollbackCompleted:
		return "Rolled back: " + ev.Message, color.FgYellow
	case orchestrator.EventTaskError:
		return "Error: " + ev.Message, color.FgRed
	default:
		return "", 0
	}
}

// eventPrinter writes a progress line per event. An interactive prompt
// holds it so progress lines do not interleave with the prompt.
type eventPrinter struct {
	mu     sync.Mutex
	w      io.Writer
	events <-chan orchestrator.OrchestratorEvent
}

func newEventPrinter(w io.Writer, events <-chan orchestrator.OrchestratorEvent) *eventPrinter {
	return &eventPrinter{w: w, events: events}
}

// run prints events until the channel is closed.
func (p *eventPrinter) run() {
	for ev := range p.events {
		p.mu.Lock()
		p.print(ev)
		p.mu.Unlock()
	}
}

// hold prints the events already queued and then stops printing until
// the returned release is called.
func (p *eventPrinter) hold() (release func()) {
	p.mu.Lock()
	for {
		select {
		case ev, ok := <-p.events:
			if !ok {
				return p.mu.Unlock
			}
			p.print(ev)
		default:
			return p.mu.Unlock
		}
	}
}

func (p *eventPrinter) print(ev orchestrator.OrchestratorEvent) {
	line, attr := formatEvent(ev)
	if line == "" {
		return
	}
	color.New(attr).Fprintln(p.w, line)
}

// renderSummary renders the result box of a run.
func renderSummary(cs *models.ChangeSet, dryRun bool) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Change set "+shortID(cs.ID)) + "\n")
	fmt.Fprintf(&b, "Files:    %d\n", len(cs.Edits))

	verdict := okStyle.Render("valid")
	if !cs.Validation.Valid {
		verdict = failStyle.Render("invalid")
	}
	fmt.Fprintf(&b, "Verdict:  %s (%d errors, %d warnings)\n", verdict, len(cs.Validation.Errors), len(cs.Validation.Warnings))

	status := "not applied"
	switch {
	case cs.Applied:
		status = okStyle.Render("applied")
	case dryRun:
		status = dimStyle.Render("dry run, not applied")
	}
	fmt.Fprintf(&b, "Status:   %s", status)
	if cs.PlanID != "" && cs.Applied {
		fmt.Fprintf(&b, "\n%s", dimStyle.Render("Undo with: orca rollback "+shortID(cs.PlanID)))
	}

	out := boxStyle.Render(b.String())
	if issues := formatIssues("Errors", cs.Validation.Errors); issues != "" {
		out += "\n" + failStyle.Render(issues)
	}
	if issues := formatIssues("Warnings", cs.Validation.Warnings); issues != "" {
		out += "\n" + issues
	}
	return out
}

func formatIssues(title string, issues []models.ValidationIssue) string {
	if len(issues) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(title + ":")
	for i, is := range issues {
		if i == maxListedIssues {
			fmt.Fprintf(&b, "\n  ... and %d more", len(issues)-maxListedIssues)
			break
		}
		b.WriteString("\n  " + formatIssue(is))
	}
	return b.String()
}

func formatIssue(is models.ValidationIssue) string {
	var where string
	switch {
	case is.File != "" && is.Line > 0:
		where = fmt.Sprintf("%s:%d: ", is.File, is.Line)
	case is.File != "":
		where = is.File + ": "
	case is.UnitID != "":
		where = fmt.Sprintf("[%s %s] ", is.Capability, shortID(is.UnitID))
	}
	return fmt.Sprintf("%s%s (%s)", where, is.Message, is.Kind)
}

// printDiffs writes the unified diff of every file, highlighted when
// colorize is set.
func printDiffs(w io.Writer, diffs []apply.FileDiff, colorize bool) {
	for _, d := range diffs {
		header := fmt.Sprintf("%s (+%d -%d)", d.Path, d.Added, d.Removed)
		if d.IsNew {
			header += " [new]"
		}
		fmt.Fprintln(w, titleStyle.Render(header))
		if d.Error != "" {
			fmt.Fprintln(w, failStyle.Render("  "+d.Error))
			continue
		}
		if d.Unified == "" {
			fmt.Fprintln(w, dimStyle.Render("  no changes"))
			continue
		}
		if colorize {
			fmt.Fprint(w, highlightDiff(d.Unified))
		} else {
			fmt.Fprint(w, d.Unified)
		}
		if !strings.HasSuffix(d.Unified, "\n") {
			fmt.Fprintln(w)
		}
	}
}

// highlightDiff colors a unified diff for a 256-color terminal. The text is
// returned unchanged when it cannot be tokenised.
func highlightDiff(text string) string {
	lexer := lexers.Get("diff")
	if lexer == nil {
		return text
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get("dracula")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, text)
	if err != nil {
		return text
	}
	var b strings.Builder
	if err := formatter.Format(&b, style, iterator); err != nil {
		return text
	}
	return b.String()
}
