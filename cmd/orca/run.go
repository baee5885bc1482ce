package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	iexec "github.com/ShayCichocki/orca/internal/exec"
	"github.com/ShayCichocki/orca/internal/orchestrator"
	"github.com/ShayCichocki/orca/internal/signals"
	"github.com/ShayCichocki/orca/pkg/models"
)

// requestFlags are the flags that shape an edit request.
type requestFlags struct {
	scope         []string
	noTests       bool
	tests         bool
	noDocs        bool
	style         bool
	preserveAPI   bool
	maxFiles      int
	allowBreaking bool
	review        bool
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.scope, "scope", "s", nil, "Files, directories or globs to edit (repeatable)")
	cmd.Flags().BoolVar(&f.noTests, "no-tests", false, "Do not update tests")
	cmd.Flags().BoolVar(&f.tests, "tests", false, "Always add a test update unit")
	cmd.Flags().BoolVar(&f.noDocs, "no-docs", false, "Do not update documentation")
	cmd.Flags().BoolVar(&f.style, "style", false, "Add a style check unit per batch")
	cmd.Flags().BoolVar(&f.preserveAPI, "preserve-api", false, "Reject edits that remove exported names")
	cmd.Flags().IntVar(&f.maxFiles, "max-files", 0, "Cap the number of files in scope (0 = no limit)")
	cmd.Flags().BoolVar(&f.allowBreaking, "allow-breaking", false, "Allow breaking changes")
	cmd.Flags().BoolVar(&f.review, "review", false, "Require approval before applying")
}

// request builds the edit request for goal.
func (f *requestFlags) request(goal string) (models.EditRequest, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return models.EditRequest{}, errors.New("goal must not be empty")
	}
	if len(f.scope) == 0 {
		return models.EditRequest{}, errors.New("at least one --scope is required")
	}
	if f.noTests && f.tests {
		return models.EditRequest{}, errors.New("--tests and --no-tests are mutually exclusive")
	}
	if f.maxFiles < 0 {
		return models.EditRequest{}, fmt.Errorf("--max-files must not be negative, got %d", f.maxFiles)
	}

	c := models.Constraints{
		PreserveAPI:          f.preserveAPI,
		MaxFiles:             f.maxFiles,
		AllowBreakingChanges: f.allowBreaking,
		RequiresReview:       f.review,
		EnforceStyle:         f.style,
	}
	switch {
	case f.noTests:
		c.UpdateTests = models.Bool(false)
	case f.tests:
		c.UpdateTests = models.Bool(true)
	}
	if f.noDocs {
		c.UpdateDocs = models.Bool(false)
	}
	return models.EditRequest{Goal: goal, Scope: f.scope, Constraints: c}, nil
}

var (
	runRequest requestFlags
	runDryRun  bool
	runForce   bool
	runYes     bool
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Plan, run and apply an edit request",
	Long: `Run an edit request across the files in scope.

The request is split into work units (analysis, rewrite, test and doc
updates, style checks) that run in parallel where their dependencies
allow. Their edits are merged into one change set, validated, and
applied as a transaction.

Examples:
  orca run "replace var with const" --scope src
  orca run "rename fetchUser to loadUser" -s 'src/**/*.ts' --preserve-api --dry-run
  orca run "tidy formatting" -s lib --style --no-docs --review

With --dry-run the change set is validated and its diff printed, but
nothing is written. With --review the diff is shown and apply waits for
confirmation. A change set that fails validation is never applied
unless --force is given.

Stop a run from another terminal with 'orca stop'.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	runRequest.register(runCmd)
	runCmd.Flags().BoolVarP(&runDryRun, "dry-run", "n", false, "Validate and show the diff without applying")
	runCmd.Flags().BoolVar(&runForce, "force", false, "Apply even if validation fails")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "Approve review without prompting")
}

func runEdit(cmd *cobra.Command, args []string) error {
	req, err := runRequest.request(args[0])
	if err != nil {
		return err
	}
	root, err := projectRoot()
	if err != nil {
		return err
	}

	rt, err := newRuntime(root)
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := rt.buildRegistry(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, stopWatch, err := signals.Watch(ctx, root)
	if err != nil {
		return err
	}
	defer stopWatch()

	out := cmd.OutOrStdout()
	dryRun := runDryRun || rt.cfg.Run.DryRun
	colorize := !color.NoColor

	emitter := orchestrator.NewEventEmitter(100)
	printer := newEventPrinter(out, emitter.Events())
	printed := make(chan struct{})
	go func() {
		printer.run()
		close(printed)
	}()

	var orch *orchestrator.Orchestrator
	approve := func(cs *models.ChangeSet) bool {
		release := printer.hold()
		defer release()
		printDiffs(out, orch.Preview(cs), colorize)
		if runYes {
			return true
		}
		return confirm(cmd.InOrStdin(), out, fmt.Sprintf("Apply %d files?", len(cs.Edits)))
	}

	orch = orchestrator.New(
		orchestrator.RequiredConfig{RepoPath: root, Registry: rt.registry},
		orchestrator.WithLogger(rt.logger),
		orchestrator.WithEmitter(emitter),
		orchestrator.WithStore(rt.store),
		orchestrator.WithExecutorConfig(executorConfig(rt.cfg.Scheduler)),
		orchestrator.WithDryRun(dryRun),
		orchestrator.WithAllowInvalid(runForce || rt.cfg.Run.AllowInvalid),
		orchestrator.WithApprover(approve),
		orchestrator.WithGateFactory(gateFactory(rt.cfg.Validation, iexec.NewRunner("CI=1"))),
	)

	cs, runErr := orch.Run(ctx, req)
	emitter.Close()
	<-printed

	if cs != nil {
		if dryRun {
			printDiffs(out, orch.Preview(cs), colorize)
		}
		fmt.Fprintln(out, renderSummary(cs, dryRun))
	}
	if rt.tracker != nil && rt.tracker.Calls() > 0 {
		in, outTok := rt.tracker.Total()
		fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("Model: %d calls, %d input / %d output tokens", rt.tracker.Calls(), in, outTok)))
	}

	if errors.Is(context.Cause(ctx), signals.ErrKilled) {
		if runErr == nil {
			return signals.ErrKilled
		}
		return fmt.Errorf("run stopped: %w", runErr)
	}
	return runErr
}

// confirm asks a yes/no question and reports whether the answer was yes.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
