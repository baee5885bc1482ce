package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/orca/internal/orchestrator"
	"github.com/ShayCichocki/orca/internal/registry"
	"github.com/ShayCichocki/orca/pkg/models"
)

var planRequest requestFlags

var planCmd = &cobra.Command{
	Use:   "plan <goal>",
	Short: "Show the work units an edit request would run",
	Long: `Build the plan for an edit request and print it without running any
worker. Takes the same request flags as 'orca run'.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planRequest.register(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	req, err := planRequest.request(args[0])
	if err != nil {
		return err
	}
	root, err := projectRoot()
	if err != nil {
		return err
	}

	orch := orchestrator.New(orchestrator.RequiredConfig{RepoPath: root, Registry: registry.New()})
	plan, err := orch.Plan(cmd.Context(), req)
	if err != nil {
		return err
	}
	printPlan(cmd.OutOrStdout(), plan)
	return nil
}

// printPlan writes the plan header and its unit table.
func printPlan(w io.Writer, plan *models.EditPlan) {
	fmt.Fprintln(w, titleStyle.Render("Plan "+shortID(plan.ID)))
	fmt.Fprintf(w, "Order: %s  Risk: %s  Complexity: %s  Estimate: %s\n",
		plan.ExecutionOrder, plan.RiskLevel, plan.Complexity, plan.EstimatedDuration.Round(time.Second))
	fmt.Fprintf(w, "Files: %d\n\n", len(plan.AffectedFiles))
	fmt.Fprintln(w, planTable(plan).Render())
}

// planTable returns one row per unit in plan order.
func planTable(plan *models.EditPlan) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"UNIT", "CAPABILITY", "PRIORITY", "BATCH", "FILES", "DEPENDS ON"})
	for _, u := range plan.Units {
		deps := make([]string, len(u.Dependencies))
		for i, d := range u.Dependencies {
			deps[i] = shortID(d)
		}
		tw.AppendRow(table.Row{
			shortID(u.ID),
			u.Capability,
			u.Priority,
			u.Batch,
			len(u.Files),
			strings.Join(deps, ", "),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},  // UNIT
		{Number: 2, Align: text.AlignLeft},  // CAPABILITY
		{Number: 3, Align: text.AlignLeft},  // PRIORITY
		{Number: 4, Align: text.AlignLeft},  // BATCH
		{Number: 5, Align: text.AlignRight}, // FILES
		{Number: 6, Align: text.AlignLeft},  // DEPENDS ON
	})
	tw.SetStyle(table.StyleLight)
	return tw
}
