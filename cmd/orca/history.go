package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/orca/internal/config"
	"github.com/ShayCichocki/orca/internal/state"
)

var (
	historyLimit int
	historyPurge time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	Long: `List the runs recorded in the project's run history, newest first.

A run left in the applying state was interrupted while writing; restore
it with 'orca rollback <id>'.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Number of runs to show (0 = all)")
	historyCmd.Flags().DurationVar(&historyPurge, "purge-older-than", 0, "Delete runs older than this duration (e.g. 720h)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := openStore(root, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	if historyPurge > 0 {
		n, err := db.PurgeOldRuns(historyPurge)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Purged %d runs older than %s\n", n, historyPurge)
	}

	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs yet. Run 'orca run <goal> --scope <path>' to start.")
		return nil
	}
	fmt.Fprintln(out, historyTable(runs).Render())

	interrupted, err := db.Interrupted()
	if err != nil {
		return err
	}
	printInterrupted(out, interrupted)
	return nil
}

// historyTable returns one row per run.
func historyTable(runs []state.Run) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"RUN", "CREATED", "STATUS", "VALID", "FILES", "GOAL"})
	for _, r := range runs {
		files := 0
		if r.ChangeSet != nil {
			files = len(r.ChangeSet.Edits)
		}
		valid := "-"
		if r.Status != state.RunPlanned {
			valid = fmt.Sprintf("%t", r.Valid)
		}
		tw.AppendRow(table.Row{
			shortID(r.ID),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Status,
			valid,
			files,
			truncate(r.Description, 50),
		})
	}
	tw.SetStyle(table.StyleLight)
	return tw
}

func printInterrupted(w io.Writer, runs []state.Run) {
	for _, r := range runs {
		fmt.Fprintln(w, failStyle.Render(fmt.Sprintf("Run %s was interrupted while applying. Restore it with: orca rollback %s", shortID(r.ID), shortID(r.ID))))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
