package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/orca/internal/signals"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the run in progress",
	Long: `Ask a running 'orca run' in this project to stop.

Workers that have not started are skipped and nothing new is applied.
A change set already being written is finished or rolled back as a whole.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}
		if err := signals.Kill(root); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Stop requested.")
		return nil
	},
}
