package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var rootDir string

var rootCmd = &cobra.Command{
	Use:   "orca",
	Short: "Multi-agent edit orchestrator",
	Long: `Orca applies one edit request across many files by splitting it into
work units, running each unit through a specialized worker, and merging
the results into a single validated change set.

The change set is written as a transaction: every file is snapshotted
first, and any failed write or failed post-apply check restores the
project. Applied runs are kept in .orca/state.db and can be rolled back
later with 'orca rollback'.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Project root (default: current directory)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// projectRoot returns the absolute project root selected by --root.
func projectRoot() (string, error) {
	root := rootDir
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		root = cwd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve project root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project root %s is not a directory", abs)
	}
	return abs, nil
}
