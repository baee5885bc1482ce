package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/orca/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify orca configuration.

Without arguments, displays every effective setting.
With one argument (key), displays the value for that key.
With two arguments (key value), writes the value to the project's .orca.yaml.

User defaults are read from ~/.config/orca/config.yaml and can be
overridden per project in .orca.yaml or with ORCA_* environment variables
(for example ORCA_SCHEDULER_MAX_CONCURRENCY=8).`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	switch len(args) {
	case 0:
		settings, err := config.Settings(root)
		if err != nil {
			return err
		}
		printSettings(out, settings)
		if p := config.GetProjectConfigPath(root); p != "" {
			fmt.Fprintf(out, "\nproject config: %s\n", p)
		}
		fmt.Fprintf(out, "user config:    %s\n", config.GetUserConfigPath())
		if cfg, err := config.Load(root); err == nil {
			fmt.Fprintf(out, "api key source: %s\n", config.GetAPIKeySource(cfg))
		}
		return nil
	case 1:
		value, err := config.Get(root, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, displayValue(args[0], value))
		return nil
	default:
		if err := config.SetProjectValue(root, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(out, "Set %s = %s\n", args[0], displayValue(args[0], args[1]))
		return nil
	}
}

func printSettings(w io.Writer, settings []config.Setting) {
	for _, s := range settings {
		fmt.Fprintf(w, "%s: %s\n", s.Key, displayValue(s.Key, s.Value))
	}
}

// displayValue formats a setting, masking the API key.
func displayValue(key string, value interface{}) string {
	if key == "anthropic.api_key" {
		s, _ := value.(string)
		if s == "" {
			return "(not set)"
		}
		return config.MaskAPIKey(s)
	}
	return fmt.Sprint(value)
}
