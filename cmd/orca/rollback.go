package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/orca/internal/orchestrator"
	"github.com/ShayCichocki/orca/internal/registry"
	"github.com/ShayCichocki/orca/internal/state"
)

// ErrAmbiguousRun indicates a run ID prefix matches more than one run.
var ErrAmbiguousRun = errors.New("ambiguous run id")

var rollbackCmd = &cobra.Command{
	Use:   "rollback <run-id>",
	Short: "Restore the project to its state before a run",
	Long: `Restore every file an applied run changed, delete the files it created,
and remove the directories it added. The run ID may be shortened to any
unique prefix, as shown by 'orca history'.`,
	Args: cobra.ExactArgs(1),
	RunE: runRollback,
}

func runRollback(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	rt, err := newRuntime(root)
	if err != nil {
		return err
	}
	defer rt.Close()

	id, err := resolveRunID(rt.store, args[0])
	if err != nil {
		return err
	}

	orch := orchestrator.New(
		orchestrator.RequiredConfig{RepoPath: root, Registry: registry.New()},
		orchestrator.WithLogger(rt.logger),
		orchestrator.WithStore(rt.store),
	)
	if err := orch.RollbackRun(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rolled back run %s\n", shortID(id))
	return nil
}

// resolveRunID expands a unique prefix to the full run ID.
func resolveRunID(store state.RunStore, prefix string) (string, error) {
	if r, err := store.GetRun(prefix); err == nil {
		return r.ID, nil
	} else if !errors.Is(err, state.ErrRunNotFound) {
		return "", err
	}

	runs, err := store.ListRuns(0)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, r := range runs {
		if strings.HasPrefix(r.ID, prefix) {
			matches = append(matches, r.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", state.ErrRunNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches %d runs", ErrAmbiguousRun, prefix, len(matches))
	}
}
