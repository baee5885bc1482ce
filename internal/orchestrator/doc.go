// Package orchestrator runs edit requests across the worker registry.
//
// A run moves through four components:
//   - Planner: Splits the request into work units with dependencies
//   - Executor: Releases units as their dependencies finish, bounded by a concurrency limit
//   - Aggregator: Merges unit results into one change set and validates it
//   - Apply manager: Writes the change set as a transaction and restores it on failure
//
// Progress is reported as OrchestratorEvents on an optional EventEmitter,
// and runs are recorded in an optional state.Store so an applied change
// set can be rolled back later.
//
// Example usage:
//
//	reg := registry.New()
//	workers.Register(reg, workers.Config{Fs: fs, Root: root})
//	orch := orchestrator.New(
//		orchestrator.RequiredConfig{RepoPath: root, Registry: reg},
//		orchestrator.WithDryRun(true),
//	)
//	cs, err := orch.Run(ctx, req)
package orchestrator
