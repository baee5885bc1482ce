// Package validation gates a merged edit set before it is applied.
//
// # Overview
//
// A Gate renders every FileEdit against the current file content and runs
// a list of independent checks over the proposed result. Each finding is
// either an error, which blocks apply, or a warning, which is reported but
// does not block.
//
// Checks come in two stages:
//
//   - StagePre checks read proposed content only: SyntaxCheck,
//     ReferenceCheck and APICheck. They run in Gate.Validate.
//   - StagePost checks run external tools (ToolCheck) against the working
//     tree and run in Gate.Verify once the edits are on disk.
//
// # Failure posture
//
// Content problems are errors: an edit whose old text is missing, a file
// that does not parse, an import that resolves nowhere. Infrastructure
// problems are warnings: a tool that is not installed, a tool that times
// out, a tool that cannot be started.
//
// # Usage
//
//	opts := validation.DefaultOptions()
//	opts.API = req.Constraints.PreserveAPI
//	gate := validation.NewGate(afero.NewOsFs(), root, opts.Checks()...)
//
//	result := gate.Validate(ctx, changeSet.Edits)
//	if !result.Valid {
//	    // report result.Errors, do not apply
//	}
package validation
