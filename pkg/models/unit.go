package models

import "time"

// Capability is the kind of work a unit performs. It selects the worker
// that runs the unit.
type Capability string

const (
	// CapabilityAnalysis inspects the scope and produces no edits.
	CapabilityAnalysis Capability = "analysis"
	// CapabilityRewrite changes source files toward the goal.
	CapabilityRewrite Capability = "rewrite"
	// CapabilityTestSync updates tests to follow the rewrite.
	CapabilityTestSync Capability = "test-sync"
	// CapabilityDocSync updates documentation to follow the rewrite.
	CapabilityDocSync Capability = "doc-sync"
	// CapabilityStyleCheck normalizes formatting.
	CapabilityStyleCheck Capability = "style-check"
	// CapabilityValidation runs an extra validation pass as a unit.
	CapabilityValidation Capability = "validation"
)

// Valid returns true if the capability is a known value.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityAnalysis, CapabilityRewrite, CapabilityTestSync,
		CapabilityDocSync, CapabilityStyleCheck, CapabilityValidation:
		return true
	default:
		return false
	}
}

// Priority orders units for display and tie-breaking.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// WorkUnit is one schedulable piece of work. Units are created by the
// planner and never mutated afterwards.
type WorkUnit struct {
	// ID uniquely identifies the unit within its plan.
	ID string `json:"id"`
	// Capability selects the worker.
	Capability Capability `json:"capability"`
	// Description is a human-readable summary of the unit's work.
	Description string `json:"description"`
	// Files are the target files, relative to the project root.
	Files []string `json:"files"`
	// Priority is the unit's priority.
	Priority Priority `json:"priority"`
	// Dependencies are the IDs of units that must produce a result first.
	Dependencies []string `json:"dependencies,omitempty"`
	// Constraints are copied from the originating request.
	Constraints Constraints `json:"constraints"`
	// Batch names the file group this unit belongs to.
	Batch string `json:"batch,omitempty"`
	// Goal is the request goal the unit works toward.
	Goal string `json:"goal,omitempty"`
}

// ResultStatus is the outcome of one unit execution.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultPartial ResultStatus = "partial"
	ResultFailed  ResultStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s ResultStatus) Valid() bool {
	switch s {
	case ResultSuccess, ResultPartial, ResultFailed:
		return true
	default:
		return false
	}
}

// Metrics records what a unit touched and how long it took.
type Metrics struct {
	FilesAnalyzed int           `json:"files_analyzed,omitempty"`
	FilesModified int           `json:"files_modified,omitempty"`
	LinesAdded    int           `json:"lines_added,omitempty"`
	LinesRemoved  int           `json:"lines_removed,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`
}

// WorkResult is produced exactly once per unit execution.
type WorkResult struct {
	UnitID     string       `json:"unit_id"`
	Capability Capability   `json:"capability"`
	Status     ResultStatus `json:"status"`
	Edits      []FileEdit   `json:"edits,omitempty"`
	Errors     []string     `json:"errors,omitempty"`
	Warnings   []string     `json:"warnings,omitempty"`
	Metrics    *Metrics     `json:"metrics,omitempty"`
	// Analysis carries worker-specific output such as an import summary.
	Analysis    any       `json:"analysis,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// FailedResult builds a failed result for a unit with a single error.
func FailedResult(unit *WorkUnit, msg string) *WorkResult {
	return &WorkResult{
		UnitID:     unit.ID,
		Capability: unit.Capability,
		Status:     ResultFailed,
		Errors:     []string{msg},
	}
}

// Usable reports whether the result's edits may be merged.
func (r *WorkResult) Usable() bool {
	return r.Status == ResultSuccess || r.Status == ResultPartial
}
