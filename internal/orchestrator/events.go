package orchestrator

import (
	"time"

	"github.com/ShayCichocki/orca/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventPlanCreated indicates a plan was built and validated.
	EventPlanCreated EventType = "plan-created"
	// EventUnitStarted indicates a unit's dependencies were met and its worker started.
	EventUnitStarted EventType = "unit-started"
	// EventUnitCompleted indicates a unit produced its result.
	EventUnitCompleted EventType = "unit-completed"
	// EventValidationCompleted indicates the change set was validated.
	EventValidationCompleted EventType = "validation-completed"
	// EventApplyStarted indicates the change set is being written.
	EventApplyStarted EventType = "apply-started"
	// EventApplyCompleted indicates every file of the change set was written.
	EventApplyCompleted EventType = "apply-completed"
	// EventRollbackCompleted indicates a failed apply was rolled back.
	EventRollbackCompleted EventType = "rollback-completed"
	// EventTaskError indicates a fatal error ended the run.
	EventTaskError EventType = "task-error"
)

// OrchestratorEvent represents an event emitted by the orchestrator.
// Only the payload fields relevant to Type are set.
type OrchestratorEvent struct {
	// Type is the kind of event.
	Type EventType
	// Plan is set for plan-created.
	Plan *models.EditPlan
	// Unit is set for unit events.
	Unit *models.WorkUnit
	// Result is set for unit-completed.
	Result *models.WorkResult
	// ChangeSet is set for validation and apply events.
	ChangeSet *models.ChangeSet
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Duration is the elapsed time of the finished step, if applicable.
	Duration time.Duration
}
