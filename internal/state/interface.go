package state

import (
	"io"

	"github.com/ShayCichocki/orca/pkg/models"
)

// RunStore handles run history persistence.
type RunStore interface {
	SaveRun(r *Run) error
	UpdateRun(r *Run) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]Run, error)
	MarkRolledBack(id string) error
}

// SnapshotStore keeps the pre-apply snapshot of applied runs.
type SnapshotStore interface {
	SaveSnapshot(runID string, data *models.RollbackData) error
	GetSnapshot(runID string) (*models.RollbackData, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// Store is the persistence surface the orchestrator and CLI depend on.
type Store interface {
	io.Closer
	Migrator
	RunStore
	SnapshotStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store         = (*DB)(nil)
	_ RunStore      = (*DB)(nil)
	_ SnapshotStore = (*DB)(nil)
)
