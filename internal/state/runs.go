package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/orca/pkg/models"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the lifecycle position of a run.
type RunStatus string

const (
	RunPlanned    RunStatus = "planned"
	RunValidated  RunStatus = "validated"
	RunApplying   RunStatus = "applying"
	RunApplied    RunStatus = "applied"
	RunRolledBack RunStatus = "rolled-back"
	RunFailed     RunStatus = "failed"
)

// Run is one orchestration run.
type Run struct {
	ID          string
	Description string
	CreatedAt   time.Time
	Status      RunStatus
	Applied     bool
	Valid       bool
	RolledBack  bool
	Plan        *models.EditPlan
	ChangeSet   *models.ChangeSet
}

// SaveRun inserts a new run.
func (db *DB) SaveRun(r *Run) error {
	planJSON, csJSON, err := encodeRun(r)
	if err != nil {
		return err
	}
	if r.Status == "" {
		r.Status = RunPlanned
	}
	_, err = db.Exec(`
		INSERT INTO runs (id, description, created_at, status, applied, valid, rolled_back, plan_json, changeset_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Description, formatTime(r.CreatedAt), string(r.Status), r.Applied, r.Valid, r.RolledBack, planJSON, csJSON)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// UpdateRun rewrites the mutable fields of an existing run.
func (db *DB) UpdateRun(r *Run) error {
	planJSON, csJSON, err := encodeRun(r)
	if err != nil {
		return err
	}
	result, err := db.Exec(`
		UPDATE runs SET description = ?, status = ?, applied = ?, valid = ?, rolled_back = ?, plan_json = ?, changeset_json = ?
		WHERE id = ?
	`, r.Description, string(r.Status), r.Applied, r.Valid, r.RolledBack, planJSON, csJSON, r.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("update run %s: %w", r.ID, ErrRunNotFound)
	}
	return nil
}

// GetRun retrieves a run by ID. It returns ErrRunNotFound for unknown IDs.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, description, created_at, status, applied, valid, rolled_back, plan_json, changeset_json
		FROM runs WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `
		SELECT id, description, created_at, status, applied, valid, rolled_back, plan_json, changeset_json
		FROM runs ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// MarkRolledBack records that an applied run was reverted.
func (db *DB) MarkRolledBack(id string) error {
	result, err := db.Exec(`UPDATE runs SET rolled_back = 1, status = ? WHERE id = ?`, string(RunRolledBack), id)
	if err != nil {
		return fmt.Errorf("mark rolled back: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("mark rolled back %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// Interrupted returns runs left in the applying state, which means the
// process stopped between writing files and recording the outcome.
func (db *DB) Interrupted() ([]Run, error) {
	rows, err := db.Query(`
		SELECT id, description, created_at, status, applied, valid, rolled_back, plan_json, changeset_json
		FROM runs WHERE status = ? ORDER BY created_at
	`, string(RunApplying))
	if err != nil {
		return nil, fmt.Errorf("list interrupted runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var createdAt, status string
	var planJSON, csJSON sql.NullString
	if err := row.Scan(&r.ID, &r.Description, &createdAt, &status, &r.Applied, &r.Valid, &r.RolledBack, &planJSON, &csJSON); err != nil {
		return nil, err
	}
	r.Status = RunStatus(status)
	r.CreatedAt, _ = parseTime(createdAt)

	if planJSON.Valid && planJSON.String != "" {
		r.Plan = &models.EditPlan{}
		if err := json.Unmarshal([]byte(planJSON.String), r.Plan); err != nil {
			return nil, fmt.Errorf("decode plan of run %s: %w", r.ID, err)
		}
	}
	if csJSON.Valid && csJSON.String != "" {
		r.ChangeSet = &models.ChangeSet{}
		if err := json.Unmarshal([]byte(csJSON.String), r.ChangeSet); err != nil {
			return nil, fmt.Errorf("decode change set of run %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

func encodeRun(r *Run) (planJSON, csJSON sql.NullString, err error) {
	if r.Plan != nil {
		data, err := json.Marshal(r.Plan)
		if err != nil {
			return planJSON, csJSON, fmt.Errorf("encode plan: %w", err)
		}
		planJSON = sql.NullString{String: string(data), Valid: true}
	}
	if r.ChangeSet != nil {
		data, err := json.Marshal(r.ChangeSet)
		if err != nil {
			return planJSON, csJSON, fmt.Errorf("encode change set: %w", err)
		}
		csJSON = sql.NullString{String: string(data), Valid: true}
	}
	return planJSON, csJSON, nil
}
