package state

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ShayCichocki/orca/pkg/models"
)

func sampleRun(id string, at time.Time) *Run {
	return &Run{
		ID:          id,
		Description: "rename Button props",
		CreatedAt:   at,
		Plan: &models.EditPlan{
			ID:             "plan-" + id,
			Request:        models.EditRequest{Goal: "rename Button props", Scope: []string{"src"}},
			Units:          []*models.WorkUnit{{ID: "analysis-1", Capability: models.CapabilityAnalysis, Files: []string{"src/a.ts"}}},
			ExecutionOrder: models.OrderParallel,
		},
		ChangeSet: &models.ChangeSet{
			ID:          "cs-" + id,
			Description: "rename Button props",
			Edits: []models.FileEdit{{
				FilePath: "src/a.ts",
				Edits:    []models.TextEdit{{OldText: "a", NewText: "b"}},
			}},
			Validation: models.ValidationResult{Valid: true},
		},
		Valid: true,
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := setupTestDB(t)
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	run := sampleRun("r1", at)

	if err := db.SaveRun(run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	got, err := db.GetRun("r1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if got.Status != RunPlanned {
		t.Errorf("Status = %s, want %s", got.Status, RunPlanned)
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, at)
	}
	if !got.Valid || got.Applied || got.RolledBack {
		t.Errorf("flags = valid %v applied %v rolled back %v", got.Valid, got.Applied, got.RolledBack)
	}
	if got.Plan == nil || got.Plan.ID != "plan-r1" || len(got.Plan.Units) != 1 {
		t.Errorf("Plan = %+v", got.Plan)
	}
	if got.ChangeSet == nil || !reflect.DeepEqual(got.ChangeSet.Edits, run.ChangeSet.Edits) {
		t.Errorf("ChangeSet = %+v", got.ChangeSet)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.GetRun("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun(missing) error = %v, want ErrRunNotFound", err)
	}
}

func TestUpdateRun(t *testing.T) {
	db := setupTestDB(t)
	run := sampleRun("r1", time.Now())
	if err := db.SaveRun(run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	run.Status = RunApplied
	run.Applied = true
	run.ChangeSet.Applied = true
	if err := db.UpdateRun(run); err != nil {
		t.Fatalf("UpdateRun failed: %v", err)
	}
	got, err := db.GetRun("r1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != RunApplied || !got.Applied || !got.ChangeSet.Applied {
		t.Errorf("GetRun after update = %+v", got)
	}

	if err := db.UpdateRun(sampleRun("ghost", time.Now())); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("UpdateRun(ghost) error = %v, want ErrRunNotFound", err)
	}
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		if err := db.SaveRun(sampleRun(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("SaveRun(%s) failed: %v", id, err)
		}
	}

	tests := []struct {
		limit int
		want  []string
	}{
		{0, []string{"third", "second", "first"}},
		{2, []string{"third", "second"}},
		{10, []string{"third", "second", "first"}},
	}
	for _, tt := range tests {
		runs, err := db.ListRuns(tt.limit)
		if err != nil {
			t.Fatalf("ListRuns(%d) failed: %v", tt.limit, err)
		}
		var ids []string
		for _, r := range runs {
			ids = append(ids, r.ID)
		}
		if !reflect.DeepEqual(ids, tt.want) {
			t.Errorf("ListRuns(%d) = %v, want %v", tt.limit, ids, tt.want)
		}
	}
}

func TestMarkRolledBack(t *testing.T) {
	db := setupTestDB(t)
	run := sampleRun("r1", time.Now())
	run.Status = RunApplied
	run.Applied = true
	if err := db.SaveRun(run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	if err := db.MarkRolledBack("r1"); err != nil {
		t.Fatalf("MarkRolledBack failed: %v", err)
	}
	got, _ := db.GetRun("r1")
	if !got.RolledBack || got.Status != RunRolledBack {
		t.Errorf("after MarkRolledBack: rolled back %v, status %s", got.RolledBack, got.Status)
	}
	if err := db.MarkRolledBack("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("MarkRolledBack(missing) error = %v, want ErrRunNotFound", err)
	}
}

func TestInterrupted(t *testing.T) {
	db := setupTestDB(t)
	done := sampleRun("done", time.Now())
	done.Status = RunApplied
	stuck := sampleRun("stuck", time.Now())
	stuck.Status = RunApplying
	for _, r := range []*Run{done, stuck} {
		if err := db.SaveRun(r); err != nil {
			t.Fatalf("SaveRun(%s) failed: %v", r.ID, err)
		}
	}

	runs, err := db.Interrupted()
	if err != nil {
		t.Fatalf("Interrupted failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "stuck" {
		t.Errorf("Interrupted() = %v, want [stuck]", runs)
	}
}

func TestSnapshot(t *testing.T) {
	db := setupTestDB(t)
	if err := db.SaveRun(sampleRun("r1", time.Now())); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	data := &models.RollbackData{
		OriginalContents: map[string]string{"src/a.ts": "old a\n", "src/empty.ts": ""},
		DeletedFiles:     []string{"src/new/x.ts", "src/b.ts"},
		CreatedDirs:      []string{"src/new", "src/new/deep"},
	}
	if err := db.SaveSnapshot("r1", data); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	got, err := db.GetSnapshot("r1")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	want := &models.RollbackData{
		OriginalContents: data.OriginalContents,
		DeletedFiles:     []string{"src/b.ts", "src/new/x.ts"},
		CreatedDirs:      []string{"src/new/deep", "src/new"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetSnapshot() = %+v, want %+v", got, want)
	}

	// Saving again replaces the previous snapshot.
	if err := db.SaveSnapshot("r1", &models.RollbackData{OriginalContents: map[string]string{"c.ts": "c"}}); err != nil {
		t.Fatalf("SaveSnapshot (replace) failed: %v", err)
	}
	got, _ = db.GetSnapshot("r1")
	if len(got.OriginalContents) != 1 || len(got.DeletedFiles) != 0 {
		t.Errorf("replaced snapshot = %+v", got)
	}
}

func TestGetSnapshot_None(t *testing.T) {
	db := setupTestDB(t)
	got, err := db.GetSnapshot("nothing")
	if err != nil || got != nil {
		t.Errorf("GetSnapshot(nothing) = %v, %v, want nil, nil", got, err)
	}
}

func TestSaveSnapshot_UnknownRun(t *testing.T) {
	db := setupTestDB(t)
	data := &models.RollbackData{OriginalContents: map[string]string{"a": "b"}}
	if err := db.SaveSnapshot("ghost", data); err == nil {
		t.Error("SaveSnapshot for an unknown run should fail the foreign key")
	}
}
