package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/orca/pkg/models"
)

// Validator produces a verdict over a merged edit set.
type Validator interface {
	Validate(ctx context.Context, edits []models.FileEdit) models.ValidationResult
}

// MergeEdits groups the file edits of results by path. For a path edited
// by several results the inner edit lists are concatenated in result
// order. Edits of results that are not usable are skipped.
func MergeEdits(results []*models.WorkResult) []models.FileEdit {
	var merged []models.FileEdit
	index := make(map[string]int)

	for _, res := range results {
		if res == nil || !res.Usable() {
			continue
		}
		for _, fe := range res.Edits {
			i, ok := index[fe.FilePath]
			if !ok {
				index[fe.FilePath] = len(merged)
				merged = append(merged, models.FileEdit{
					FilePath:  fe.FilePath,
					IsNewFile: fe.IsNewFile,
					Edits:     append([]models.TextEdit(nil), fe.Edits...),
				})
				continue
			}
			merged[i].Edits = append(merged[i].Edits, fe.Edits...)
		}
	}
	return merged
}

// UnitIssues converts the errors and warnings of every result into
// validation issues tagged with the unit that reported them.
func UnitIssues(results []*models.WorkResult) (errs, warnings []models.ValidationIssue) {
	for _, res := range results {
		if res == nil {
			continue
		}
		for _, msg := range res.Errors {
			errs = append(errs, models.ValidationIssue{
				Message:    msg,
				Kind:       models.IssueUnit,
				UnitID:     res.UnitID,
				Capability: res.Capability,
			})
		}
		for _, msg := range res.Warnings {
			warnings = append(warnings, models.ValidationIssue{
				Message:    msg,
				Kind:       models.IssueUnit,
				UnitID:     res.UnitID,
				Capability: res.Capability,
			})
		}
	}
	return errs, warnings
}

// conflictingNewFlags reports paths that one result creates and another
// edits in place.
func conflictingNewFlags(results []*models.WorkResult) []models.ValidationIssue {
	flag := make(map[string]bool)
	reported := make(map[string]bool)
	var out []models.ValidationIssue
	for _, res := range results {
		if res == nil || !res.Usable() {
			continue
		}
		for _, fe := range res.Edits {
			prev, ok := flag[fe.FilePath]
			if !ok {
				flag[fe.FilePath] = fe.IsNewFile
				continue
			}
			if prev != fe.IsNewFile && !reported[fe.FilePath] {
				reported[fe.FilePath] = true
				out = append(out, models.ValidationIssue{
					File:       fe.FilePath,
					Message:    fmt.Sprintf("unit %s disagrees on whether %s is a new file", res.UnitID, fe.FilePath),
					Kind:       models.IssueEdit,
					UnitID:     res.UnitID,
					Capability: res.Capability,
				})
			}
		}
	}
	return out
}

// Aggregator merges unit results into a validated change set.
type Aggregator struct {
	validator Validator
	newID     func() string
	now       func() time.Time
}

// NewAggregator creates an aggregator. A nil validator accepts every edit set.
func NewAggregator(v Validator) *Aggregator {
	return &Aggregator{
		validator: v,
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
	}
}

// Aggregate merges results into one edit per file and validates the
// merged set. Unit errors make the change set invalid.
func (a *Aggregator) Aggregate(ctx context.Context, plan *models.EditPlan, results []*models.WorkResult) *models.ChangeSet {
	cs := &models.ChangeSet{
		ID:        a.newID(),
		Edits:     MergeEdits(results),
		Timestamp: a.now(),
		Results:   results,
	}
	if plan != nil {
		cs.PlanID = plan.ID
		cs.Description = plan.Request.Goal
	}

	verdict := models.ValidationResult{Valid: true}
	if a.validator != nil {
		verdict = a.validator.Validate(ctx, cs.Edits)
	}

	unitErrs, unitWarns := UnitIssues(results)
	verdict.Errors = append(unitErrs, verdict.Errors...)
	verdict.Warnings = append(append(unitWarns, conflictingNewFlags(results)...), verdict.Warnings...)
	verdict.Valid = len(verdict.Errors) == 0
	cs.Validation = verdict

	debugLog("[aggregator] change set %s: %d files, %d errors, %d warnings", cs.ID, len(cs.Edits), len(verdict.Errors), len(verdict.Warnings))
	return cs
}
