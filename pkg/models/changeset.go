package models

import "time"

// IssueKind classifies a validation finding.
type IssueKind string

const (
	IssueSyntax    IssueKind = "syntax"
	IssueReference IssueKind = "reference"
	IssueAPI       IssueKind = "api"
	IssueEdit      IssueKind = "edit"
	IssueTool      IssueKind = "tool"
	IssueTest      IssueKind = "test"
	IssueUnit      IssueKind = "unit"
	IssueProtected IssueKind = "protected"
)

// ValidationIssue is one error or warning produced by validation or
// carried over from a unit result.
type ValidationIssue struct {
	File       string     `json:"file,omitempty"`
	Line       int        `json:"line,omitempty"`
	Message    string     `json:"message"`
	Kind       IssueKind  `json:"kind"`
	UnitID     string     `json:"unit_id,omitempty"`
	Capability Capability `json:"capability,omitempty"`
}

// ValidationResult is the verdict over a merged edit set.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// RollbackData is the pre-apply snapshot of every touched file.
type RollbackData struct {
	// OriginalContents maps each pre-existing path to its content.
	OriginalContents map[string]string `json:"original_contents"`
	// DeletedFiles lists paths that did not exist and are removed on rollback.
	DeletedFiles []string `json:"deleted_files,omitempty"`
	// CreatedDirs lists directories created for new files, deepest first.
	CreatedDirs []string `json:"created_dirs,omitempty"`
}

// ChangeSet is the merged, validated, and optionally applied outcome of
// executing a plan.
type ChangeSet struct {
	ID           string           `json:"id"`
	PlanID       string           `json:"plan_id,omitempty"`
	Description  string           `json:"description"`
	Edits        []FileEdit       `json:"edits"`
	Validation   ValidationResult `json:"validation"`
	RollbackData *RollbackData    `json:"rollback_data,omitempty"`
	Applied      bool             `json:"applied"`
	Timestamp    time.Time        `json:"timestamp"`
	Results      []*WorkResult    `json:"results,omitempty"`
}

// Files returns the paths touched by the change set, in edit order.
func (c *ChangeSet) Files() []string {
	out := make([]string, len(c.Edits))
	for i, e := range c.Edits {
		out[i] = e.FilePath
	}
	return out
}
