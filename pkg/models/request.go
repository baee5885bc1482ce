package models

// EditRequest is a single high-level edit request submitted by a caller.
// It is treated as immutable once handed to the planner.
type EditRequest struct {
	// ID is an optional caller-supplied identifier.
	ID string `json:"id,omitempty"`
	// Goal describes the change in plain language.
	Goal string `json:"goal"`
	// Scope lists directory, file, or glob roots relative to the project root.
	Scope []string `json:"scope"`
	// Constraints restricts how the plan is built and applied.
	Constraints Constraints `json:"constraints"`
}

// Constraints is the enumerated option set attached to a request and
// copied onto every work unit created from it.
type Constraints struct {
	// UpdateTests requests test-sync units. Nil means enabled.
	UpdateTests *bool `json:"update_tests,omitempty"`
	// UpdateDocs requests doc-sync units. Nil means enabled.
	UpdateDocs *bool `json:"update_docs,omitempty"`
	// PreserveAPI turns removed exports into validation errors.
	PreserveAPI bool `json:"preserve_api,omitempty"`
	// MaxFiles caps the number of files taken from the scope. Zero means no cap.
	MaxFiles int `json:"max_files,omitempty"`
	// AllowBreakingChanges raises the risk estimate.
	AllowBreakingChanges bool `json:"allow_breaking_changes,omitempty"`
	// RequiresReview makes apply wait for an explicit approval.
	RequiresReview bool `json:"requires_review,omitempty"`
	// EnforceStyle requests style-check units.
	EnforceStyle bool `json:"enforce_style,omitempty"`
}

// Bool returns a pointer to b, for populating optional constraint fields.
func Bool(b bool) *bool {
	return &b
}

// WantTests reports whether test-sync work was requested.
func (c Constraints) WantTests() bool {
	return c.UpdateTests == nil || *c.UpdateTests
}

// WantDocs reports whether doc-sync work was requested.
func (c Constraints) WantDocs() bool {
	return c.UpdateDocs == nil || *c.UpdateDocs
}

// TestsExplicit reports whether the caller set UpdateTests to true.
func (c Constraints) TestsExplicit() bool {
	return c.UpdateTests != nil && *c.UpdateTests
}

// Count returns the number of constraints that are set to a non-default value.
func (c Constraints) Count() int {
	n := 0
	if c.UpdateTests != nil {
		n++
	}
	if c.UpdateDocs != nil {
		n++
	}
	if c.PreserveAPI {
		n++
	}
	if c.MaxFiles > 0 {
		n++
	}
	if c.AllowBreakingChanges {
		n++
	}
	if c.RequiresReview {
		n++
	}
	if c.EnforceStyle {
		n++
	}
	return n
}
