package models

// ProjectKind is the detected shape of the project under edit.
type ProjectKind string

const (
	ProjectReact     ProjectKind = "react"
	ProjectNode      ProjectKind = "node"
	ProjectFullstack ProjectKind = "fullstack"
	ProjectGo        ProjectKind = "go"
	ProjectPython    ProjectKind = "python"
	ProjectRust      ProjectKind = "rust"
	ProjectUnknown   ProjectKind = "unknown"
)

// CodebaseContext is the read-only description of the project shared with
// every worker for one run.
type CodebaseContext struct {
	Root          string      `json:"root"`
	ProjectType   ProjectKind `json:"project_type"`
	Languages     []string    `json:"languages,omitempty"`
	Frameworks    []string    `json:"frameworks,omitempty"`
	TestFramework string      `json:"test_framework,omitempty"`
	StyleGuide    string      `json:"style_guide,omitempty"`
	BuildSystem   string      `json:"build_system,omitempty"`
	// Dependencies are the declared package dependencies, if any.
	Dependencies []string `json:"dependencies,omitempty"`
	// BuildCommand and TestCommand are argv lists; empty when unknown.
	BuildCommand []string `json:"build_command,omitempty"`
	TestCommand  []string `json:"test_command,omitempty"`
	LintCommand  []string `json:"lint_command,omitempty"`
}

// HasFramework reports whether name is among the detected frameworks.
func (c *CodebaseContext) HasFramework(name string) bool {
	if c == nil {
		return false
	}
	for _, f := range c.Frameworks {
		if f == name {
			return true
		}
	}
	return false
}
