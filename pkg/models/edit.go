package models

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrEditNotApplicable indicates an edit's old text was not found in
	// the content it was applied to.
	ErrEditNotApplicable = errors.New("edit not applicable")
	// ErrUnsafePath indicates a file path that would resolve outside the
	// project root.
	ErrUnsafePath = errors.New("path escapes project root")
)

// CheckPath reports whether rel is a usable project-relative path: not
// empty, not absolute, and not climbing out of the root once cleaned.
func CheckPath(rel string) error {
	if strings.TrimSpace(rel) == "" {
		return fmt.Errorf("%w: empty path", ErrUnsafePath)
	}
	slashed := filepath.ToSlash(rel)
	if filepath.IsAbs(rel) || strings.HasPrefix(slashed, "/") || filepath.VolumeName(rel) != "" {
		return fmt.Errorf("%w: %s is absolute", ErrUnsafePath, rel)
	}
	clean := path.Clean(slashed)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: %s", ErrUnsafePath, rel)
	}
	return nil
}

// TextEdit replaces OldText with NewText. An empty OldText appends NewText.
type TextEdit struct {
	OldText     string `json:"old_text"`
	NewText     string `json:"new_text"`
	Description string `json:"description,omitempty"`
}

// FileEdit is the ordered list of text edits for one file.
type FileEdit struct {
	FilePath  string     `json:"file_path"`
	IsNewFile bool       `json:"is_new_file,omitempty"`
	Edits     []TextEdit `json:"edits"`
}

// Render applies the edits to original and returns the resulting content.
// New files are built from the new texts joined by newlines. Existing files
// have each substitution applied, in order, to the first occurrence in the
// live content.
func (f FileEdit) Render(original string) (string, error) {
	if f.IsNewFile {
		parts := make([]string, len(f.Edits))
		for i, e := range f.Edits {
			parts[i] = e.NewText
		}
		return strings.Join(parts, "\n"), nil
	}

	content := original
	for i, e := range f.Edits {
		if e.OldText == "" {
			content += e.NewText
			continue
		}
		idx := strings.Index(content, e.OldText)
		if idx < 0 {
			return "", fmt.Errorf("%s: edit %d: %w: %q not found", f.FilePath, i+1, ErrEditNotApplicable, abbreviate(e.OldText))
		}
		content = content[:idx] + e.NewText + content[idx+len(e.OldText):]
	}
	return content, nil
}

// abbreviate shortens s to a single line for error messages.
func abbreviate(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + "..."
	}
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return s
}
