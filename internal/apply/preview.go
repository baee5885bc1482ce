package apply

import (
	"os"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/orca/internal/textdiff"
	"github.com/ShayCichocki/orca/pkg/models"
)

// contextLines is the number of unchanged lines shown around each change.
const contextLines = 3

// FileDiff is the rendered difference for one file of a change set.
type FileDiff struct {
	Path    string
	IsNew   bool
	Added   int
	Removed int
	// Unified is the diff in unified format. Empty when nothing changes.
	Unified string
	// Error is set when the edits could not be rendered.
	Error string
}

// Preview renders what applying cs would change, without writing anything.
func (m *Manager) Preview(cs *models.ChangeSet) []FileDiff {
	out := make([]FileDiff, 0, len(cs.Edits))
	for _, fe := range cs.Edits {
		d := FileDiff{Path: fe.FilePath, IsNew: fe.IsNewFile}
		if err := models.CheckPath(fe.FilePath); err != nil {
			d.Error = err.Error()
			out = append(out, d)
			continue
		}

		original := ""
		content, err := afero.ReadFile(m.fs, m.abs(fe.FilePath))
		switch {
		case err == nil:
			original = string(content)
			d.IsNew = false
		case os.IsNotExist(err) && fe.IsNewFile:
		default:
			d.Error = err.Error()
			out = append(out, d)
			continue
		}

		rendered, err := fe.Render(original)
		if err != nil {
			d.Error = err.Error()
			out = append(out, d)
			continue
		}

		lines := textdiff.Lines(original, rendered)
		d.Added, d.Removed = textdiff.Stats(lines)
		d.Unified = textdiff.Unified(fe.FilePath, d.IsNew, lines, contextLines)
		out = append(out, d)
	}
	return out
}
