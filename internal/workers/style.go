package workers

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/orca/pkg/models"
)

// StyleWorker strips trailing whitespace and adds a missing final newline.
type StyleWorker struct {
	files fileReader
}

// NewStyleWorker creates a style worker reading through fs.
func NewStyleWorker(fs afero.Fs, root string) *StyleWorker {
	return &StyleWorker{files: fileReader{fs: fs, root: root}}
}

// Normalize returns content with trailing whitespace removed from every
// line and exactly one final newline. Empty content is left alone.
func Normalize(content string) string {
	if content == "" {
		return content
	}
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	out := strings.Join(lines, "\n")
	return strings.TrimRight(out, "\n") + "\n"
}

func (w *StyleWorker) Run(ctx context.Context, unit *models.WorkUnit, cb *models.CodebaseContext) (*models.WorkResult, error) {
	res := newResult(unit)
	before := make(map[string]string)
	after := make(map[string]string)

	for _, file := range unit.Files {
		if canceled(ctx, res) {
			break
		}
		content, exists, err := w.files.read(file)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("read %s: %v", file, err))
			continue
		}
		if !exists {
			continue
		}
		normalized := Normalize(content)
		if fe, changed := contentEdit(file, content, normalized, false); changed {
			res.Edits = append(res.Edits, fe)
			before[file], after[file] = content, normalized
		}
	}

	tally(res, before, after)
	return finish(res), nil
}
