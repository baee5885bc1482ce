package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/orca/pkg/models"
)

// defaultMaxFileBytes caps the content of one file included in a prompt.
const defaultMaxFileBytes = 64 * 1024

// errNoJSON is returned when a model reply carries no JSON object.
var errNoJSON = errors.New("reply contains no JSON object")

// reply is the JSON document the model is asked to return.
type reply struct {
	Edits    []models.FileEdit `json:"edits"`
	Warnings []string          `json:"warnings,omitempty"`
}

// ModelWorker asks a language model for the edits of a unit.
type ModelWorker struct {
	files        fileReader
	provider     Provider
	maxFileBytes int
}

// NewModelWorker creates a model worker. maxFileBytes <= 0 selects the default cap.
func NewModelWorker(fs afero.Fs, root string, p Provider, maxFileBytes int) *ModelWorker {
	if maxFileBytes <= 0 {
		maxFileBytes = defaultMaxFileBytes
	}
	return &ModelWorker{files: fileReader{fs: fs, root: root}, provider: p, maxFileBytes: maxFileBytes}
}

var systemPrompts = map[models.Capability]string{
	models.CapabilityRewrite:  "You are a careful software engineer. Rewrite the given source files to accomplish the task. Change only what the task requires.",
	models.CapabilityTestSync: "You are a careful software engineer. Update the given test files so they match the described change to the code under test.",
	models.CapabilityDocSync:  "You are a technical writer. Update the given documentation and doc comments so they describe the described change accurately.",
}

const replyFormat = `Respond with a single JSON object and nothing else:
{"edits":[{"file_path":"<path>","is_new_file":false,"edits":[{"old_text":"<exact text to replace>","new_text":"<replacement>"}]}],"warnings":["<optional note>"]}
old_text must be copied exactly from the current file content and must be long enough to be unique.
For a new file set is_new_file to true and put the whole content in a single edit with an empty old_text.`

func (w *ModelWorker) Run(ctx context.Context, unit *models.WorkUnit, cb *models.CodebaseContext) (*models.WorkResult, error) {
	res := newResult(unit)

	contents := make(map[string]string, len(unit.Files))
	var files []string
	for _, file := range unit.Files {
		content, exists, err := w.files.read(file)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("read %s: %v", file, err))
			continue
		}
		if !exists {
			continue
		}
		if len(content) > w.maxFileBytes {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s skipped: %d bytes exceeds the prompt limit", file, len(content)))
			continue
		}
		contents[file] = content
		files = append(files, file)
	}

	system, ok := systemPrompts[unit.Capability]
	if !ok {
		system = systemPrompts[models.CapabilityRewrite]
	}
	text, err := w.provider.Complete(ctx, system, BuildPrompt(unit, cb, files, contents))
	if err != nil {
		return nil, err
	}

	r, err := ParseReply(text)
	if err != nil {
		return nil, fmt.Errorf("parse model reply: %w", err)
	}
	res.Warnings = append(res.Warnings, r.Warnings...)

	after := make(map[string]string)
	for _, fe := range r.Edits {
		if err := models.CheckPath(fe.FilePath); err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		original, known := contents[fe.FilePath]
		if !known && !fe.IsNewFile {
			res.Warnings = append(res.Warnings, fmt.Sprintf("dropped edits to %s: not a target of this unit", fe.FilePath))
			continue
		}
		rendered, err := fe.Render(original)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		res.Edits = append(res.Edits, fe)
		after[fe.FilePath] = rendered
	}

	tally(res, contents, after)
	return finish(res), nil
}

// BuildPrompt renders the user prompt for a unit.
func BuildPrompt(unit *models.WorkUnit, cb *models.CodebaseContext, files []string, contents map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", unit.Description)
	if unit.Goal != "" {
		fmt.Fprintf(&b, "Goal: %s\n", unit.Goal)
	}

	c := unit.Constraints
	var rules []string
	if c.PreserveAPI {
		rules = append(rules, "keep every exported name and signature")
	}
	if !c.AllowBreakingChanges {
		rules = append(rules, "do not introduce breaking changes")
	}
	if c.EnforceStyle {
		rules = append(rules, "follow the existing code style")
	}
	if len(rules) > 0 {
		fmt.Fprintf(&b, "Constraints: %s\n", strings.Join(rules, "; "))
	}

	if cb != nil {
		fmt.Fprintf(&b, "Project: %s", cb.ProjectType)
		if len(cb.Languages) > 0 {
			fmt.Fprintf(&b, ", languages %s", strings.Join(cb.Languages, ", "))
		}
		if len(cb.Frameworks) > 0 {
			fmt.Fprintf(&b, ", frameworks %s", strings.Join(cb.Frameworks, ", "))
		}
		if cb.TestFramework != "" {
			fmt.Fprintf(&b, ", tests with %s", cb.TestFramework)
		}
		if cb.StyleGuide != "" {
			fmt.Fprintf(&b, ", style %s", cb.StyleGuide)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nFiles:\n")
	for _, f := range files {
		fmt.Fprintf(&b, "=== %s ===\n%s\n", f, contents[f])
	}
	b.WriteString("\n")
	b.WriteString(replyFormat)
	return b.String()
}

// ParseReply extracts the JSON reply from model output, tolerating code
// fences and surrounding prose.
func ParseReply(text string) (*reply, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, errNoJSON
	}
	var r reply
	if err := json.Unmarshal([]byte(text[start:end+1]), &r); err != nil {
		return nil, err
	}
	return &r, nil
}
