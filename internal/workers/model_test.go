package workers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/orca/pkg/models"
)

// fakeProvider returns a canned reply and records the prompt.
type fakeProvider struct {
	reply string
	err   error

	system string
	prompt string
}

func (f *fakeProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.system, f.prompt = system, prompt
	return f.reply, f.err
}

func TestModelWorker(t *testing.T) {
	fs := setupFs(t, map[string]string{"src/a.ts": "export const a = 1;\n"})
	p := &fakeProvider{reply: "Here you go:\n```json\n" + `{
  "edits": [
    {"file_path": "src/a.ts", "edits": [{"old_text": "a = 1", "new_text": "a = 2"}]},
    {"file_path": "src/new.ts", "is_new_file": true, "edits": [{"new_text": "export const n = 1;"}]},
    {"file_path": "src/other.ts", "edits": [{"old_text": "x", "new_text": "y"}]}
  ],
  "warnings": ["renamed nothing"]
}` + "\n```"}
	u := unit(models.CapabilityRewrite, "src/a.ts")
	u.Constraints.PreserveAPI = true

	res, err := NewModelWorker(fs, root, p, 0).Run(context.Background(), u, &models.CodebaseContext{ProjectType: models.ProjectNode, Frameworks: []string{"express"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(res.Edits) != 2 {
		t.Fatalf("Edits = %+v, want 2", res.Edits)
	}
	got := renderAll(t, fs, res)
	if got["src/a.ts"] != "export const a = 2;\n" || got["src/new.ts"] != "export const n = 1;" {
		t.Errorf("rendered = %q", got)
	}
	if len(res.Warnings) != 2 {
		t.Errorf("Warnings = %v, want model note and dropped out-of-scope edit", res.Warnings)
	}
	if res.Status != models.ResultSuccess {
		t.Errorf("Status = %s, want success", res.Status)
	}

	for _, want := range []string{"Task: test unit", "keep every exported name", "=== src/a.ts ===", "frameworks express"} {
		if !strings.Contains(p.prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, p.prompt)
		}
	}
	if p.system != systemPrompts[models.CapabilityRewrite] {
		t.Errorf("system prompt = %q", p.system)
	}
}

func TestModelWorker_NotApplicableEdit(t *testing.T) {
	fs := setupFs(t, map[string]string{"a.ts": "x\n"})
	p := &fakeProvider{reply: `{"edits":[{"file_path":"a.ts","edits":[{"old_text":"nope","new_text":"y"}]}]}`}

	res, err := NewModelWorker(fs, root, p, 0).Run(context.Background(), unit(models.CapabilityRewrite, "a.ts"), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Status != models.ResultFailed || len(res.Errors) != 1 {
		t.Errorf("result = %+v, want failed with one error", res)
	}
}

func TestModelWorker_RejectsPathsOutsideRoot(t *testing.T) {
	fs := setupFs(t, map[string]string{"a.ts": "x\n"})
	p := &fakeProvider{reply: `{"edits":[
		{"file_path":"../outside.txt","is_new_file":true,"edits":[{"new_text":"pwned"}]},
		{"file_path":"a.ts","edits":[{"old_text":"x","new_text":"y"}]}
	]}`}

	res, err := NewModelWorker(fs, root, p, 0).Run(context.Background(), unit(models.CapabilityRewrite, "a.ts"), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Edits) != 1 || res.Edits[0].FilePath != "a.ts" {
		t.Errorf("Edits = %+v, want only a.ts", res.Edits)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "escapes project root") {
		t.Errorf("Errors = %v, want one path escape", res.Errors)
	}
	if res.Status != models.ResultPartial {
		t.Errorf("Status = %s, want partial", res.Status)
	}
}

func TestModelWorker_ProviderError(t *testing.T) {
	fs := setupFs(t, map[string]string{"a.ts": "x\n"})
	boom := errors.New("rate limited")
	_, err := NewModelWorker(fs, root, &fakeProvider{err: boom}, 0).Run(context.Background(), unit(models.CapabilityRewrite, "a.ts"), nil)
	if !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want provider error", err)
	}
}

func TestModelWorker_SkipsLargeFiles(t *testing.T) {
	fs := setupFs(t, map[string]string{"big.ts": strings.Repeat("x", 100)})
	p := &fakeProvider{reply: `{"edits":[]}`}
	res, err := NewModelWorker(fs, root, p, 10).Run(context.Background(), unit(models.CapabilityDocSync, "big.ts"), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.Contains(p.prompt, "=== big.ts ===") {
		t.Error("oversized file included in prompt")
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one size warning", res.Warnings)
	}
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantEdits int
		wantErr   bool
	}{
		{"plain", `{"edits":[{"file_path":"a","edits":[]}]}`, 1, false},
		{"fenced", "```json\n{\"edits\":[]}\n```", 0, false},
		{"prose", "Sure! {\"edits\":[{\"file_path\":\"a\"}]} Done.", 1, false},
		{"no json", "I cannot do that.", 0, true},
		{"broken json", `{"edits": [}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseReply(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseReply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(r.Edits) != tt.wantEdits {
				t.Errorf("ParseReply() edits = %d, want %d", len(r.Edits), tt.wantEdits)
			}
		})
	}
}

func TestBedrockModel(t *testing.T) {
	if got := BedrockModel(anthropic.ModelClaudeSonnet4_20250514); got != "us.anthropic.claude-sonnet-4-20250514-v1:0" {
		t.Errorf("BedrockModel(sonnet 4) = %s", got)
	}
	if got := BedrockModel("custom-model"); got != "custom-model" {
		t.Errorf("BedrockModel(custom) = %s, want unchanged", got)
	}
}
