package discover

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/afero"
)

const root = "/proj"

func setupFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fs, filepath.Join(root, name), []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return fs
}

func TestResolve_DirectoryScope(t *testing.T) {
	fs := setupFs(t, map[string]string{
		"lib/widgets/a.ts":              "export const a = 1;",
		"lib/widgets/b.ts":              "export const b = 2;",
		"lib/other/c.ts":                "export const c = 3;",
		"lib/widgets/node_modules/x.js": "module.exports = 1;",
	})

	res, err := New(fs, root).Resolve(context.Background(), []string{"lib/widgets"}, "rename widget helpers", 0)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	want := []string{"lib/widgets/a.ts", "lib/widgets/b.ts"}
	if !reflect.DeepEqual(res.Sources, want) {
		t.Errorf("Sources = %v, want %v", res.Sources, want)
	}
	if len(res.Tests) != 0 {
		t.Errorf("Tests = %v, want none", res.Tests)
	}
}

func TestResolve_TestsAndDocs(t *testing.T) {
	fs := setupFs(t, map[string]string{
		"src/Button.tsx":           "export function Button() {}",
		"src/Button.test.tsx":      "it('renders', () => {});",
		"src/Card.tsx":             "export function Card() {}",
		"test/Card.tsx":            "it('renders card', () => {});",
		"src/README.md":            "The Button component renders a button.",
		"src/CHANGELOG.md":         "Nothing relevant here.",
		"src/__tests__/helpers.ts": "export const h = 1;",
	})

	res, err := New(fs, root).Resolve(context.Background(), []string{"src"}, "Convert Button to hooks", 0)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if want := []string{"src/Button.tsx", "src/Card.tsx"}; !reflect.DeepEqual(res.Sources, want) {
		t.Errorf("Sources = %v, want %v", res.Sources, want)
	}
	if want := []string{"src/Button.test.tsx", "src/__tests__/helpers.ts", "test/Card.tsx"}; !reflect.DeepEqual(res.Tests, want) {
		t.Errorf("Tests = %v, want %v", res.Tests, want)
	}
	if want := []string{"src/README.md"}; !reflect.DeepEqual(res.Docs, want) {
		t.Errorf("Docs = %v, want %v", res.Docs, want)
	}
	if len(res.All()) != 6 {
		t.Errorf("All() = %v, want 6 files", res.All())
	}
}

func TestResolve_GlobScopes(t *testing.T) {
	fs := setupFs(t, map[string]string{
		"src/a/useThing.ts":  "",
		"src/b/useOther.tsx": "",
		"src/b/plain.ts":     "",
		"src/top.js":         "",
	})
	d := New(fs, root)

	res, err := d.Resolve(context.Background(), []string{"src/**/use*"}, "", 0)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if want := []string{"src/a/useThing.ts", "src/b/useOther.tsx"}; !reflect.DeepEqual(res.Sources, want) {
		t.Errorf("recursive glob Sources = %v, want %v", res.Sources, want)
	}

	res, err = d.Resolve(context.Background(), []string{"src/*.js"}, "", 0)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if want := []string{"src/top.js"}; !reflect.DeepEqual(res.Sources, want) {
		t.Errorf("glob Sources = %v, want %v", res.Sources, want)
	}
}

func TestResolve_MaxFilesKeepsMostRelevant(t *testing.T) {
	fs := setupFs(t, map[string]string{
		"src/a.ts":         "nothing",
		"src/b.ts":         "nothing",
		"src/useToggle.ts": "export function useToggle() {}",
		"src/toggle.ts":    "toggle state",
	})

	res, err := New(fs, root).Resolve(context.Background(), []string{"src"}, "extract toggle hook", 2)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if want := []string{"src/toggle.ts", "src/useToggle.ts"}; !reflect.DeepEqual(res.Sources, want) {
		t.Errorf("Sources = %v, want %v", res.Sources, want)
	}
}

func TestResolve_IgnoreFiles(t *testing.T) {
	fs := setupFs(t, map[string]string{
		".gitignore":       "generated/\n",
		".orca/ignore":     "*.gen.ts\n",
		"src/keep.ts":      "",
		"src/x.gen.ts":     "",
		"generated/out.ts": "",
		"dist/bundle.js":   "",
	})

	res, err := New(fs, root).Resolve(context.Background(), []string{"."}, "", 0)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if want := []string{"src/keep.ts"}; !reflect.DeepEqual(res.Sources, want) {
		t.Errorf("Sources = %v, want %v", res.Sources, want)
	}
}

func TestResolve_MissingRoot(t *testing.T) {
	res, err := New(afero.NewMemMapFs(), root).Resolve(context.Background(), []string{"nope"}, "", 0)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(res.All()) != 0 {
		t.Errorf("All() = %v, want empty", res.All())
	}
}

func TestKeywords(t *testing.T) {
	got := Keywords("Convert all class components to hooks, and the (legacy) API")
	want := []string{"convert", "class", "components", "hooks", "legacy"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords() = %v, want %v", got, want)
	}
}

func TestPatterns(t *testing.T) {
	got := Patterns("Move util helpers into a service")
	want := []string{"*Service.ts", "*Service.js", "*util*.ts", "*util*.js"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Patterns() = %v, want %v", got, want)
	}
	if got := Patterns("rename"); got != nil {
		t.Errorf("Patterns(rename) = %v, want nil", got)
	}
}

func TestIsTestFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"src/Button.test.tsx", true},
		{"src/Button.spec.ts", true},
		{"pkg/handler_test.go", true},
		{"tests/test_models.py", true},
		{"src/__tests__/util.ts", true},
		{"src/Button.tsx", false},
		{"src/testing.ts", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsTestFile(tt.path); got != tt.want {
				t.Errorf("IsTestFile(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
