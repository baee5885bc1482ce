package validation

import (
	"context"
	"testing"

	"github.com/ShayCichocki/orca/pkg/models"
)

func TestCheckBrackets(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		mode     bracketMode
		wantLine int
		wantMsg  string
	}{
		{"balanced", "function f(a) { return [a]; }", scriptMode, 0, ""},
		{"unclosed brace", "function f() {\n  return 1;\n", scriptMode, 1, "unclosed '{'"},
		{"stray paren", "const x = 1);", scriptMode, 1, "unexpected ')'"},
		{"mismatched", "f([)]", scriptMode, 1, "unexpected ')'"},
		{"brackets in strings", `const s = "}{"; const t = '(';`, scriptMode, 0, ""},
		{"brackets in comments", "// }\n/* ( */\nconst a = {};", scriptMode, 0, ""},
		{"template literal", "const s = `line\n${x}\n}`;\nf(", scriptMode, 4, "unclosed '('"},
		{"apostrophe in jsx text", "return (<p>Don't {name}</p>);", scriptMode, 0, ""},
		{"unterminated template", "const s = `oops", scriptMode, 1, "unterminated template literal"},
		{"css url with slashes", "a { background: url(http://x.test/a.png); }", cssMode, 0, ""},
		{"css unclosed rule", ".a {\n  color: red;\n", cssMode, 1, "unclosed '{'"},
		{"scss line comment", "// }\n.a { }", preprocessMode, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, msg := checkBrackets(tt.content, tt.mode)
			if line != tt.wantLine || msg != tt.wantMsg {
				t.Errorf("checkBrackets() = (%d, %q), want (%d, %q)", line, msg, tt.wantLine, tt.wantMsg)
			}
		})
	}
}

func TestSyntaxCheck(t *testing.T) {
	in := &Input{Rendered: map[string]string{
		"config.json":   "{\n  \"a\": 1,\n}",
		"ok.json":       `{"a": [1, 2]}`,
		"deploy.yaml":   "a: [1, 2\n",
		"ok.yml":        "a: 1\nb:\n  - x\n",
		"main.go":       "package main\n\nfunc main() {\n",
		"ok.go":         "package ok\n\nfunc F() int { return 1 }\n",
		"src/App.tsx":   "export function App() { return (<div/>; }",
		"styles/ok.css": ".a { color: red; }",
		"README.md":     "(unbalanced is fine here",
	}}

	f := SyntaxCheck{}.Run(context.Background(), in)

	got := make(map[string]int)
	for _, e := range f.Errors {
		if e.Kind != models.IssueSyntax {
			t.Errorf("issue kind = %s, want syntax", e.Kind)
		}
		got[e.File]++
	}
	for _, file := range []string{"config.json", "deploy.yaml", "main.go", "src/App.tsx"} {
		if got[file] == 0 {
			t.Errorf("expected a syntax error for %s, got %v", file, f.Errors)
		}
	}
	for _, file := range []string{"ok.json", "ok.yml", "ok.go", "styles/ok.css", "README.md"} {
		if got[file] != 0 {
			t.Errorf("unexpected syntax error for %s: %v", file, f.Errors)
		}
	}
}

func TestLineAt(t *testing.T) {
	if got := lineAt("a\nb\nc", 4); got != 3 {
		t.Errorf("lineAt() = %d, want 3", got)
	}
	if got := lineAt("abc", 99); got != 1 {
		t.Errorf("lineAt(past end) = %d, want 1", got)
	}
}
