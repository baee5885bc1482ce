package validation

import (
	"context"
	"encoding/json"
	"go/parser"
	"go/scanner"
	"go/token"
	"path"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/orca/pkg/models"
)

// SyntaxCheck parses proposed content by file type: JSON, YAML, and Go
// are parsed fully; JavaScript, TypeScript, and stylesheets are checked
// for balanced brackets.
type SyntaxCheck struct{}

func (SyntaxCheck) Name() string { return "syntax" }

func (SyntaxCheck) Stage() Stage { return StagePre }

func (SyntaxCheck) Run(ctx context.Context, in *Input) Findings {
	var f Findings
	for _, file := range sortedKeys(in.Rendered) {
		if ctx.Err() != nil {
			f.warnf(models.IssueSyntax, "", 0, "syntax check interrupted: %v", ctx.Err())
			return f
		}
		content := in.Rendered[file]
		switch ext := strings.ToLower(path.Ext(file)); ext {
		case ".json":
			var v interface{}
			if err := json.Unmarshal([]byte(content), &v); err != nil {
				line := 0
				if se, ok := err.(*json.SyntaxError); ok {
					line = lineAt(content, int(se.Offset))
				}
				f.errorf(models.IssueSyntax, file, line, "invalid JSON: %v", err)
			}
		case ".yaml", ".yml":
			var v interface{}
			if err := yaml.Unmarshal([]byte(content), &v); err != nil {
				f.errorf(models.IssueSyntax, file, 0, "invalid YAML: %v", err)
			}
		case ".go":
			if _, err := parser.ParseFile(token.NewFileSet(), file, content, parser.AllErrors); err != nil {
				if list, ok := err.(scanner.ErrorList); ok {
					for _, e := range list {
						f.errorf(models.IssueSyntax, file, e.Pos.Line, "%s", e.Msg)
					}
				} else {
					f.errorf(models.IssueSyntax, file, 0, "%v", err)
				}
			}
		case ".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs":
			if line, msg := checkBrackets(content, scriptMode); msg != "" {
				f.errorf(models.IssueSyntax, file, line, "%s", msg)
			}
		case ".css":
			if line, msg := checkBrackets(content, cssMode); msg != "" {
				f.errorf(models.IssueSyntax, file, line, "%s", msg)
			}
		case ".scss", ".less":
			if line, msg := checkBrackets(content, preprocessMode); msg != "" {
				f.errorf(models.IssueSyntax, file, line, "%s", msg)
			}
		}
	}
	return f
}

// bracketMode selects the comment and literal syntax checkBrackets knows.
type bracketMode struct {
	lineComments bool
	cssURLs      bool
}

var (
	scriptMode     = bracketMode{lineComments: true}
	cssMode        = bracketMode{cssURLs: true}
	preprocessMode = bracketMode{lineComments: true, cssURLs: true}
)

// checkBrackets reports the first unbalanced bracket in content, skipping
// string literals and comments. A quote with no closing partner on the same
// line is treated as a plain character, as with apostrophes in JSX text.
// It returns an empty message when balanced.
func checkBrackets(content string, mode bracketMode) (int, string) {
	type open struct {
		ch   byte
		line int
	}
	pairs := map[byte]byte{')': '(', ']': '[', '}': '{'}
	var stack []open
	line := 1

	for i := 0; i < len(content); i++ {
		c := content[i]
		switch {
		case c == '\n':
			line++
		case c == '/' && i+1 < len(content) && content[i+1] == '*':
			end := strings.Index(content[i+2:], "*/")
			if end < 0 {
				return line, "unterminated block comment"
			}
			line += strings.Count(content[i:i+2+end], "\n")
			i += end + 3
		case mode.lineComments && c == '/' && i+1 < len(content) && content[i+1] == '/':
			for i < len(content) && content[i] != '\n' {
				i++
			}
			i--
		case mode.cssURLs && strings.HasPrefix(content[i:], "url("):
			if end := strings.IndexByte(content[i:], ')'); end >= 0 && !strings.Contains(content[i:i+end], "\n") {
				i += end
			}
		case c == '"' || c == '\'' || c == '`':
			j, lines := i+1, 0
			for ; j < len(content) && content[j] != c; j++ {
				if content[j] == '\\' && j+1 < len(content) {
					j++
				}
				if content[j] == '\n' {
					if c != '`' {
						break
					}
					lines++
				}
			}
			switch {
			case j < len(content) && content[j] == c:
				line += lines
				i = j
			case c == '`':
				return line, "unterminated template literal"
			}
		case c == '(' || c == '[' || c == '{':
			stack = append(stack, open{ch: c, line: line})
		case c == ')' || c == ']' || c == '}':
			if len(stack) == 0 || stack[len(stack)-1].ch != pairs[c] {
				return line, "unexpected '" + string(c) + "'"
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return top.line, "unclosed '" + string(top.ch) + "'"
	}
	return 0, ""
}

// lineAt returns the 1-based line of a byte offset.
func lineAt(content string, offset int) int {
	if offset > len(content) {
		offset = len(content)
	}
	return strings.Count(content[:offset], "\n") + 1
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
