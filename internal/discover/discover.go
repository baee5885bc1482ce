// Package discover resolves a request scope into the concrete files a plan
// will touch.
package discover

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// defaultIgnores are skipped in every project.
var defaultIgnores = []string{"node_modules/", "dist/", "build/", ".git/", ".orca/", "vendor/"}

var sourceExts = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".go": true, ".py": true, ".css": true, ".scss": true, ".less": true,
}

var textExts = map[string]bool{
	".md": true, ".json": true, ".yaml": true, ".yml": true, ".html": true,
}

// Result is the resolved scope of a request.
type Result struct {
	// Sources are the code files to rewrite.
	Sources []string
	// Tests are test files in scope or matched to a source file.
	Tests []string
	// Docs are non-code files whose content mentions the goal.
	Docs []string
	// Scores holds the relevance score of every source file.
	Scores map[string]int
}

// All returns every file in the result, sorted and without duplicates.
func (r *Result) All() []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]string{r.Sources, r.Tests, r.Docs} {
		for _, f := range list {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Discoverer walks a project filesystem honoring ignore rules.
type Discoverer struct {
	fs     afero.Fs
	root   string
	ignore *ignore.GitIgnore
}

// New creates a discoverer for the project at root. Rules are read from
// .gitignore and .orca/ignore in addition to the built-in ignores.
func New(fs afero.Fs, root string) *Discoverer {
	rules := append([]string{}, defaultIgnores...)
	for _, name := range []string{".gitignore", filepath.Join(".orca", "ignore")} {
		lines, err := readIgnoreFile(fs, filepath.Join(root, name))
		if err == nil {
			rules = append(rules, lines...)
		}
	}
	return &Discoverer{
		fs:     fs,
		root:   root,
		ignore: ignore.CompileIgnoreLines(rules...),
	}
}

// readIgnoreFile reads a single ignore file and returns its lines.
func readIgnoreFile(fs afero.Fs, name string) ([]string, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// Ignored reports whether a project-relative path is excluded.
func (d *Discoverer) Ignored(rel string, isDir bool) bool {
	if isDir {
		rel += "/"
	}
	return d.ignore.MatchesPath(rel)
}

// Resolve expands scope roots into files and classifies them. Roots may be
// files, directories, or glob patterns; "**" matches any number of
// directories. Source files are capped at maxFiles (zero for no cap),
// keeping the most relevant to goal.
func (d *Discoverer) Resolve(ctx context.Context, scope []string, goal string, maxFiles int) (*Result, error) {
	if len(scope) == 0 {
		scope = []string{"."}
	}

	found := make(map[string]bool)
	for _, root := range scope {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		files, err := d.expand(root)
		if err != nil {
			return nil, fmt.Errorf("expand scope %q: %w", root, err)
		}
		for _, f := range files {
			found[f] = true
		}
	}

	keywords := Keywords(goal)
	patterns := Patterns(goal)
	res := &Result{Scores: make(map[string]int)}

	for f := range found {
		ext := strings.ToLower(path.Ext(f))
		switch {
		case IsTestFile(f) && sourceExts[ext]:
			res.Tests = append(res.Tests, f)
		case sourceExts[ext]:
			res.Sources = append(res.Sources, f)
			res.Scores[f] = d.score(f, keywords, patterns)
		case textExts[ext]:
			if len(keywords) > 0 && d.mentions(f, keywords) > 0 {
				res.Docs = append(res.Docs, f)
			}
		}
	}

	if maxFiles > 0 && len(res.Sources) > maxFiles {
		sort.Slice(res.Sources, func(i, j int) bool {
			a, b := res.Sources[i], res.Sources[j]
			if res.Scores[a] != res.Scores[b] {
				return res.Scores[a] > res.Scores[b]
			}
			return a < b
		})
		for _, dropped := range res.Sources[maxFiles:] {
			delete(res.Scores, dropped)
		}
		res.Sources = res.Sources[:maxFiles]
	}

	for _, t := range d.FindTests(res.Sources) {
		if !found[t] {
			res.Tests = append(res.Tests, t)
			found[t] = true
		}
	}

	sort.Strings(res.Sources)
	sort.Strings(res.Tests)
	sort.Strings(res.Docs)
	return res, nil
}

// expand turns one scope root into project-relative file paths.
func (d *Discoverer) expand(root string) ([]string, error) {
	root = filepath.ToSlash(filepath.Clean(root))
	if root == "" {
		root = "."
	}

	if strings.Contains(root, "**") {
		return d.expandRecursiveGlob(root)
	}
	if strings.ContainsAny(root, "*?[") {
		matches, err := afero.Glob(d.fs, filepath.Join(d.root, filepath.FromSlash(root)))
		if err != nil {
			return nil, err
		}
		var out []string
		for _, m := range matches {
			rel, err := d.rel(m)
			if err != nil {
				continue
			}
			files, err := d.expand(rel)
			if err != nil {
				return nil, err
			}
			out = append(out, files...)
		}
		return out, nil
	}

	abs := filepath.Join(d.root, filepath.FromSlash(root))
	info, err := d.fs.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[discover] scope root %s does not exist", root)
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		if d.Ignored(root, false) {
			return nil, nil
		}
		return []string{root}, nil
	}
	return d.walk(abs, func(string) bool { return true })
}

// expandRecursiveGlob handles "base/**/pattern" by walking base and
// matching pattern against each file name.
func (d *Discoverer) expandRecursiveGlob(root string) ([]string, error) {
	idx := strings.Index(root, "**")
	base := strings.TrimSuffix(root[:idx], "/")
	if base == "" {
		base = "."
	}
	pattern := strings.TrimPrefix(root[idx+2:], "/")
	if pattern == "" {
		pattern = "*"
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	abs := filepath.Join(d.root, filepath.FromSlash(base))
	return d.walk(abs, func(rel string) bool {
		ok, _ := path.Match(pattern, path.Base(rel))
		return ok
	})
}

// walk lists files under abs accepted by keep, skipping ignored paths.
func (d *Discoverer) walk(abs string, keep func(rel string) bool) ([]string, error) {
	var out []string
	err := afero.Walk(d.fs, abs, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel, rerr := d.rel(p)
		if rerr != nil {
			return nil
		}
		if info.IsDir() {
			if rel != "." && d.Ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Ignored(rel, false) || !keep(rel) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return out, nil
}

func (d *Discoverer) rel(abs string) (string, error) {
	rel, err := filepath.Rel(d.root, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func (d *Discoverer) read(rel string) (string, bool) {
	data, err := afero.ReadFile(d.fs, filepath.Join(d.root, filepath.FromSlash(rel)))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// mentions counts how many keywords appear in a file's content.
func (d *Discoverer) mentions(rel string, keywords []string) int {
	content, ok := d.read(rel)
	if !ok {
		return 0
	}
	content = strings.ToLower(content)
	n := 0
	for _, k := range keywords {
		if strings.Contains(content, k) {
			n++
		}
	}
	return n
}

// score ranks a source file against the goal: goal-driven name patterns
// weigh most, then keywords in the path, then keywords in the content.
func (d *Discoverer) score(rel string, keywords, patterns []string) int {
	s := 0
	base := path.Base(rel)
	for _, p := range patterns {
		if ok, _ := path.Match(p, base); ok {
			s += 3
			break
		}
	}
	lower := strings.ToLower(rel)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			s += 2
		}
	}
	return s + d.mentions(rel, keywords)
}

// FindTests returns existing test files that correspond to sources, probing
// sibling .test/.spec names, Go and Python conventions, and src/ mirrors
// under test/ and __tests__/.
func (d *Discoverer) FindTests(sources []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, src := range sources {
		for _, candidate := range testCandidates(src) {
			if seen[candidate] || candidate == src {
				continue
			}
			abs := filepath.Join(d.root, filepath.FromSlash(candidate))
			if info, err := d.fs.Stat(abs); err == nil && !info.IsDir() {
				seen[candidate] = true
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}

func testCandidates(src string) []string {
	ext := path.Ext(src)
	stem := strings.TrimSuffix(src, ext)
	dir, file := path.Split(stem)

	var c []string
	switch ext {
	case ".go":
		c = append(c, stem+"_test.go")
	case ".py":
		c = append(c, dir+"test_"+file+".py", stem+"_test.py")
	default:
		c = append(c, stem+".test"+ext, stem+".spec"+ext, dir+"__tests__/"+file+".test"+ext)
	}
	if strings.HasPrefix(src, "src/") || strings.Contains(src, "/src/") {
		c = append(c,
			strings.Replace(src, "src/", "test/", 1),
			strings.Replace(src, "src/", "__tests__/", 1),
		)
	}
	return c
}

// IsTestFile reports whether a path follows a common test file convention.
func IsTestFile(rel string) bool {
	base := path.Base(rel)
	switch {
	case strings.Contains(base, ".test."), strings.Contains(base, ".spec."):
		return true
	case strings.HasSuffix(base, "_test.go"), strings.HasSuffix(base, "_test.py"):
		return true
	case strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py"):
		return true
	}
	for _, part := range strings.Split(path.Dir(rel), "/") {
		if part == "__tests__" {
			return true
		}
	}
	return false
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true,
	"with": true, "from": true, "into": true, "this": true, "that": true,
	"all": true, "each": true, "every": true, "use": true, "make": true,
}

// Keywords extracts the meaningful words of a goal: lowercased, longer
// than three characters, stop words removed, non-alphanumerics stripped.
func Keywords(goal string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(goal)) {
		if len(w) <= 3 || stopWords[w] {
			continue
		}
		w = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, w)
		if w != "" && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// Patterns returns file name patterns suggested by words in the goal.
func Patterns(goal string) []string {
	g := strings.ToLower(goal)
	var p []string
	if strings.Contains(g, "component") {
		p = append(p, "*Component.tsx", "*Component.jsx")
	}
	if strings.Contains(g, "hook") {
		p = append(p, "use*.ts", "use*.tsx")
	}
	if strings.Contains(g, "service") {
		p = append(p, "*Service.ts", "*Service.js")
	}
	if strings.Contains(g, "util") {
		p = append(p, "*util*.ts", "*util*.js")
	}
	if strings.Contains(g, "test") {
		p = append(p, "*.test.ts", "*.test.tsx", "*.spec.ts", "*.spec.tsx")
	}
	return p
}
