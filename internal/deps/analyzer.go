package deps

import (
	"context"
	"log"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"
)

// Record is the parsed reference information for one file.
type Record struct {
	// File is the slash-separated path relative to the project root.
	File string `json:"file"`
	// Imports are the raw specifiers in source order.
	Imports []string `json:"imports,omitempty"`
	// Exports are the names the file exports.
	Exports []string `json:"exports,omitempty"`
	// Dependencies are the in-set files the relative imports resolve to.
	Dependencies []string `json:"dependencies,omitempty"`
	// Unresolved are relative imports that matched no file in the set.
	Unresolved []string `json:"unresolved,omitempty"`
}

// Graph is the result of analyzing a file set.
type Graph struct {
	Records map[string]*Record
	// Direct maps each file to the files it imports.
	Direct map[string][]string
	// Transitive maps each file to every file reachable from it.
	Transitive map[string][]string
}

// parsed is the set-independent part of a record, cached per file.
type parsed struct {
	imports []string
	exports []string
}

// Analyzer parses files from a filesystem rooted at a project directory.
// Parse results are cached per file until ClearCache is called.
type Analyzer struct {
	fs   afero.Fs
	root string

	mu    sync.Mutex
	cache map[string]*parsed
}

// NewAnalyzer creates an analyzer reading project files under root.
func NewAnalyzer(fs afero.Fs, root string) *Analyzer {
	return &Analyzer{
		fs:    fs,
		root:  root,
		cache: make(map[string]*parsed),
	}
}

// Analyze parses every file in files (project-relative, slash-separated)
// and builds direct and transitive reference maps over the set.
// Unreadable files contribute an empty record.
func (a *Analyzer) Analyze(ctx context.Context, files []string) (*Graph, error) {
	inSet := make(map[string]bool, len(files))
	for _, f := range files {
		inSet[f] = true
	}
	exists := func(p string) bool { return inSet[p] }

	g := &Graph{
		Records: make(map[string]*Record, len(files)),
		Direct:  make(map[string][]string, len(files)),
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := a.parse(f)
		rec := &Record{File: f, Imports: p.imports, Exports: p.exports}
		seen := make(map[string]bool)
		for _, spec := range p.imports {
			if !IsRelative(spec) {
				continue
			}
			target, ok := Resolve(f, spec, exists)
			if !ok {
				rec.Unresolved = append(rec.Unresolved, spec)
				continue
			}
			if !seen[target] {
				seen[target] = true
				rec.Dependencies = append(rec.Dependencies, target)
			}
		}
		g.Records[f] = rec
		g.Direct[f] = rec.Dependencies
	}

	g.Transitive = closure(g.Direct)
	return g, nil
}

// Record returns the cached parse of one file without resolving it against a set.
func (a *Analyzer) Record(file string) *Record {
	p := a.parse(file)
	return &Record{File: file, Imports: p.imports, Exports: p.exports}
}

// ClearCache drops all cached parse results.
func (a *Analyzer) ClearCache() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache = make(map[string]*parsed)
}

func (a *Analyzer) parse(file string) *parsed {
	a.mu.Lock()
	if p, ok := a.cache[file]; ok {
		a.mu.Unlock()
		return p
	}
	a.mu.Unlock()

	p := &parsed{}
	if Language(file) != "" {
		data, err := afero.ReadFile(a.fs, filepath.Join(a.root, filepath.FromSlash(file)))
		if err != nil {
			// Failed reads are not cached so a later run can retry.
			log.Printf("[deps] failed to analyze %s: %v", file, err)
			return p
		}
		content := string(data)
		p.imports = ParseImports(file, content)
		p.exports = ParseExports(file, content)
	}

	a.mu.Lock()
	a.cache[file] = p
	a.mu.Unlock()
	return p
}

// closure expands direct references to a fixed point: each file's set is
// repeatedly unioned with the sets of the files it references until no set
// grows.
func closure(direct map[string][]string) map[string][]string {
	sets := make(map[string]map[string]bool, len(direct))
	for f, deps := range direct {
		s := make(map[string]bool, len(deps))
		for _, d := range deps {
			s[d] = true
		}
		sets[f] = s
	}

	for changed := true; changed; {
		changed = false
		for _, s := range sets {
			before := len(s)
			for d := range s {
				for td := range sets[d] {
					s[td] = true
				}
			}
			if len(s) > before {
				changed = true
			}
		}
	}

	out := make(map[string][]string, len(sets))
	for f, s := range sets {
		list := make([]string, 0, len(s))
		for d := range s {
			list = append(list, d)
		}
		sort.Strings(list)
		out[f] = list
	}
	return out
}

// Files returns the analyzed files in sorted order.
func (g *Graph) Files() []string {
	files := make([]string, 0, len(g.Direct))
	for f := range g.Direct {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Cycles returns every reference cycle found by a depth-first walk. Each
// cycle runs from the first occurrence of the repeated file to the file
// itself, which appears at both ends.
func (g *Graph) Cycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var walk func(file string, trail []string)
	walk = func(file string, trail []string) {
		visited[file] = true
		onStack[file] = true
		trail = append(trail, file)

		for _, dep := range g.Direct[file] {
			switch {
			case !visited[dep]:
				walk(dep, append([]string(nil), trail...))
			case onStack[dep]:
				for i, f := range trail {
					if f == dep {
						cycle := append(append([]string(nil), trail[i:]...), dep)
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		onStack[file] = false
	}

	for _, f := range g.Files() {
		if !visited[f] {
			walk(f, nil)
		}
	}
	return cycles
}

// Dependents returns the files that directly reference file, sorted.
func (g *Graph) Dependents(file string) []string {
	var out []string
	for _, f := range g.Files() {
		for _, d := range g.Direct[f] {
			if d == file {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// Exports returns the exported names of file, or nil when unknown.
func (g *Graph) Exports(file string) []string {
	if rec, ok := g.Records[file]; ok {
		return rec.Exports
	}
	return nil
}
