package planner

import (
	"path"
	"regexp"
	"sort"

	"github.com/ShayCichocki/orca/internal/deps"
)

var componentNameRe = regexp.MustCompile(`^([A-Z][a-zA-Z]*)`)

// Batch is a cohesive group of files edited together.
type Batch struct {
	Name    string
	Sources []string
	Tests   []string
}

// ComponentName returns the group name of a file: the leading capitalized
// identifier of its file name, else its parent directory name, else
// "General".
func ComponentName(file string) string {
	if m := componentNameRe.FindStringSubmatch(path.Base(file)); m != nil {
		return m[1]
	}
	if dir := path.Base(path.Dir(file)); dir != "." && dir != "/" {
		return dir
	}
	return "General"
}

// GroupFiles groups sources by component name and merges groups whose files
// share a reference cycle. Batches are returned sorted by name.
func GroupFiles(sources []string, cycles [][]string) []*Batch {
	owner := make(map[string]string, len(sources))
	for _, f := range sources {
		owner[f] = ComponentName(f)
	}

	u := newUnion()
	for _, name := range owner {
		u.add(name)
	}
	for _, cycle := range cycles {
		var first string
		for _, f := range cycle {
			name, ok := owner[f]
			if !ok {
				continue
			}
			if first == "" {
				first = name
				continue
			}
			u.join(first, name)
		}
	}

	byName := make(map[string]*Batch)
	for _, f := range sources {
		name := u.find(owner[f])
		b, ok := byName[name]
		if !ok {
			b = &Batch{Name: name}
			byName[name] = b
		}
		b.Sources = append(b.Sources, f)
	}

	batches := make([]*Batch, 0, len(byName))
	for _, b := range byName {
		sort.Strings(b.Sources)
		batches = append(batches, b)
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].Name < batches[j].Name })
	return batches
}

// AssignTests attaches each test file to a batch: first the batch owning a
// source the test references, then the batch with the same component name,
// then the first batch.
func AssignTests(batches []*Batch, tests []string, g *deps.Graph) {
	if len(batches) == 0 {
		return
	}
	bySource := make(map[string]*Batch)
	byName := make(map[string]*Batch, len(batches))
	for _, b := range batches {
		byName[b.Name] = b
		for _, f := range b.Sources {
			bySource[f] = b
		}
	}

	for _, t := range tests {
		target := batches[0]
		if b, ok := byName[ComponentName(t)]; ok {
			target = b
		}
		if g != nil {
			for _, dep := range g.Direct[t] {
				if b, ok := bySource[dep]; ok {
					target = b
					break
				}
			}
		}
		target.Tests = append(target.Tests, t)
	}
	for _, b := range batches {
		sort.Strings(b.Tests)
	}
}

// union is a union-find over batch names. The root of a set is its
// lexically smallest member.
type union struct {
	parent map[string]string
}

func newUnion() *union {
	return &union{parent: make(map[string]string)}
}

func (u *union) add(name string) {
	if _, ok := u.parent[name]; !ok {
		u.parent[name] = name
	}
}

func (u *union) find(name string) string {
	for u.parent[name] != name {
		u.parent[name] = u.parent[u.parent[name]]
		name = u.parent[name]
	}
	return name
}

func (u *union) join(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
