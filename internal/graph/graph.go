// Package graph provides the dependency graph over the work units of a plan.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ShayCichocki/orca/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found among work units.
var ErrCycleDetected = errors.New("circular dependency detected")

// CycleError reports the units that form a dependency cycle. The path ends
// with the unit that closes the cycle.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

// DependencyGraph is a directed graph of work units where edges point from
// a unit to the units it waits on.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps unit ID to the unit.
	nodes map[string]*models.WorkUnit
	// index maps unit ID to its position in the plan, for stable ordering.
	index map[string]int
	// edges maps unit ID to the IDs it depends on that exist in the graph.
	edges map[string][]string
	// missing maps unit ID to dependency IDs absent from the graph.
	missing map[string][]string
	// completed tracks which units have produced a result.
	completed map[string]bool
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:     make(map[string]*models.WorkUnit),
		index:     make(map[string]int),
		edges:     make(map[string][]string),
		missing:   make(map[string][]string),
		completed: make(map[string]bool),
		debugLog:  func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the graph from the units of a plan.
// Dependencies on IDs that are not in the plan are recorded but do not fail
// the build; the scheduler reports them as dependency timeouts.
// Returns a *CycleError if the units contain a cycle.
func (g *DependencyGraph) Build(units []*models.WorkUnit) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d units", len(units))

	for i, u := range units {
		if _, dup := g.nodes[u.ID]; dup {
			return fmt.Errorf("duplicate unit id %s", u.ID)
		}
		g.nodes[u.ID] = u
		g.index[u.ID] = i
		g.edges[u.ID] = nil
	}

	for _, u := range units {
		for _, depID := range u.Dependencies {
			if _, ok := g.nodes[depID]; !ok {
				g.debugLog("[graph.Build] unit %s depends on unknown unit %s", u.ID, depID)
				g.missing[u.ID] = append(g.missing[u.ID], depID)
				continue
			}
			g.edges[u.ID] = append(g.edges[u.ID], depID)
		}
	}

	if cycle := g.findCycleLocked(); cycle != nil {
		return &CycleError{Path: cycle}
	}

	g.debugLog("[graph.Build] graph built with %d nodes", len(g.nodes))
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.findCycleLocked() != nil
}

// findCycleLocked runs a depth-first search with coloring and returns the
// first cycle found, or nil. Nodes are visited in plan order so the
// reported path is deterministic.
func (g *DependencyGraph) findCycleLocked() []string {
	// 0 = unvisited, 1 = on the stack, 2 = done.
	colors := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		stack = append(stack, id)

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				for i, s := range stack {
					if s == depID {
						cycle = append(append([]string{}, stack[i:]...), depID)
						break
					}
				}
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = 2
		return false
	}

	for _, id := range g.orderedIDsLocked() {
		if colors[id] == 0 && visit(id) {
			return cycle
		}
	}
	return nil
}

// orderedIDsLocked returns the node IDs in plan order.
func (g *DependencyGraph) orderedIDsLocked() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return g.index[ids[i]] < g.index[ids[j]] })
	return ids
}

// TopologicalSort returns unit IDs so that every unit comes after all of
// its dependencies. Among units whose dependencies are satisfied, the one
// earliest in the plan comes first.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if cycle := g.findCycleLocked(); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}

	indegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for id, deps := range g.edges {
		indegree[id] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []string
	for _, id := range g.orderedIDsLocked() {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return g.index[ready[i]] < g.index[ready[j]] })
		id := ready[0]
		ready = ready[1:]
		result = append(result, id)
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	return result, nil
}

// Levels returns the depth of every unit: zero for units without
// dependencies, otherwise one more than the deepest dependency.
func (g *DependencyGraph) Levels() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	levels := make(map[string]int, len(g.nodes))
	var depth func(id string) int
	depth = func(id string) int {
		if d, ok := levels[id]; ok {
			return d
		}
		d := 0
		for _, dep := range g.edges[id] {
			if dd := depth(dep) + 1; dd > d {
				d = dd
			}
		}
		levels[id] = d
		return d
	}
	for id := range g.nodes {
		depth(id)
	}
	return levels
}

// GetReady returns unit IDs whose dependencies have all completed and that
// are not complete themselves, in plan order. Units with a dependency
// outside the graph are never ready.
func (g *DependencyGraph) GetReady() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for _, id := range g.orderedIDsLocked() {
		if g.completed[id] || len(g.missing[id]) > 0 {
			continue
		}
		ok := true
		for _, dep := range g.edges[id] {
			if !g.completed[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, id)
		}
	}
	g.debugLog("[graph.GetReady] %d ready units: %v", len(ready), ready)
	return ready
}

// MarkComplete marks a unit as having produced a result.
func (g *DependencyGraph) MarkComplete(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.debugLog("[graph.MarkComplete] marking unit %s as complete", id)
	g.completed[id] = true
}

// GetUnit returns the unit for a given ID, or nil if not found.
func (g *DependencyGraph) GetUnit(id string) *models.WorkUnit {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Size returns the number of units in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// GetDependencies returns the IDs of in-graph units the given unit depends on.
func (g *DependencyGraph) GetDependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[id]
}

// MissingDependencies returns the dependency IDs of a unit that are not in the graph.
func (g *DependencyGraph) MissingDependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.missing[id]
}

// GetDependents returns the IDs of units that depend on the given unit, in plan order.
func (g *DependencyGraph) GetDependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for _, other := range g.orderedIDsLocked() {
		for _, dep := range g.edges[other] {
			if dep == id {
				dependents = append(dependents, other)
				break
			}
		}
	}
	return dependents
}

// EdgeCount returns the number of in-graph dependency edges, excluding
// edges that point at any of the given units.
func (g *DependencyGraph) EdgeCount(excluding ...string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	skip := make(map[string]bool, len(excluding))
	for _, id := range excluding {
		skip[id] = true
	}
	n := 0
	for _, deps := range g.edges {
		for _, dep := range deps {
			if !skip[dep] {
				n++
			}
		}
	}
	return n
}
