package cache

import (
	"sync"

	"github.com/conduit-lang/neuron/internal/compiler/walker"
)

// FileDependency represents a dependency between files
type FileDependency struct {
	Path       string   // The file path
	DependsOn  []string // Files this file depends on
	DependedBy []string // Files that depend on this file
	Entry      bool     // Whether the file is a bundle entry
}

// DependencyGraph tracks dependencies between the local files of a bundle.
// Watch mode uses it to decide whether a changed file affects the bundle.
type DependencyGraph struct {
	nodes map[string]*FileDependency
	mu    sync.RWMutex
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*FileDependency),
	}
}

// AddFile adds a file to the dependency graph
func (dg *DependencyGraph) AddFile(path string, entry bool) {
	dg.mu.Lock()
	defer dg.mu.Unlock()

	dg.ensure(path).Entry = entry
}

// AddDependency adds a dependency relationship: from depends on to
func (dg *DependencyGraph) AddDependency(from, to string) {
	dg.mu.Lock()
	defer dg.mu.Unlock()

	fromNode := dg.ensure(from)
	toNode := dg.ensure(to)

	if !contains(fromNode.DependsOn, to) {
		fromNode.DependsOn = append(fromNode.DependsOn, to)
	}
	if !contains(toNode.DependedBy, from) {
		toNode.DependedBy = append(toNode.DependedBy, from)
	}
}

func (dg *DependencyGraph) ensure(path string) *FileDependency {
	node, exists := dg.nodes[path]
	if !exists {
		node = &FileDependency{
			Path:       path,
			DependsOn:  make([]string, 0),
			DependedBy: make([]string, 0),
		}
		dg.nodes[path] = node
	}
	return node
}

// BuildFromNodes replaces the graph with the local files and local edges
// of a walk. Foreign nodes and package edges are not tracked.
func (dg *DependencyGraph) BuildFromNodes(nodes []*walker.Node) {
	dg.Clear()

	local := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if !n.Foreign {
			local[n.Path] = true
			dg.AddFile(n.Path, n.Entry)
		}
	}
	for _, n := range nodes {
		if n.Foreign {
			continue
		}
		for _, d := range n.Dependencies {
			if local[d.Target] {
				dg.AddDependency(n.Path, d.Target)
			}
		}
	}
}

// Contains reports whether path is part of the graph
func (dg *DependencyGraph) Contains(path string) bool {
	dg.mu.RLock()
	defer dg.mu.RUnlock()

	_, exists := dg.nodes[path]
	return exists
}

// transitiveDependents returns all files that transitively depend on the
// given file. Cycles are visited once.
func (dg *DependencyGraph) transitiveDependents(path string) []string {
	dg.mu.RLock()
	defer dg.mu.RUnlock()

	visited := map[string]bool{path: true}
	result := make([]string, 0)

	var visit func(string)
	visit = func(p string) {
		node, exists := dg.nodes[p]
		if !exists {
			return
		}
		for _, dependent := range node.DependedBy {
			if visited[dependent] {
				continue
			}
			visited[dependent] = true
			result = append(result, dependent)
			visit(dependent)
		}
	}

	visit(path)
	return result
}

// AffectedEntries returns the entry files that reach path, path included
// when it is an entry itself.
func (dg *DependencyGraph) AffectedEntries(path string) []string {
	candidates := append([]string{path}, dg.transitiveDependents(path)...)

	dg.mu.RLock()
	defer dg.mu.RUnlock()

	var entries []string
	for _, p := range candidates {
		if node, ok := dg.nodes[p]; ok && node.Entry {
			entries = append(entries, p)
		}
	}
	return entries
}

// Clear removes all entries from the dependency graph
func (dg *DependencyGraph) Clear() {
	dg.mu.Lock()
	defer dg.mu.Unlock()

	dg.nodes = make(map[string]*FileDependency)
}

// Size returns the number of files in the graph
func (dg *DependencyGraph) Size() int {
	dg.mu.RLock()
	defer dg.mu.RUnlock()

	return len(dg.nodes)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
