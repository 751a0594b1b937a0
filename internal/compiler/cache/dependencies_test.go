package cache

import (
	"sort"
	"testing"

	"github.com/conduit-lang/neuron/internal/compiler/walker"
)

func TestDependencyGraph_AddFile(t *testing.T) {
	dg := NewDependencyGraph()

	dg.AddFile("/p/index.js", true)

	if dg.Size() != 1 {
		t.Errorf("Size() = %d, want 1", dg.Size())
	}
	if !dg.Contains("/p/index.js") {
		t.Errorf("Contains() = false, want true")
	}
}

func TestDependencyGraph_AddDependency(t *testing.T) {
	dg := NewDependencyGraph()

	dg.AddDependency("/p/index.js", "/p/a.js")
	dg.AddDependency("/p/index.js", "/p/a.js")

	if dg.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", dg.Size())
	}

	dependents := dg.transitiveDependents("/p/a.js")
	if len(dependents) != 1 || dependents[0] != "/p/index.js" {
		t.Fatalf("transitiveDependents() = %v, want [/p/index.js]", dependents)
	}
}

func TestDependencyGraph_TransitiveDependentsWithCycle(t *testing.T) {
	dg := NewDependencyGraph()

	// index -> a -> b -> a
	dg.AddDependency("/p/index.js", "/p/a.js")
	dg.AddDependency("/p/a.js", "/p/b.js")
	dg.AddDependency("/p/b.js", "/p/a.js")

	got := dg.transitiveDependents("/p/b.js")
	sort.Strings(got)

	want := []string{"/p/a.js", "/p/index.js"}
	if len(got) != len(want) {
		t.Fatalf("transitiveDependents() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transitiveDependents()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDependencyGraph_BuildFromNodes(t *testing.T) {
	dg := NewDependencyGraph()
	dg.AddFile("/stale.js", false)

	dg.BuildFromNodes([]*walker.Node{
		{
			Path:  "/p/index.js",
			Entry: true,
			Dependencies: []walker.Dependency{
				{Specifier: "./a", Target: "/p/a.js", Kind: walker.KindSync},
				{Specifier: "lodash", Target: "lodash", Kind: walker.KindSync},
			},
		},
		{Path: "/p/a.js"},
		{Path: "lodash", Foreign: true},
	})

	if dg.Size() != 2 {
		t.Errorf("Size() = %d, want 2", dg.Size())
	}
	if dg.Contains("/stale.js") {
		t.Errorf("BuildFromNodes() kept a stale file")
	}
	if dg.Contains("lodash") {
		t.Errorf("BuildFromNodes() tracked a foreign node")
	}

	entries := dg.AffectedEntries("/p/a.js")
	if len(entries) != 1 || entries[0] != "/p/index.js" {
		t.Errorf("AffectedEntries() = %v, want [/p/index.js]", entries)
	}
	if entries := dg.AffectedEntries("/p/index.js"); len(entries) != 1 {
		t.Errorf("AffectedEntries() of an entry = %v, want itself", entries)
	}
}

func TestDependencyGraph_Clear(t *testing.T) {
	dg := NewDependencyGraph()

	dg.AddDependency("/p/index.js", "/p/a.js")
	dg.Clear()

	if dg.Size() != 0 {
		t.Errorf("Size() after Clear() = %d, want 0", dg.Size())
	}
	if entries := dg.AffectedEntries("/p/a.js"); len(entries) != 0 {
		t.Errorf("AffectedEntries() after Clear() = %v, want none", entries)
	}
}
