package loader

// GlobalGraphKey names the default graph of a graph table
const GlobalGraphKey = "_"

// Graph is the version-pin table visible from one resolution context.
//
// Version pins the version of the package the graph belongs to. Deps maps
// the package ids referenced from that package to the key of their own
// sub-graph in the table. Each graph also owns the instances created
// under it, so the same definition reached through two graphs yields two
// independent instances.
type Graph struct {
	Version string
	Deps    map[string]string

	instances map[string]*Instance
}

// NewGraph creates a graph pinned to version
func NewGraph(version string, deps map[string]string) *Graph {
	return &Graph{Version: version, Deps: deps}
}

func (g *Graph) lookup(key string) *Instance {
	return g.instances[key]
}

func (g *Graph) store(key string, inst *Instance) {
	if g.instances == nil {
		g.instances = make(map[string]*Instance)
	}
	g.instances[key] = inst
}

// GraphTable holds every graph by key; GlobalGraphKey is the fallback
type GraphTable map[string]*Graph

func (t GraphTable) global() *Graph {
	g, ok := t[GlobalGraphKey]
	if !ok || g == nil {
		g = &Graph{}
		t[GlobalGraphKey] = g
	}
	return g
}

// subGraph returns the graph pkg resolves to from within from. A nil from
// reads the global graph's deps. Unknown packages and dangling keys fall
// back to the global graph.
func (t GraphTable) subGraph(pkg string, from *Graph) *Graph {
	global := t.global()
	deps := global.Deps
	if from != nil {
		deps = from.Deps
	}

	if key, ok := deps[pkg]; ok {
		if g, ok := t[key]; ok && g != nil {
			return g
		}
	}
	return global
}
