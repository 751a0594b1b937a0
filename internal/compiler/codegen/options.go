package codegen

import (
	"strings"

	"github.com/conduit-lang/neuron/internal/compiler/resolver"
)

// optionRenderer renders one key of the registration options record.
// ok=false leaves the key out.
type optionRenderer struct {
	key    string
	render func(g *Generator, m *resolver.Module) (value string, ok bool)
}

// moduleOptions is the declared emission order of option keys
var moduleOptions = []optionRenderer{
	{key: "asyncDeps", render: renderAsyncDeps},
	{key: "entries", render: renderEntries},
	{key: "main", render: renderMain},
	{key: "map", render: renderMap},
}

func (g *Generator) renderOptions(m *resolver.Module) string {
	var pairs []string
	for _, opt := range moduleOptions {
		if value, ok := opt.render(g, m); ok {
			pairs = append(pairs, "    "+opt.key+":"+value)
		}
	}
	if len(pairs) == 0 {
		return ""
	}
	return "{\n" + strings.Join(pairs, ",\n") + "\n}"
}

func renderAsyncDeps(g *Generator, _ *resolver.Module) (string, bool) {
	return asyncDepsVar, len(g.info.AsyncDeps) > 0
}

func renderEntries(g *Generator, _ *resolver.Module) (string, bool) {
	return entriesVar, g.info.Entries != nil
}

func renderMain(g *Generator, m *resolver.Module) (string, bool) {
	return "true", m.IsEntry && m.ID == g.info.MainID
}

// renderMap emits only the keys that differ from the global alias map
func renderMap(g *Generator, m *resolver.Module) (string, bool) {
	delta := m.Alias.Delta(g.info.Global)
	if len(delta) == 0 {
		return globalMapVar, true
	}
	g.usedMix = true
	return mixHelper + "(" + globalMapVar + "," + g.table.Stringify(delta) + ")", true
}
