package codegen

import (
	"bytes"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/conduit-lang/neuron/internal/compiler/intern"
	"github.com/conduit-lang/neuron/internal/compiler/namespace"
	"github.com/conduit-lang/neuron/internal/compiler/pkgmeta"
	"github.com/conduit-lang/neuron/internal/compiler/resolver"
	"github.com/conduit-lang/neuron/internal/compiler/walker"
)

// mixSource merges its arguments into a fresh object
const mixSource = "function mix(){var r={};for(var i=0;i<arguments.length;i++){var s=arguments[i];for(var k in s){r[k]=s[k];}}return r;}\n"

// Bundle is the output of one assembly
type Bundle struct {
	Code    string
	Modules []*resolver.Module
	Locals  int
}

// Assembler owns the intern table and resolved modules of one build
type Assembler struct {
	pkg      *pkgmeta.Package
	root     string
	table    *intern.Table
	ns       *namespace.Namespacer
	resolver *resolver.Resolver
	logger   *zap.Logger
}

// NewAssembler creates an assembler for pkg rooted at root
func NewAssembler(pkg *pkgmeta.Package, root string, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	table := intern.New()
	ns := namespace.New(root, pkg.ID(), table)
	return &Assembler{
		pkg:      pkg,
		root:     ns.Root(),
		table:    table,
		ns:       ns,
		resolver: resolver.New(pkg, ns, table),
		logger:   logger,
	}
}

// Assemble resolves every non-foreign node and generates the artifact.
// Resolution runs over the complete node set before any code is generated;
// the first failing module aborts the build without partial output.
func (a *Assembler) Assemble(nodes []*walker.Node) (*Bundle, error) {
	modules := make([]*resolver.Module, 0, len(nodes))
	for _, node := range nodes {
		if node.Foreign {
			continue
		}
		mod, err := a.resolver.Resolve(node)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("resolved module",
			zap.String("id", mod.ID),
			zap.Int("dependencies", len(mod.Dependencies)))
		modules = append(modules, mod)
	}

	info := &BundleInfo{
		AsyncDeps: a.asyncDeps(modules),
		Entries:   a.entries(),
		MainID:    a.ns.ID(path.Join(a.root, a.pkg.MainPath())),
		Global:    a.resolver.GlobalMap(),
	}
	gen := NewGenerator(a.table, info)

	var code bytes.Buffer
	for _, mod := range emissionOrder(modules) {
		code.WriteString(gen.Wrap(mod))
		code.WriteString("\n")
	}

	var out bytes.Buffer
	out.WriteString("(function(){\n")
	if gen.UsesMix() {
		out.WriteString(mixSource)
	}
	out.WriteString(a.table.Declarations())
	if info.Entries != nil {
		out.WriteString(fmt.Sprintf("var %s = %s;\n", entriesVar, a.table.Stringify(info.Entries)))
	}
	if len(info.AsyncDeps) > 0 {
		out.WriteString(fmt.Sprintf("var %s = %s;\n", asyncDepsVar, a.table.Stringify(info.AsyncDeps)))
	}
	out.WriteString(fmt.Sprintf("var %s = %s;\n", globalMapVar, a.table.Stringify(info.Global.Pairs())))
	out.Write(code.Bytes())
	out.WriteString("})();\n")

	return &Bundle{
		Code:    out.String(),
		Modules: modules,
		Locals:  a.table.Len(),
	}, nil
}

// asyncDeps collects declared async dependencies and every async foreign
// edge of the bundle, first-seen order.
func (a *Assembler) asyncDeps(modules []*resolver.Module) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			a.table.Intern(id)
			ids = append(ids, id)
		}
	}

	for _, id := range a.pkg.AsyncIDs() {
		add(id)
	}
	for _, mod := range modules {
		for _, dep := range mod.Dependencies {
			if dep.Foreign && dep.Kind == walker.KindAsync {
				add(dep.ID)
			}
		}
	}
	return ids
}

func (a *Assembler) entries() []string {
	if a.pkg.Entries == nil {
		return nil
	}
	ids := make([]string, 0, len(a.pkg.Entries))
	for _, entry := range a.pkg.Entries {
		ids = append(ids, a.ns.Generate(path.Join(a.root, entry)))
	}
	return ids
}

// emissionOrder places entry modules after all other modules, each group
// keeping walker order.
func emissionOrder(modules []*resolver.Module) []*resolver.Module {
	ordered := make([]*resolver.Module, 0, len(modules))
	for _, m := range modules {
		if !m.IsEntry {
			ordered = append(ordered, m)
		}
	}
	for _, m := range modules {
		if m.IsEntry {
			ordered = append(ordered, m)
		}
	}
	return ordered
}
