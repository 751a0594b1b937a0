// Package codegen generates the registration calls of a bundle and
// assembles them, together with the interned literal declarations, into
// one self-contained artifact.
package codegen

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/conduit-lang/neuron/internal/compiler/intern"
	"github.com/conduit-lang/neuron/internal/compiler/resolver"
)

// Names of the shared locals declared in the bundle preamble
const (
	mixHelper    = "mix"
	globalMapVar = "globalMap"
	entriesVar   = "entries"
	asyncDepsVar = "asyncDeps"
)

// factoryParams is the fixed parameter list of every module factory
const factoryParams = "require, exports, module, __filename, __dirname"

// dataExtensions are wrapped so their decoded literal becomes the export
var dataExtensions = map[string]bool{
	".json": true,
}

// BundleInfo carries the bundle-wide facts module options depend on
type BundleInfo struct {
	// AsyncDeps lists versioned ids of async foreign dependencies
	AsyncDeps []string
	// Entries lists explicit entry ids; nil when none are configured
	Entries []string
	// MainID is the id of the package's declared primary module
	MainID string
	// Global is the bundle-wide alias map
	Global *resolver.AliasMap
}

// Generator wraps resolved modules into registration calls
type Generator struct {
	table   *intern.Table
	info    *BundleInfo
	usedMix bool
}

// NewGenerator creates a code generator sharing table with the resolver
func NewGenerator(table *intern.Table, info *BundleInfo) *Generator {
	if info.Global == nil {
		info.Global = resolver.NewAliasMap()
	}
	return &Generator{
		table: table,
		info:  info,
	}
}

// UsesMix reports whether any generated fragment references the mix helper
func (g *Generator) UsesMix() bool {
	return g.usedMix
}

// Wrap emits the registration call of one module
func (g *Generator) Wrap(m *resolver.Module) string {
	var buf bytes.Buffer

	id := g.table.Intern(m.ID)
	buf.WriteString(fmt.Sprintf("define(%s, %s, function(%s) {\n", id, g.table.Stringify(m.SyncIDs()), factoryParams))
	buf.WriteString(body(m))
	buf.WriteString("\n}")

	if opts := g.renderOptions(m); opts != "" {
		buf.WriteString(", ")
		buf.WriteString(opts)
	}
	buf.WriteString(");\n")

	return buf.String()
}

// body returns the factory body; data modules export their literal
func body(m *resolver.Module) string {
	src := strings.TrimRight(m.Source, "\n")
	if dataExtensions[strings.ToLower(path.Ext(m.ID))] {
		return "module.exports = " + src
	}
	return src
}
