// Package resolver classifies the dependency edges of walked modules as
// local or foreign, stamps foreign edges with their declared version and
// keeps local edges inside the project root.
package resolver

import (
	"fmt"
	"path"
	"strings"

	"github.com/conduit-lang/neuron/compiler/errors"
	"github.com/conduit-lang/neuron/internal/compiler/intern"
	"github.com/conduit-lang/neuron/internal/compiler/namespace"
	"github.com/conduit-lang/neuron/internal/compiler/pkgmeta"
	"github.com/conduit-lang/neuron/internal/compiler/walker"
)

// Dependency is a resolved edge
type Dependency struct {
	Specifier string
	Kind      walker.Kind
	ID        string // module id, or versioned package id for foreign edges
	Foreign   bool
}

// Module is a walked file with every edge resolved to an id. It is not
// modified after Resolve returns.
type Module struct {
	ID           string
	Path         string
	Source       string
	Dependencies []Dependency
	Alias        *AliasMap
	IsEntry      bool
	IsForeign    bool
}

// SyncIDs returns the ids of require() edges in declared order
func (m *Module) SyncIDs() []string {
	var ids []string
	for _, d := range m.Dependencies {
		if d.Kind == walker.KindSync {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Resolver resolves module dependencies for one package and one build.
// It writes to the shared intern table and global alias map, so a
// Resolver must be driven from a single goroutine.
type Resolver struct {
	pkg    *pkgmeta.Package
	ns     *namespace.Namespacer
	table  *intern.Table
	global *AliasMap
}

// New creates a resolver. The global alias map is seeded with the
// package's async dependencies.
func New(pkg *pkgmeta.Package, ns *namespace.Namespacer, table *intern.Table) *Resolver {
	r := &Resolver{
		pkg:    pkg,
		ns:     ns,
		table:  table,
		global: NewAliasMap(),
	}
	for _, id := range pkg.AsyncIDs() {
		name := id[:strings.LastIndex(id, "@")]
		table.Intern(id)
		r.global.Set(name, id)
	}
	return r
}

// GlobalMap returns the bundle-wide alias map
func (r *Resolver) GlobalMap() *AliasMap {
	return r.global
}

// Resolve resolves every edge of node. Missing versions are reported
// together in one NOT_INSTALLED error; the first edge that escapes the
// project root fails with OUT_OF_ROOT.
func (r *Resolver) Resolve(node *walker.Node) (*Module, error) {
	mod := &Module{
		ID:        r.ns.Generate(node.Path),
		Path:      node.Path,
		Source:    node.Code,
		Alias:     NewAliasMap(),
		IsEntry:   node.Entry,
		IsForeign: node.Foreign,
	}

	var missing []string
	seenMissing := make(map[string]bool)

	for _, dep := range node.Dependencies {
		resolved, ok, err := r.resolveEdge(node, dep, mod.Alias)
		if err != nil {
			return nil, err.InModule(mod.ID)
		}
		if !ok {
			if !seenMissing[dep.Specifier] {
				seenMissing[dep.Specifier] = true
				missing = append(missing, dep.Specifier)
			}
			continue
		}
		mod.Dependencies = append(mod.Dependencies, resolved)
	}

	if len(missing) > 0 {
		return nil, notInstalled(mod.ID, missing)
	}
	return mod, nil
}

// resolveEdge reports ok=false when a foreign edge has no declared version
func (r *Resolver) resolveEdge(node *walker.Node, dep walker.Dependency, alias *AliasMap) (Dependency, bool, *errors.CompilerError) {
	spec := dep.Specifier
	resolved := Dependency{Specifier: spec, Kind: dep.Kind}

	if IsRelative(spec) {
		joined := r.join(path.Dir(namespace.Clean(node.Path)), spec)
		if !namespace.Within(r.ns.Root(), joined) {
			e := outOfRoot(spec)
			return resolved, false, &e
		}
		target := dep.Target
		if target == "" || !path.IsAbs(namespace.Clean(target)) {
			target = joined
		}
		resolved.ID = r.ns.Generate(target)
		alias.Set(spec, resolved.ID)
		return resolved, true, nil
	}

	name, sub := SplitPackage(spec)
	aliased := false
	if target, ok := r.lookupAlias(spec, name, sub); ok {
		if IsRelative(target) {
			joined := r.join(r.ns.Root(), target)
			if !namespace.Within(r.ns.Root(), joined) {
				e := outOfRoot(spec)
				return resolved, false, &e
			}
			resolved.ID = r.ns.Generate(joined)
			alias.Set(spec, resolved.ID)
			r.global.SetIfAbsent(spec, resolved.ID)
			return resolved, true, nil
		}
		name, sub = SplitPackage(target)
		aliased = true
	}

	version, ok := r.pkg.VersionOf(name)
	if !ok {
		return resolved, false, nil
	}

	resolved.ID = name + "@" + version + sub
	resolved.Foreign = true
	r.table.Intern(resolved.ID)

	if aliased {
		alias.Set(spec, resolved.ID)
		r.global.SetIfAbsent(spec, resolved.ID)
	}
	return resolved, true, nil
}

// lookupAlias checks the alias table for the full specifier, then for its
// package name with the sub-path carried over.
func (r *Resolver) lookupAlias(spec, name, sub string) (string, bool) {
	if target, ok := r.pkg.Alias[spec]; ok {
		return target, true
	}
	if sub != "" {
		if target, ok := r.pkg.Alias[name]; ok {
			return target + sub, true
		}
	}
	return "", false
}

func (r *Resolver) join(dir, spec string) string {
	if strings.HasPrefix(spec, "/") {
		return namespace.Clean(spec)
	}
	return namespace.Clean(path.Join(dir, spec))
}

// IsRelative reports whether a specifier names a path rather than a package
func IsRelative(spec string) bool {
	return strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/")
}

// SplitPackage splits a bare specifier into package name and sub-path:
// "a/b/c" -> ("a", "/b/c"), "@s/a/b" -> ("@s/a", "/b").
func SplitPackage(spec string) (name, sub string) {
	rest := spec
	prefix := ""
	if strings.HasPrefix(spec, "@") {
		if i := strings.Index(spec, "/"); i >= 0 {
			prefix = spec[:i+1]
			rest = spec[i+1:]
		}
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		return prefix + rest[:i], rest[i:]
	}
	return prefix + rest, ""
}

func notInstalled(moduleID string, specs []string) error {
	quoted := make([]string, len(specs))
	for i, s := range specs {
		quoted[i] = fmt.Sprintf("%q", s)
	}

	var msg string
	if len(specs) == 1 {
		msg = fmt.Sprintf("explicit version of dependency %s is not defined in package.json", quoted[0])
	} else {
		msg = fmt.Sprintf("explicit versions of dependencies %s are not defined in package.json", strings.Join(quoted, ", "))
	}

	return errors.NewCompilerError("resolver", errors.ErrNotInstalledCode, msg,
		errors.SourceLocation{File: moduleID}, errors.Error).
		WithSpecifiers(specs...).
		WithSuggestion(errors.FixSuggestion{
			Description: "declare the missing dependencies",
			Command:     fmt.Sprintf("neuron install %s --save", strings.Join(specs, " ")),
		})
}

func outOfRoot(spec string) errors.CompilerError {
	return errors.NewCompilerError("resolver", errors.ErrOutOfRootCode,
		fmt.Sprintf("relative dependency %q is out of the project root", spec),
		errors.SourceLocation{}, errors.Error).
		WithSpecifiers(spec)
}
