// Package pkgmeta loads the package metadata a bundle is built against.
package pkgmeta

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Package is the subset of package.json the bundler consumes
type Package struct {
	Name              string            `json:"name"`
	Version           string            `json:"version"`
	Main              string            `json:"main"`
	Dependencies      map[string]string `json:"dependencies"`
	AsyncDependencies map[string]string `json:"asyncDependencies"`
	DevDependencies   map[string]string `json:"devDependencies"`

	// Alias maps a bare specifier to either another package name
	// (optionally with a sub-path) or a relative path inside the package.
	Alias map[string]string `json:"alias"`

	// Entries lists explicit entry modules. Nil means none were configured.
	Entries []string `json:"entries"`
}

// Load reads and validates a package.json file
func Load(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package file: %w", err)
	}
	return Parse(data)
}

// Parse decodes package metadata from JSON
func Parse(data []byte) (*Package, error) {
	var pkg Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse package file: %w", err)
	}
	if err := pkg.Validate(); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// Validate checks the fields every build needs
func (p *Package) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("package name is required")
	}
	if strings.ContainsAny(p.Name, " @") && !strings.HasPrefix(p.Name, "@") {
		return fmt.Errorf("invalid package name %q", p.Name)
	}
	if strings.TrimSpace(p.Version) == "" {
		return fmt.Errorf("package version is required")
	}
	return nil
}

// ID returns the canonical package id, name@version
func (p *Package) ID() string {
	return p.Name + "@" + p.Version
}

// MainPath returns the declared primary module, defaulting to index.js
func (p *Package) MainPath() string {
	if p.Main == "" {
		return "index.js"
	}
	return p.Main
}

// VersionOf looks up the declared version of a dependency. Direct
// dependencies win over async ones, which win over dev ones.
func (p *Package) VersionOf(name string) (string, bool) {
	for _, table := range []map[string]string{p.Dependencies, p.AsyncDependencies, p.DevDependencies} {
		if v, ok := table[name]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// AsyncIDs returns name@version for every async dependency, sorted by name
func (p *Package) AsyncIDs() []string {
	names := make([]string, 0, len(p.AsyncDependencies))
	for name := range p.AsyncDependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	ids := make([]string, 0, len(names))
	for _, name := range names {
		ids = append(ids, name+"@"+p.AsyncDependencies[name])
	}
	return ids
}

// DeclaredNames returns every dependency name across the three tables,
// sorted and without duplicates
func (p *Package) DeclaredNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, table := range []map[string]string{p.Dependencies, p.AsyncDependencies, p.DevDependencies} {
		for name := range table {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}
