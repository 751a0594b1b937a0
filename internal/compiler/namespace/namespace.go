// Package namespace builds canonical module ids from a package identity and
// a root-relative file path.
package namespace

import (
	"path/filepath"
	"strings"

	"github.com/conduit-lang/neuron/internal/compiler/intern"
)

// Namespacer generates module ids of the form name@version/sub/path
type Namespacer struct {
	root      string
	packageID string
	table     *intern.Table
}

// New creates a namespacer for files under root belonging to packageID.
// Generated ids are interned into table.
func New(root, packageID string, table *intern.Table) *Namespacer {
	return &Namespacer{
		root:      Clean(root),
		packageID: packageID,
		table:     table,
	}
}

// PackageID returns the package id ids are prefixed with
func (n *Namespacer) PackageID() string {
	return n.packageID
}

// Root returns the cleaned project root
func (n *Namespacer) Root() string {
	return n.root
}

// Generate returns the module id for path and interns it. Calling it again
// for the same path returns the same id without growing the table.
func (n *Namespacer) Generate(path string) string {
	id := n.ID(path)
	n.table.Intern(id)
	return id
}

// ID computes the module id for path without interning it
func (n *Namespacer) ID(path string) string {
	rel := Relative(n.root, path)
	if rel == "" || rel == "." {
		return n.packageID
	}
	return n.packageID + "/" + strings.ToLower(rel)
}

// Clean unifies separators to forward slashes and cleans the path
func Clean(path string) string {
	return filepath.ToSlash(filepath.Clean(filepath.FromSlash(strings.ReplaceAll(path, `\`, "/"))))
}

// Relative returns path relative to root using forward slashes. Paths that
// cannot be made relative are returned cleaned and unchanged.
func Relative(root, path string) string {
	cleaned := Clean(path)
	rel, err := filepath.Rel(filepath.FromSlash(Clean(root)), filepath.FromSlash(cleaned))
	if err != nil {
		return strings.TrimPrefix(cleaned, "/")
	}
	return filepath.ToSlash(rel)
}

// Within reports whether path lies inside root
func Within(root, path string) bool {
	rel := Relative(root, path)
	return rel != ".." && !strings.HasPrefix(rel, "../") && !filepath.IsAbs(filepath.FromSlash(rel))
}
