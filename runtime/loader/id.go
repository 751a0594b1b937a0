package loader

import "strings"

// defaultVersion is assumed when an id names no version
const defaultVersion = "*"

// ParsedID is a module id split into its package and path parts.
//
//	"a@1.0.0/lib/b.js" -> {Name: "a", Version: "1.0.0", Path: "/lib/b.js"}
//	"a/inner"          -> {Name: "a", Version: "*", Path: "/inner"}
type ParsedID struct {
	Name    string
	Version string
	Path    string

	// ID is Package followed by Path
	ID string
	// Package is name@version
	Package string

	graph *Graph
}

// ParseModuleID splits id into name, version and sub-path. Scoped package
// names ("@scope/name") are kept whole.
func ParseModuleID(id string) ParsedID {
	scope, rest := "", id
	if strings.HasPrefix(id, "@") {
		if i := strings.Index(id, "/"); i > 0 {
			scope, rest = id[:i+1], id[i+1:]
		}
	}

	head, path := rest, ""
	if i := strings.Index(rest, "/"); i >= 0 {
		head, path = rest[:i], rest[i:]
	}

	name, version := head, defaultVersion
	if i := strings.Index(head, "@"); i >= 0 {
		name = head[:i]
		if v := head[i+1:]; v != "" {
			version = v
		}
	}

	p := ParsedID{Name: scope + name, Version: version, Path: path}
	p.format()
	return p
}

// IsMain reports whether the id names a package's main module
func (p ParsedID) IsMain() bool {
	return p.Path == ""
}

func (p *ParsedID) format() {
	p.Package = p.Name + "@" + p.Version
	p.ID = p.Package + p.Path
}

// versionKey is the unversioned form of a dependency id, used to map a
// plain specifier back to its declared version: "b@^0.2.0/x" -> "b/x".
func versionKey(id string) string {
	p := ParseModuleID(id)
	return p.Name + p.Path
}

// hasVersion reports whether id carries an explicit version. A leading
// '@' starts a scope and does not count.
func hasVersion(id string) bool {
	return strings.Contains(strings.TrimPrefix(id, "@"), "@")
}

// isRelative reports whether id is still a path after alias mapping
func isRelative(id string) bool {
	return strings.HasPrefix(id, "./") || strings.HasPrefix(id, "../")
}

// dirname returns everything before the last slash: "a/b/c" -> "a/b".
// An id without a slash is returned unchanged.
func dirname(uri string) string {
	if i := strings.LastIndex(uri, "/"); i > 0 {
		return uri[:i]
	}
	return uri
}
