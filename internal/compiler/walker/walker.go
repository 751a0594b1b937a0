// Package walker defines the contract of the dependency-tree walker the
// bundler consumes, and adapters that obtain a walked tree from a manifest
// file or an external walker command.
package walker

import (
	"context"
	"fmt"
)

// Kind classifies a dependency edge
type Kind int

const (
	// KindSync is a require() edge; the dependency must be ready first
	KindSync Kind = iota
	// KindResolve is a require.resolve() edge; only its URL is computed
	KindResolve
	// KindAsync is a require.async() edge; loaded on demand
	KindAsync
)

// String returns the manifest key for the kind
func (k Kind) String() string {
	switch k {
	case KindSync:
		return "require"
	case KindResolve:
		return "resolve"
	case KindAsync:
		return "async"
	default:
		return "unknown"
	}
}

// ParseKind maps a manifest key to a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "require":
		return KindSync, nil
	case "resolve":
		return KindResolve, nil
	case "async":
		return KindAsync, nil
	}
	return 0, fmt.Errorf("unknown dependency kind %q", s)
}

// Dependency is one walked edge: the specifier as written in the source and
// the target the walker resolved it to (an absolute path for locals, the
// bare specifier for foreign packages).
type Dependency struct {
	Specifier string
	Target    string
	Kind      Kind
}

// Node is one walked file
type Node struct {
	Path         string
	Code         string
	HasCode      bool
	Dependencies []Dependency
	Entry        bool
	Foreign      bool
}

// Walker returns every file reachable from entry, in discovery order
type Walker interface {
	Walk(ctx context.Context, entry string) ([]*Node, error)
}

// Static is a Walker over an already walked tree
type Static []*Node

// Walk returns the static node list
func (s Static) Walk(ctx context.Context, entry string) ([]*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return markEntry(s, entry), nil
}

// markEntry flags the node at entry when the walker flagged none
func markEntry(nodes []*Node, entry string) []*Node {
	for _, n := range nodes {
		if n.Entry {
			return nodes
		}
	}
	for _, n := range nodes {
		if n.Path == entry {
			n.Entry = true
		}
	}
	return nodes
}
