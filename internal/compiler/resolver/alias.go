package resolver

import "github.com/conduit-lang/neuron/internal/compiler/intern"

// AliasMap is an insertion-ordered specifier to module id map
type AliasMap struct {
	keys   []string
	values map[string]string
}

// NewAliasMap creates an empty alias map
func NewAliasMap() *AliasMap {
	return &AliasMap{values: make(map[string]string)}
}

// Set records specifier -> id, keeping the original position on overwrite
func (m *AliasMap) Set(specifier, id string) {
	if _, ok := m.values[specifier]; !ok {
		m.keys = append(m.keys, specifier)
	}
	m.values[specifier] = id
}

// SetIfAbsent records specifier -> id only the first time specifier is seen
func (m *AliasMap) SetIfAbsent(specifier, id string) {
	if _, ok := m.values[specifier]; !ok {
		m.Set(specifier, id)
	}
}

// Get returns the id a specifier maps to
func (m *AliasMap) Get(specifier string) (string, bool) {
	id, ok := m.values[specifier]
	return id, ok
}

// Len returns the number of entries
func (m *AliasMap) Len() int {
	return len(m.keys)
}

// Pairs returns the entries in insertion order
func (m *AliasMap) Pairs() []intern.Pair {
	pairs := make([]intern.Pair, 0, len(m.keys))
	for _, k := range m.keys {
		pairs = append(pairs, intern.Pair{Key: k, Value: m.values[k]})
	}
	return pairs
}

// Delta returns the entries of m that are missing from base or map to a
// different id there.
func (m *AliasMap) Delta(base *AliasMap) []intern.Pair {
	var out []intern.Pair
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		v := m.values[k]
		if base != nil {
			if bv, ok := base.values[k]; ok && bv == v {
				continue
			}
		}
		out = append(out, intern.Pair{Key: k, Value: v})
	}
	return out
}
