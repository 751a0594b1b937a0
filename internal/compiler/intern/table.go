// Package intern deduplicates literals repeated across a bundle into
// single-assignment local variables.
package intern

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Pair is one entry of an ordered string map
type Pair struct {
	Key   string
	Value string
}

// Table maps literals to local variable names. It is append-only for the
// lifetime of one build and is not safe for concurrent use.
type Table struct {
	names map[string]string
	order []string
}

// New creates an empty intern table
func New() *Table {
	return &Table{
		names: make(map[string]string),
	}
}

// Intern returns the local name for value, allocating the next free name
// the first time value is seen.
func (t *Table) Intern(value string) string {
	if name, ok := t.names[value]; ok {
		return name
	}
	name := fmt.Sprintf("_%d", len(t.order))
	t.names[value] = name
	t.order = append(t.order, value)
	return name
}

// Lookup returns the local name of an already interned value
func (t *Table) Lookup(value string) (string, bool) {
	name, ok := t.names[value]
	return name, ok
}

// Len returns the number of interned literals
func (t *Table) Len() int {
	return len(t.order)
}

// Values returns the interned literals in allocation order
func (t *Table) Values() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Stringify renders a list or ordered map of interned values as a source
// expression referencing local names. Values that were never interned are
// dropped.
func (t *Table) Stringify(v any) string {
	switch val := v.(type) {
	case []string:
		refs := make([]string, 0, len(val))
		for _, item := range val {
			if name, ok := t.names[item]; ok {
				refs = append(refs, name)
			}
		}
		return "[" + strings.Join(refs, ",") + "]"

	case []Pair:
		entries := make([]string, 0, len(val))
		for _, p := range val {
			if name, ok := t.names[p.Value]; ok {
				entries = append(entries, Quote(p.Key)+":"+name)
			}
		}
		return "{" + strings.Join(entries, ",") + "}"

	default:
		return ""
	}
}

// Declarations renders one `var _n = "literal";` line per interned value
func (t *Table) Declarations() string {
	var buf bytes.Buffer
	for _, value := range t.order {
		buf.WriteString(fmt.Sprintf("var %s = %s;\n", t.names[value], Quote(value)))
	}
	return buf.String()
}

// Quote renders s as a double-quoted script string literal
func Quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
