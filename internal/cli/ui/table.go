package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// KeyValueTable renders aligned "key: value" rows, used for build summaries
// and version output
type KeyValueTable struct {
	writer  io.Writer
	rows    [][2]string
	noColor bool
}

// NewKeyValueTable creates a new key-value table
func NewKeyValueTable(w io.Writer, noColor bool) *KeyValueTable {
	return &KeyValueTable{writer: w, noColor: noColor}
}

// AddRow adds a key-value pair to the table
func (t *KeyValueTable) AddRow(key, value string) {
	t.rows = append(t.rows, [2]string{key, value})
}

// Render writes the rows with keys padded to a common width
func (t *KeyValueTable) Render() {
	if len(t.rows) == 0 {
		return
	}

	width := 0
	for _, row := range t.rows {
		if len(row[0]) > width {
			width = len(row[0])
		}
	}

	cyan := color.New(color.FgCyan)
	if t.noColor {
		cyan.DisableColor()
	}
	for _, row := range t.rows {
		key := row[0] + ":"
		cyan.Fprint(t.writer, key+strings.Repeat(" ", width+1-len(key)))
		fmt.Fprintf(t.writer, " %s\n", row[1])
	}
}
