package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conduit-lang/neuron/internal/compiler/intern"
)

func TestGenerate(t *testing.T) {
	table := intern.New()
	ns := New("/path/to", "mod@0.1.0", table)

	tests := []struct {
		path string
		want string
	}{
		{"/path/to/index.js", "mod@0.1.0/index.js"},
		{"/path/to/a/index.json", "mod@0.1.0/a/index.json"},
		{"/path/to/Folder/Child.JS", "mod@0.1.0/folder/child.js"},
		{`/path/to\win\File.js`, "mod@0.1.0/win/file.js"},
		{"/path/to/./c", "mod@0.1.0/c"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ns.Generate(tt.path))
		})
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	table := intern.New()
	ns := New("/proj", "mod@1.0.0", table)

	first := ns.Generate("/proj/lib/a.js")
	size := table.Len()
	second := ns.Generate("/proj/lib/a.js")

	assert.Equal(t, first, second)
	assert.Equal(t, size, table.Len())
}

func TestWithin(t *testing.T) {
	assert.True(t, Within("/proj", "/proj/index.js"))
	assert.True(t, Within("/proj", "/proj"))
	assert.True(t, Within("/proj", "/proj/..foo/x.js"))
	assert.False(t, Within("/proj", "/x"))
	assert.False(t, Within("/proj", "/projx/a.js"))
	assert.False(t, Within("/proj/sub", "/proj/a.js"))
}
