package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseModuleID(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		version string
		path    string
		id      string
	}{
		{"a@1.0.0", "a", "1.0.0", "", "a@1.0.0"},
		{"a", "a", "*", "", "a@*"},
		{"a/inner", "a", "*", "/inner", "a@*/inner"},
		{"a@^1.2.0/lib/b.js", "a", "^1.2.0", "/lib/b.js", "a@^1.2.0/lib/b.js"},
		{"@scope/a", "@scope/a", "*", "", "@scope/a@*"},
		{"@scope/a@2.0.0/x.js", "@scope/a", "2.0.0", "/x.js", "@scope/a@2.0.0/x.js"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p := ParseModuleID(tt.in)
			assert.Equal(t, tt.name, p.Name)
			assert.Equal(t, tt.version, p.Version)
			assert.Equal(t, tt.path, p.Path)
			assert.Equal(t, tt.id, p.ID)
			assert.Equal(t, tt.name+"@"+tt.version, p.Package)
			assert.Equal(t, tt.path == "", p.IsMain())
		})
	}
}

func TestHasVersion(t *testing.T) {
	assert.True(t, hasVersion("a@1.0.0"))
	assert.True(t, hasVersion("@scope/a@1.0.0"))
	assert.False(t, hasVersion("a"))
	assert.False(t, hasVersion("@scope/a"))
	assert.False(t, hasVersion("./b.js"))
}

func TestVersionKey(t *testing.T) {
	assert.Equal(t, "b", versionKey("b@^0.2.0"))
	assert.Equal(t, "y/lib/z", versionKey("y@1.1.1/lib/z"))
	assert.Equal(t, "@s/a", versionKey("@s/a@1.0.0"))
}

func TestVersionToDir(t *testing.T) {
	assert.Equal(t, "a/1.0.0/a.js", versionToDir("a@1.0.0/a.js"))
	assert.Equal(t, "@s/a/1.0.0/a.js", versionToDir("@s/a@1.0.0/a.js"))
	assert.Equal(t, "plain.js", versionToDir("plain.js"))
}

func TestDirname(t *testing.T) {
	assert.Equal(t, "abc", dirname("abc/def"))
	assert.Equal(t, "abc", dirname("abc"))
	assert.Equal(t, "abc", dirname("abc/"))
	assert.Equal(t, "http://cdn/a/1.0.0", dirname("http://cdn/a/1.0.0/a.js"))
}
