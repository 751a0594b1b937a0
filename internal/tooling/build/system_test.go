package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/neuron/compiler/errors"
	"github.com/conduit-lang/neuron/internal/compiler/cache"
	"github.com/conduit-lang/neuron/internal/compiler/walker"
	"github.com/conduit-lang/neuron/internal/metrics"
)

const testPackage = `{"name":"app","version":"1.0.0","dependencies":{"lodash":"4.17.21"}}`

func setupProject(t *testing.T, pkg string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte(pkg), 0644))
	return root
}

func testNodes(root string) walker.Static {
	return walker.Static{
		{
			Path:    root + "/index.js",
			Code:    "module.exports = require('./a') + require('lodash');",
			HasCode: true,
			Dependencies: []walker.Dependency{
				{Specifier: "./a", Target: root + "/a.js", Kind: walker.KindSync},
				{Specifier: "lodash", Target: "lodash", Kind: walker.KindSync},
			},
		},
		{Path: root + "/a.js", Code: "module.exports = 1;", HasCode: true},
		{Path: "lodash", Foreign: true},
	}
}

func newTestSystem(t *testing.T, root string, w walker.Walker, opts ...Option) *System {
	t.Helper()
	bo := DefaultBuildOptions()
	bo.ProjectRoot = root
	bo.OutputPath = "dist/bundle.js"
	sys, err := NewSystem(bo, append([]Option{WithWalker(w)}, opts...)...)
	require.NoError(t, err)
	return sys
}

func TestNewSystem_RequiresWalker(t *testing.T) {
	opts := DefaultBuildOptions()
	opts.ProjectRoot = t.TempDir()

	_, err := NewSystem(opts)
	assert.Error(t, err)
}

func TestNewSystem_Defaults(t *testing.T) {
	opts := &BuildOptions{ProjectRoot: t.TempDir(), ManifestPath: "tree.yml"}

	sys, err := NewSystem(opts)
	require.NoError(t, err)

	assert.Equal(t, "package.json", sys.Options().PackageFile)
	assert.Greater(t, sys.Options().MaxJobs, 0)
	mw, ok := sys.walker.(*walker.ManifestWalker)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(opts.ProjectRoot, "tree.yml"), mw.Path)
	assert.IsType(t, cache.NoopStore{}, sys.store)
}

func TestBuild_WritesBundle(t *testing.T) {
	root := setupProject(t, testPackage)
	sys := newTestSystem(t, root, testNodes(root))

	result, err := sys.Build(context.Background())
	require.NoError(t, err)
	require.True(t, result.Success)

	_, err = uuid.Parse(result.BuildID)
	assert.NoError(t, err)
	assert.Equal(t, 2, result.Modules)
	assert.False(t, result.CacheHit)
	assert.Equal(t, filepath.Join(root, "dist", "bundle.js"), result.OutputPath)

	written, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, result.Code, string(written))
	assert.True(t, strings.HasPrefix(result.Code, "(function(){\n"))
	assert.Contains(t, result.Code, `"app@1.0.0/index.js"`)
	assert.Contains(t, result.Code, `"lodash@4.17.21"`)

	_, err = os.Stat(result.OutputPath + ".tmp")
	assert.True(t, os.IsNotExist(err))
	assert.Same(t, result, sys.Last())
}

func TestBuild_CacheHit(t *testing.T) {
	root := setupProject(t, testPackage)
	store := cache.NewMemoryStore()
	sys := newTestSystem(t, root, testNodes(root), WithStore(store))

	first, err := sys.Build(context.Background())
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 1, store.Size())

	second, err := sys.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Code, second.Code)
	assert.Greater(t, first.Locals, 0)
	assert.Equal(t, first.Locals, second.Locals, "cached builds keep the literal count")
	assert.NotEqual(t, first.BuildID, second.BuildID)
}

func TestBuild_CacheDisabled(t *testing.T) {
	root := setupProject(t, testPackage)
	bo := DefaultBuildOptions()
	bo.ProjectRoot = root
	bo.OutputPath = ""
	bo.UseCache = false
	sys, err := NewSystem(bo, WithWalker(testNodes(root)))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		result, err := sys.Build(context.Background())
		require.NoError(t, err)
		assert.False(t, result.CacheHit)
		assert.Empty(t, result.OutputPath)
	}
}

func TestBuild_LoadsMissingSources(t *testing.T) {
	root := setupProject(t, testPackage)
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.js"), []byte("module.exports = require('./a');"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.js"), []byte("module.exports = 'from disk';"), 0644))

	nodes := walker.Static{
		{
			Path: root + "/index.js",
			Dependencies: []walker.Dependency{
				{Specifier: "./a", Target: root + "/a.js", Kind: walker.KindSync},
			},
		},
		{Path: root + "/a.js"},
	}
	sys := newTestSystem(t, root, nodes)
	sys.options.MaxJobs = 2

	result, err := sys.Build(context.Background())
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Contains(t, result.Code, "module.exports = 'from disk';")
	assert.True(t, nodes[0].HasCode)
}

func TestBuild_UnreadableSource(t *testing.T) {
	root := setupProject(t, testPackage)
	nodes := walker.Static{{Path: root + "/index.js"}}
	sys := newTestSystem(t, root, nodes)

	result, err := sys.Build(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, errors.ErrMalformedSourceCode, result.Errors[0].Code)
}

func TestBuild_ResolveErrorAborts(t *testing.T) {
	root := setupProject(t, `{"name":"app","version":"1.0.0"}`)
	sys := newTestSystem(t, root, testNodes(root))

	result, err := sys.Build(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, result.Code)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, errors.ErrNotInstalledCode, result.Errors[0].Code)
	assert.Equal(t, "app@1.0.0/index.js", result.Errors[0].Location.File)

	_, statErr := os.Stat(filepath.Join(root, "dist", "bundle.js"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestBuild_MissingPackageFile(t *testing.T) {
	sys := newTestSystem(t, t.TempDir(), walker.Static{})

	_, err := sys.Build(context.Background())
	assert.Error(t, err)
}

func TestBuild_ManifestWalker(t *testing.T) {
	root := setupProject(t, testPackage)
	manifest := `
index.js:
  code: "module.exports = require('./a');"
  dependencies:
    require:
      ./a: ./a.js
a.js:
  code: "module.exports = 2;"
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "tree.yml"), []byte(manifest), 0644))

	opts := DefaultBuildOptions()
	opts.ProjectRoot = root
	opts.ManifestPath = "tree.yml"
	opts.OutputPath = ""
	sys, err := NewSystem(opts)
	require.NoError(t, err)

	result, err := sys.Build(context.Background())
	require.NoError(t, err)
	require.True(t, result.Success, "errors: %v", result.Errors)
	assert.Equal(t, 2, result.Modules)
	assert.True(t, sys.DependencyGraph().Contains(root+"/a.js"))
}

func TestBuild_Progress(t *testing.T) {
	root := setupProject(t, testPackage)
	var steps []int
	bo := DefaultBuildOptions()
	bo.ProjectRoot = root
	bo.OutputPath = ""
	bo.ProgressFunc = func(current, total int, message string) {
		assert.Equal(t, 5, total)
		steps = append(steps, current)
	}
	sys, err := NewSystem(bo, WithWalker(testNodes(root)))
	require.NoError(t, err)

	_, err = sys.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, steps)
}

func TestBuild_RecordsMetrics(t *testing.T) {
	root := setupProject(t, testPackage)
	reg := prometheus.NewRegistry()
	collector := metrics.NewWithRegistry(reg)
	sys := newTestSystem(t, root, testNodes(root), WithMetrics(collector))

	_, err := sys.Build(context.Background())
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "neuron_bundle_modules" {
			found = true
			assert.Equal(t, 2.0, mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found)
}

func TestIncrementalBuild(t *testing.T) {
	root := setupProject(t, testPackage)
	sys := newTestSystem(t, root, testNodes(root))

	assert.True(t, sys.Affects([]string{"/elsewhere/x.js"}), "every change counts before the first walk")

	_, err := sys.Build(context.Background())
	require.NoError(t, err)

	skipped, err := sys.IncrementalBuild(context.Background(), []string{filepath.Join(root, "README.md")})
	require.NoError(t, err)
	assert.True(t, skipped.Skipped)

	assert.Equal(t, []string{filepath.Join(root, "index.js")}, sys.AffectedEntries([]string{"a.js"}))
	assert.Empty(t, sys.AffectedEntries([]string{"README.md"}))

	rebuilt, err := sys.IncrementalBuild(context.Background(), []string{filepath.Join(root, "a.js")})
	require.NoError(t, err)
	assert.False(t, rebuilt.Skipped)
	assert.True(t, rebuilt.Success)

	assert.True(t, sys.Affects([]string{"package.json"}))
}
