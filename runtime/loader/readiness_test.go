package loader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance_CycleSeesPartialExports(t *testing.T) {
	r := NewRegistry()
	r.Configure(Config{Path: "/mod"})

	var earlySeen, lateSeen bool
	r.Define("ns@1.0.0/a.js", []string{"ns@1.0.0/b.js"}, func(req *Require, exports Exports, _ *Module, _, _ string) error {
		exports["early"] = true
		b, err := req.Require("./b.js")
		if err != nil {
			return err
		}
		exports["b"] = b
		exports["late"] = true
		return nil
	}, &Options{Map: map[string]string{"./b.js": "ns@1.0.0/b.js"}})

	r.Define("ns@1.0.0/b.js", []string{"ns@1.0.0/a.js"}, func(req *Require, exports Exports, _ *Module, _, _ string) error {
		a, err := req.Require("./a.js")
		if err != nil {
			return err
		}
		partial := a.(Exports)
		_, earlySeen = partial["early"]
		_, lateSeen = partial["late"]
		exports["name"] = "b"
		return nil
	}, &Options{Map: map[string]string{"./a.js": "ns@1.0.0/a.js"}})

	a := mustUse(t, r, "ns@1.0.0/a.js").(Exports)

	assert.True(t, earlySeen)
	assert.False(t, lateSeen)
	assert.Equal(t, true, a["late"])
	assert.Equal(t, Exports{"name": "b"}, a["b"])

	inst, err := r.Module("ns@1.0.0/b.js")
	require.NoError(t, err)
	assert.True(t, inst.Ready())
	assert.True(t, inst.Loaded())
}

func TestAdvance_FactoryRunsOnce(t *testing.T) {
	r := NewRegistry()
	r.Configure(Config{Path: "/mod"})

	runs := 0
	r.Define("ns@1.0.0/shared.js", nil, func(_ *Require, _ Exports, _ *Module, _, _ string) error {
		runs++
		return nil
	}, nil)
	for _, name := range []string{"a", "b"} {
		r.Define("ns@1.0.0/"+name+".js", []string{"ns@1.0.0/shared.js"}, func(req *Require, _ Exports, _ *Module, _, _ string) error {
			_, err := req.Require("./shared.js")
			return err
		}, &Options{Map: map[string]string{"./shared.js": "ns@1.0.0/shared.js"}})
	}

	mustUse(t, r, "ns@1.0.0/a.js")
	mustUse(t, r, "ns@1.0.0/b.js")
	assert.Equal(t, 1, runs)
}

func TestAdvance_ReadyAnsweredAfterResolution(t *testing.T) {
	r := NewRegistry()
	r.Define("ns@1.0.0/a.js", nil, noop, nil)

	inst, err := r.Module("ns@1.0.0/a.js")
	require.NoError(t, err)

	first := r.advance(inst, nil)
	require.True(t, first.Done())

	called := false
	r.advance(inst, nil).Then(func() { called = true })
	assert.True(t, called)
}

func TestRequire_StrictNotFound(t *testing.T) {
	r := NewRegistry()
	r.Configure(Config{Path: "/mod"})

	var bare, relative error
	r.Define("ns@1.0.0/a.js", nil, func(req *Require, _ Exports, _ *Module, _, _ string) error {
		_, bare = req.Require("missing")
		_, relative = req.Require("./missing.js")
		return nil
	}, nil)

	mustUse(t, r, "ns@1.0.0/a.js")

	assert.True(t, errors.Is(bare, ErrModuleNotFound))
	assert.True(t, errors.Is(relative, ErrModuleNotFound))
	assert.Contains(t, relative.Error(), `"./missing.js"`)
}

func TestRequire_VersionProhibited(t *testing.T) {
	r := NewRegistry()
	r.Configure(Config{Path: "/mod"})

	var versioned, scoped, async error
	r.Define("ns@1.0.0/a.js", nil, func(req *Require, _ Exports, _ *Module, _, _ string) error {
		_, versioned = req.Require("b@1.0.0")
		_, scoped = req.Require("@scope/b")
		async = req.Async("b@1.0.0", func(any, error) {})
		return nil
	}, nil)

	mustUse(t, r, "ns@1.0.0/a.js")

	assert.True(t, errors.Is(versioned, ErrMalformedID))
	assert.True(t, errors.Is(async, ErrMalformedID))
	// a scope marker is not a version; the id is simply undeclared
	assert.False(t, errors.Is(scoped, ErrMalformedID))
	assert.True(t, errors.Is(scoped, ErrModuleNotFound))
}

func TestRequire_AsyncForeignSubModuleForbidden(t *testing.T) {
	r := NewRegistry()
	r.Configure(Config{Path: "/mod"})

	var asyncErr error
	r.Define("ns@1.0.0/a.js", nil, func(req *Require, _ Exports, _ *Module, _, _ string) error {
		asyncErr = req.Async("other/lib/x.js", func(any, error) {})
		return nil
	}, nil)

	mustUse(t, r, "ns@1.0.0/a.js")
	assert.True(t, errors.Is(asyncErr, ErrForbiddenAsync))
}

func TestRequire_Resolve(t *testing.T) {
	r := NewRegistry()
	r.Configure(Config{Path: "http://cdn/mod/"})

	var url, filename, dir string
	r.Define("ns@1.0.0/lib/a.js", nil, func(req *Require, _ Exports, _ *Module, f, d string) error {
		var err error
		url, err = req.Resolve("./b.js")
		filename, dir = f, d
		return err
	}, &Options{Map: map[string]string{"./b.js": "ns@1.0.0/lib/b.js"}})

	mustUse(t, r, "ns@1.0.0/lib/a.js")

	assert.Equal(t, "http://cdn/mod/ns/1.0.0/lib/b.js", url)
	assert.Equal(t, "http://cdn/mod/ns/1.0.0/lib/a.js", filename)
	assert.Equal(t, "http://cdn/mod/ns/1.0.0/lib", dir)
}

func TestFuture(t *testing.T) {
	f := NewFuture()
	var order []int
	f.Then(func() { order = append(order, 1) })
	f.Then(func() { order = append(order, 2) })
	assert.Empty(t, order)

	f.resolve()
	f.resolve()
	assert.Equal(t, []int{1, 2}, order)

	f.Then(func() { order = append(order, 3) })
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.True(t, Resolved().Done())
}

func TestAdvance_CycleAcrossSeparateLoads(t *testing.T) {
	tests := []struct {
		name  string
		order []string
	}{
		{name: "fetched module requested first", order: []string{"ns@1.0.0/b.js", "ns@1.0.0/a.js"}},
		{name: "defined module requested first", order: []string{"ns@1.0.0/a.js", "ns@1.0.0/b.js"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, fetcher := newFetchingRegistry(t, Catalog{
				"http://cdn/ns/1.0.0/b.js": func(r *Registry) {
					r.Define("ns@1.0.0/b.js", []string{"ns@1.0.0/a.js"}, noop, nil)
				},
			})
			r.Define("ns@1.0.0/a.js", []string{"ns@1.0.0/b.js"}, noop, nil)

			used := map[string]int{}
			for _, id := range tt.order {
				id := id
				require.NoError(t, r.Use(id, func(_ any, err error) {
					require.NoError(t, err)
					used[id]++
				}))
			}

			runIdle(t, r)

			assert.Equal(t, map[string]int{"ns@1.0.0/a.js": 1, "ns@1.0.0/b.js": 1}, used)
			assert.Equal(t, []string{"http://cdn/ns/1.0.0/b.js"}, fetcher.requested())
			for _, id := range tt.order {
				inst, err := r.Module(id)
				require.NoError(t, err)
				assert.True(t, inst.Ready(), "%s not ready", id)
			}
		})
	}
}

func TestAdvance_LongCycleAcrossSeparateLoads(t *testing.T) {
	// a -> b -> c -> a, with c arriving by fetch
	r, _ := newFetchingRegistry(t, Catalog{
		"http://cdn/ns/1.0.0/c.js": func(r *Registry) {
			r.Define("ns@1.0.0/c.js", []string{"ns@1.0.0/a.js"}, noop, nil)
		},
	})
	r.Define("ns@1.0.0/a.js", []string{"ns@1.0.0/b.js"}, noop, nil)
	r.Define("ns@1.0.0/b.js", []string{"ns@1.0.0/c.js"}, noop, nil)

	ready := 0
	for _, id := range []string{"ns@1.0.0/c.js", "ns@1.0.0/a.js"} {
		require.NoError(t, r.Use(id, func(_ any, err error) {
			require.NoError(t, err)
			ready++
		}))
	}

	runIdle(t, r)
	assert.Equal(t, 2, ready)
}

func TestExports_WithoutConfiguredPath(t *testing.T) {
	r := NewRegistry()

	var filename, dir string
	r.Define("ns@1.0.0/lib/a.js", nil, func(_ *Require, exports Exports, _ *Module, f, d string) error {
		filename, dir = f, d
		exports["ok"] = true
		return nil
	}, nil)

	exports := mustUse(t, r, "ns@1.0.0/lib/a.js")
	assert.Equal(t, Exports{"ok": true}, exports)
	assert.Equal(t, "ns/1.0.0/lib/a.js", filename)
	assert.Equal(t, "ns/1.0.0/lib", dir)
}

func TestExports_FactoryErrorIsKept(t *testing.T) {
	r := NewRegistry()
	r.Configure(Config{Path: "/mod"})

	failure := errors.New("init failed")
	runs := 0
	r.Define("ns@1.0.0/bad.js", nil, func(_ *Require, exports Exports, _ *Module, _, _ string) error {
		runs++
		exports["partial"] = true
		return failure
	}, nil)

	var errs []error
	r.Define("ns@1.0.0/a.js", []string{"ns@1.0.0/bad.js"}, func(req *Require, _ Exports, _ *Module, _, _ string) error {
		for i := 0; i < 2; i++ {
			_, err := req.Require("./bad.js")
			errs = append(errs, err)
		}
		return nil
	}, &Options{Map: map[string]string{"./bad.js": "ns@1.0.0/bad.js"}})

	mustUse(t, r, "ns@1.0.0/a.js")

	assert.Equal(t, 1, runs)
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.ErrorIs(t, err, failure)
		assert.Contains(t, err.Error(), "ns@1.0.0/bad.js")
	}
}
