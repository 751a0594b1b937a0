// Package loader is the runtime half of the module protocol. A Registry
// accepts registrations, resolves ids through per-context version graphs,
// drives modules to readiness and instantiates them on first use.
//
// A Registry is confined to the goroutine that drives its event loop.
// Script fetches run on their own goroutines and only post completions
// back to the loop.
package loader

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Lifecycle events
const (
	EventBeforeReady = "beforeready"
	EventBeforeLoad  = "beforeload"
	EventLoad        = "load"
	EventReady       = "ready"
)

// Config sets loader options. Zero fields leave the current value alone.
type Config struct {
	// Path is the base URL scripts are fetched from
	Path string
	// Graph replaces the graph table
	Graph GraphTable
	// Resolve overrides id to URL mapping
	Resolve func(id string) string
	// Loaded lists evidence of packages already present on the page
	Loaded []string
}

// Registry owns every definition, instance and graph of one session
type Registry struct {
	defs    map[string]*Definition
	graphs  GraphTable
	pkgs    []string
	loaded  []string
	path    string
	resolve func(id string) string
	guid    int

	handlers map[string][]func(string)

	fetcher  Fetcher
	ctx      context.Context
	posts    chan completion
	inflight int
	logger   *zap.Logger
}

// Option configures a Registry
type Option func(*Registry)

// WithFetcher sets the script fetcher
func WithFetcher(f Fetcher) Option {
	return func(r *Registry) { r.fetcher = f }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithContext sets the context fetches run under
func WithContext(ctx context.Context) Option {
	return func(r *Registry) { r.ctx = ctx }
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		defs:     make(map[string]*Definition),
		graphs:   GraphTable{GlobalGraphKey: &Graph{}},
		handlers: make(map[string][]func(string)),
		fetcher:  Catalog{},
		ctx:      context.Background(),
		posts:    make(chan completion, 64),
		logger:   zap.NewNop(),
		guid:     1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Configure applies the non-zero fields of cfg
func (r *Registry) Configure(cfg Config) {
	if cfg.Path != "" {
		r.path = strings.TrimRight(cfg.Path, "/") + "/"
	}
	if cfg.Graph != nil {
		r.graphs = cfg.Graph
		r.graphs.global()
	}
	if cfg.Resolve != nil {
		r.resolve = cfg.Resolve
	}
	if cfg.Loaded != nil {
		r.loaded = append([]string(nil), cfg.Loaded...)
	}
}

// Path returns the normalized base path
func (r *Registry) Path() string {
	return r.path
}

// On registers a lifecycle event handler
func (r *Registry) On(event string, handler func(data string)) {
	r.handlers[event] = append(r.handlers[event], handler)
}

func (r *Registry) emit(event, data string) {
	r.logger.Debug("loader event", zap.String("event", event), zap.String("module", data))
	for _, h := range r.handlers[event] {
		h(data)
	}
}

// Define registers a module. A main module is reachable by both its id
// and its package id. Redefining an already defined id has no effect
// beyond merging options.
func (r *Registry) Define(id string, deps []string, factory Factory, opts *Options) {
	parsed := ParseModuleID(id)
	main := opts != nil && opts.Main

	var def *Definition
	if main {
		def = r.defs[parsed.Package]
	}
	if def == nil {
		def = r.defs[parsed.ID]
	}
	if def == nil {
		def = newDefinition(parsed)
	}
	r.defs[parsed.ID] = def

	if main {
		r.defs[parsed.Package] = def
		def.relocate(parsed)
	}
	def.apply(opts)

	if def.factory != nil {
		return
	}
	def.factory = factory
	def.deps = deps
	for _, dep := range deps {
		def.versions[versionKey(dep)] = dep
	}
	r.logger.Debug("module defined", zap.String("id", def.ID), zap.Int("deps", len(deps)))
	def.runLoadQueue()
}

// Definition returns the registration for id, if any
func (r *Registry) Definition(id string) (*Definition, bool) {
	def, ok := r.defs[id]
	return def, ok
}

// definition returns the registration for parsed, creating a placeholder
// the first time an id is referenced.
func (r *Registry) definition(parsed ParsedID) *Definition {
	if def, ok := r.defs[parsed.ID]; ok {
		return def
	}
	def := newDefinition(parsed)
	r.defs[parsed.ID] = def
	return def
}

// parse resolves id within the context of env, applying env's alias map,
// version map and graph. A nil env is the top-level context.
func (r *Registry) parse(id string, env *Instance) (ParsedID, error) {
	origin := id
	if id == "" {
		return ParsedID{}, nullID()
	}

	if env != nil {
		if mapped, ok := env.Map[id]; ok {
			id = mapped
		}
	}
	if isRelative(id) {
		return ParsedID{}, moduleNotFound(origin)
	}
	if env != nil {
		if versioned, ok := env.versions[id]; ok {
			id = versioned
		}
	}

	parsed := ParseModuleID(id)
	if env != nil && parsed.Package == env.Package {
		parsed.graph = env.graph
		return parsed, nil
	}

	var from *Graph
	if env != nil {
		from = env.graph
	}
	sub := r.graphs.subGraph(parsed.Package, from)
	parsed.graph = sub
	if sub.Version != "" {
		parsed.Version = sub.Version
	}
	parsed.format()
	return parsed, nil
}

// getModule returns the instance id resolves to within env. Missing
// instances are created unless strict is set.
func (r *Registry) getModule(id string, env *Instance, strict bool) (*Instance, error) {
	parsed, err := r.parse(id, env)
	if err != nil {
		return nil, err
	}
	def := r.definition(parsed)

	key := parsed.ID
	if def.Main {
		key = parsed.Package
	}

	graph := parsed.graph
	if inst := graph.lookup(key); inst != nil {
		return inst, nil
	}
	if strict {
		return nil, moduleNotFound(id)
	}

	inst := newInstance(def, graph, r.guid)
	r.guid++
	graph.store(key, inst)
	return inst, nil
}

// Module returns the instance id resolves to from the top-level context,
// creating it if needed.
func (r *Registry) Module(id string) (*Instance, error) {
	return r.getModule(id, nil, false)
}
