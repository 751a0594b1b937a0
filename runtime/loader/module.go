package loader

// Exports is the default exports container handed to a factory
type Exports map[string]any

// Factory is a module body. It runs at most once per instance, the first
// time the instance is dereferenced.
type Factory func(require *Require, exports Exports, module *Module, filename, dirname string) error

// Options are the recognized registration options
type Options struct {
	Main      bool
	Entries   []string
	AsyncDeps []string
	Map       map[string]string
}

// Module is the descriptor a factory receives. Replacing Exports replaces
// what dependents observe from then on.
type Module struct {
	ID       string
	Filename string
	Exports  any
}

// Definition is the canonical registration of one module id. It is shared
// by every instance derived from it.
type Definition struct {
	Name    string
	Version string
	Path    string
	ID      string
	Package string
	Main    bool

	Entries   []string
	AsyncDeps []string
	Map       map[string]string

	factory Factory
	deps    []string
	// versions maps unversioned dependency keys to their declared ids
	versions map[string]string

	loadQueue  []func()
	loadClosed bool
	downloaded bool
	facade     bool
	async      bool
}

func newDefinition(p ParsedID) *Definition {
	return &Definition{
		Name:     p.Name,
		Version:  p.Version,
		Path:     p.Path,
		ID:       p.ID,
		Package:  p.Package,
		Main:     p.IsMain(),
		versions: make(map[string]string),
	}
}

// Defined reports whether a factory has been registered
func (d *Definition) Defined() bool {
	return d.factory != nil
}

// Deps returns the declared dependency ids
func (d *Definition) Deps() []string {
	return d.deps
}

func (d *Definition) relocate(p ParsedID) {
	d.Name = p.Name
	d.Version = p.Version
	d.Path = p.Path
	d.ID = p.ID
	d.Package = p.Package
}

func (d *Definition) apply(opts *Options) {
	if opts == nil {
		return
	}
	if opts.Main {
		d.Main = true
	}
	if opts.Entries != nil {
		d.Entries = opts.Entries
	}
	if opts.AsyncDeps != nil {
		d.AsyncDeps = opts.AsyncDeps
	}
	if opts.Map != nil {
		d.Map = opts.Map
	}
}

// runLoadQueue closes the load queue and answers every waiting loader
func (d *Definition) runLoadQueue() {
	queue := d.loadQueue
	d.loadQueue = nil
	d.loadClosed = true
	for _, fn := range queue {
		fn()
	}
}

// Instance is a live module record bound to one graph. Definition fields
// are read through the embedded pointer; readiness and exports are the
// instance's own.
type Instance struct {
	*Definition

	GUID  int
	graph *Graph

	ready   *Future
	walking bool
	waiting []*Instance
	loaded  bool
	module  *Module
	err     error

	facade bool
	async  bool
}

func newInstance(def *Definition, graph *Graph, guid int) *Instance {
	return &Instance{
		Definition: def,
		GUID:       guid,
		graph:      graph,
		ready:      NewFuture(),
	}
}

// Ready reports whether every dependency of the instance is ready
func (i *Instance) Ready() bool {
	return i.ready.Done()
}

// Loaded reports whether the factory has been invoked
func (i *Instance) Loaded() bool {
	return i.loaded
}

// label is the main-aware id used in lifecycle events
func (i *Instance) label() string {
	if i.Main {
		return i.Package
	}
	return i.ID
}
