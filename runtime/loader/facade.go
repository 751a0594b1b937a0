package loader

import "go.uber.org/zap"

// initExport is the export a facade calls after loading
const initExport = "init"

// Initializer is implemented by exports values that initialize themselves
// with facade data.
type Initializer interface {
	Init(data any) error
}

// Facade loads entry and calls the init hook of its exports with data.
// Failures after loading starts are logged; errors resolving entry are
// returned.
func (r *Registry) Facade(entry string, data any) error {
	return r.useEntry(entry, func(exports any, err error) {
		if err != nil {
			r.logger.Error("facade failed", zap.String("entry", entry), zap.Error(err))
			return
		}
		if err := callInit(exports, data); err != nil {
			r.logger.Error("facade init failed", zap.String("entry", entry), zap.Error(err))
		}
	})
}

// Use loads id from the top-level context and calls cb with its exports
func (r *Registry) Use(id string, cb func(exports any, err error)) error {
	return r.useEntry(id, cb)
}

func (r *Registry) useEntry(id string, cb func(any, error)) error {
	inst, err := r.getModule(id, nil, false)
	if err != nil {
		return err
	}
	inst.facade = true
	r.use(inst, cb)
	return nil
}

// use readies inst then hands its exports to cb
func (r *Registry) use(inst *Instance, cb func(any, error)) {
	r.advance(inst, nil).Then(func() {
		cb(r.exportsOf(inst))
	})
}

func callInit(exports any, data any) error {
	switch v := exports.(type) {
	case Initializer:
		return v.Init(data)
	case Exports:
		switch fn := v[initExport].(type) {
		case func(any) error:
			return fn(data)
		case func(any):
			fn(data)
		}
	case map[string]any:
		return callInit(Exports(v), data)
	}
	return nil
}
