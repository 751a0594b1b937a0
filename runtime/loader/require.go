package loader

// Require is the dependency loader injected into a factory. It resolves
// ids in the context of the module that owns it.
type Require struct {
	r   *Registry
	env *Instance
}

func newRequire(r *Registry, env *Instance) *Require {
	return &Require{r: r, env: env}
}

// Require returns the exports of id, instantiating it on first use. Ids
// carrying an explicit version are rejected; only specifiers declared by
// the owning module resolve.
func (q *Require) Require(id string) (any, error) {
	if hasVersion(id) {
		return nil, versionProhibited(id)
	}
	inst, err := q.r.getModule(id, q.env, true)
	if err != nil {
		return nil, err
	}
	return q.r.exportsOf(inst)
}

// Async loads a single module and calls cb with its exports once it is
// ready. A foreign module must be its package's main module.
func (q *Require) Async(id string, cb func(exports any, err error)) error {
	if cb == nil {
		return nil
	}
	if hasVersion(id) {
		return versionProhibited(id)
	}
	inst, err := q.r.getModule(id, q.env, false)
	if err != nil {
		return err
	}
	if !inst.Main {
		if inst.Name != q.env.Name {
			return forbiddenAsync(id)
		}
		inst.async = true
	}
	q.r.use(inst, cb)
	return nil
}

// Resolve returns the URL backing path without loading it
func (q *Require) Resolve(path string) (string, error) {
	parsed, err := q.r.parse(path, q.env)
	if err != nil {
		return "", err
	}
	return q.r.URL(parsed.ID)
}
