package loader

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// pathStack is the chain of instances currently being prepared, innermost
// first. It is never mutated; push returns a new stack.
type pathStack []*Instance

func (s pathStack) push(inst *Instance) pathStack {
	next := make(pathStack, 0, len(s)+1)
	next = append(next, inst)
	return append(next, s...)
}

func (s pathStack) contains(inst *Instance) bool {
	for _, i := range s {
		if i == inst {
			return true
		}
	}
	return false
}

// advance drives inst towards readiness and returns its ready future.
//
// An undefined instance is handed to the script loader and re-entered
// once its definition registers. A dependency that is part of a cycle
// counts as satisfied: either it is on the path stack, or an earlier walk
// left it waiting on inst.
func (r *Registry) advance(inst *Instance, stack pathStack) *Future {
	r.emit(EventBeforeReady, r.readyLabel(inst))

	if !inst.Defined() {
		r.emit(EventBeforeLoad, inst.ID)
		r.load(inst, func() {
			r.emit(EventLoad, inst.label())
			r.advance(inst, stack)
		})
		return inst.ready
	}

	if len(inst.deps) == 0 || inst.ready.Done() {
		r.markReady(inst)
		return inst.ready
	}

	// preparation already under way; callers wait on the same future
	if inst.walking {
		return inst.ready
	}
	inst.walking = true

	pending := len(inst.deps)
	satisfy := func() {
		pending--
		if pending == 0 {
			r.markReady(inst)
		}
	}

	stack = stack.push(inst)
	for _, dep := range inst.deps {
		child, err := r.getModule(dep, inst, false)
		if err != nil {
			// surfaces again when the factory dereferences dep
			r.logger.Debug("dependency unresolvable",
				zap.String("module", inst.ID),
				zap.String("dependency", dep),
				zap.Error(err))
			satisfy()
			continue
		}
		if stack.contains(child) || r.waitsOn(child, inst) {
			satisfy()
			continue
		}
		inst.waiting = append(inst.waiting, child)
		r.advance(child, stack).Then(satisfy)
	}
	return inst.ready
}

// waitsOn reports whether from is still waiting, directly or through other
// pending instances, on target.
func (r *Registry) waitsOn(from, target *Instance) bool {
	seen := map[*Instance]bool{}
	var visit func(*Instance) bool
	visit = func(i *Instance) bool {
		if seen[i] || i.ready.Done() {
			return false
		}
		seen[i] = true
		for _, w := range i.waiting {
			if w == target || visit(w) {
				return true
			}
		}
		return false
	}
	return visit(from)
}

func (r *Registry) markReady(inst *Instance) {
	if !inst.ready.Done() {
		r.emit(EventReady, r.readyLabel(inst))
	}
	inst.ready.resolve()
}

func (r *Registry) readyLabel(inst *Instance) string {
	return inst.label() + ":" + strconv.Itoa(inst.GUID)
}

// exportsOf instantiates inst on first use. The exports container and the
// loaded flag are set before the factory runs, so a re-entrant dereference
// during the factory observes the partial exports. A factory error is kept
// and returned to every later caller; the factory is not retried.
func (r *Registry) exportsOf(inst *Instance) (any, error) {
	if inst.loaded {
		return inst.module.Exports, inst.err
	}
	if !inst.Defined() {
		return nil, moduleNotFound(inst.ID)
	}

	filename := r.filename(inst.ID)
	exports := Exports{}
	inst.loaded = true
	inst.module = &Module{ID: inst.ID, Filename: filename, Exports: exports}

	if err := inst.factory(newRequire(r, inst), exports, inst.module, filename, dirname(filename)); err != nil {
		inst.err = fmt.Errorf("module %s failed: %w", inst.ID, err)
	}
	return inst.module.Exports, inst.err
}

// filename is the __filename handed to a factory. Without a configured
// path or resolver it is the id laid out as a relative file path.
func (r *Registry) filename(id string) string {
	if url, err := r.URL(id); err == nil {
		return url
	}
	return versionToDir(id)
}
