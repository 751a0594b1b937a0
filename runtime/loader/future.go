package loader

// Future is a one-shot completion signal confined to the registry loop.
// Callbacks added after resolution run immediately.
type Future struct {
	done      bool
	callbacks []func()
}

// NewFuture creates an unresolved future
func NewFuture() *Future {
	return &Future{}
}

// Resolved returns a future that is already done
func Resolved() *Future {
	return &Future{done: true}
}

// Done reports whether the future has resolved
func (f *Future) Done() bool {
	return f.done
}

// Then runs fn once the future resolves
func (f *Future) Then(fn func()) {
	if f.done {
		fn()
		return
	}
	f.callbacks = append(f.callbacks, fn)
}

// resolve marks the future done and drains pending callbacks in order.
// Resolving twice is a no-op.
func (f *Future) resolve() {
	if f.done {
		return
	}
	f.done = true
	callbacks := f.callbacks
	f.callbacks = nil
	for _, fn := range callbacks {
		fn()
	}
}
