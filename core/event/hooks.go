// Package event holds the callback lists that streams, sockets and processes
// use for their notifications. None of the types are safe for concurrent
// use: owners only touch them from their loop goroutine.
package event

// Hooks is an ordered list of callbacks.
type Hooks[A any] struct {
	seq     uint64
	entries []entry[A]
}

type entry[A any] struct {
	id uint64
	fn func(A)
}

// Add appends fn and returns a function removing it again.
func (h *Hooks[A]) Add(fn func(A)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	h.seq++
	id := h.seq
	h.entries = append(h.entries, entry[A]{id: id, fn: fn})
	return func() {
		for i := range h.entries {
			if h.entries[i].id == id {
				h.entries = append(h.entries[:i:i], h.entries[i+1:]...)
				return
			}
		}
	}
}

// Fire calls every callback registered at the time of the call, in order.
func (h *Hooks[A]) Fire(a A) {
	if len(h.entries) == 0 {
		return
	}
	snapshot := make([]entry[A], len(h.entries))
	copy(snapshot, h.entries)
	for _, e := range snapshot {
		e.fn(a)
	}
}

// Len returns the number of registered callbacks.
func (h *Hooks[A]) Len() int {
	return len(h.entries)
}

// Clear removes all callbacks.
func (h *Hooks[A]) Clear() {
	h.entries = nil
}

// Once is a terminal notification. It fires at most once; callbacks added
// after it fired are handed to Post with the recorded value.
type Once[A any] struct {
	Post func(func())

	hooks Hooks[A]
	fired bool
	value A
}

// Add registers fn. If the notification already fired, fn is scheduled
// with the recorded value and the returned cancel func is a no-op.
func (o *Once[A]) Add(fn func(A)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	if o.fired {
		v := o.value
		if o.Post != nil {
			o.Post(func() { fn(v) })
		} else {
			fn(v)
		}
		return func() {}
	}
	return o.hooks.Add(fn)
}

// Fire latches the notification and calls the registered callbacks.
// It reports false if the notification already fired.
func (o *Once[A]) Fire(a A) bool {
	if o.fired {
		return false
	}
	o.fired = true
	o.value = a
	o.hooks.Fire(a)
	o.hooks.Clear()
	return true
}

// Fired reports whether Fire was called.
func (o *Once[A]) Fired() bool {
	return o.fired
}

// Void adapts a callback without arguments to a Hooks callback.
func Void(fn func()) func(struct{}) {
	if fn == nil {
		return nil
	}
	return func(struct{}) { fn() }
}
