package viewmodel

import (
	"context"
	"sync"
)

// Property is a value whose changes are announced under a fixed name. Declaring
// the name once, next to the value, keeps notification keys from drifting.
type Property[T comparable] struct {
	base  *Base
	name  string
	mu    sync.RWMutex
	value T
}

// NewProperty registers name on b and returns a property holding initial.
func NewProperty[T comparable](b *Base, name string, initial T) *Property[T] {
	b.names.Store(name, struct{}{})
	return &Property[T]{base: b, name: name, value: initial}
}

// Name returns the notification key.
func (p *Property[T]) Name() string {
	return p.name
}

// Get returns the current value.
func (p *Property[T]) Get() T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Set stores v and notifies when it differs from the current value. It
// reports whether a notification was raised.
//
// Call Set on the main loop. The notification is raised after the lock is
// released, so concurrent Sets may notify in a different order than they
// stored.
func (p *Property[T]) Set(v T) bool {
	return p.SetContext(context.Background(), v)
}

// SetContext is Set with ctx passed on to handlers, see NotifyChangedContext.
func (p *Property[T]) SetContext(ctx context.Context, v T) bool {
	p.mu.Lock()
	if p.value == v {
		p.mu.Unlock()
		return false
	}
	p.value = v
	p.mu.Unlock()

	p.base.NotifyChangedContext(ctx, p.name)
	return true
}
