// Package syncx provides extended synchronization primitives
package syncx

import "sync"

// Guard wraps a mutex-protected value with scoped accessors.
type Guard[T any] struct {
	mu    sync.Mutex
	value T
}

// NewGuard creates a guarded value.
func NewGuard[T any](initial T) *Guard[T] {
	return &Guard[T]{value: initial}
}

// Get returns a copy of the value (T should be a value type or immutable).
func (g *Guard[T]) Get() T {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Set atomically replaces the value.
func (g *Guard[T]) Set(v T) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

// Update executes fn while holding the lock; fn may mutate in place and
// returns a result.
func (g *Guard[T]) Update(fn func(*T) bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(&g.value)
}
