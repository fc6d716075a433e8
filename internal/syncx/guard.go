// Package syncx provides synchronization helpers for the runner and review server.
package syncx

import "sync"

// Guard holds a value behind a RWMutex.
type Guard[T any] struct {
	mu    sync.RWMutex
	value T
	set   bool
}

// NewGuard creates a guard holding initial.
func NewGuard[T any](initial T) *Guard[T] {
	return &Guard[T]{value: initial, set: true}
}

// Get returns the value and whether one was ever stored.
func (g *Guard[T]) Get() (T, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value, g.set
}

// Set replaces the value.
func (g *Guard[T]) Set(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
	g.set = true
}

// Update mutates the value in place under the write lock.
func (g *Guard[T]) Update(fn func(*T)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.value)
	g.set = true
}
