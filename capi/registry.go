package main

import (
	"sync"
)

// invalidHandle is never issued; C callers see it as a NULL handle.
const invalidHandle uintptr = 0

// registry maps opaque handles handed to C callers onto Go values. Handles
// are never reused within a process.
type registry[T any] struct {
	mu    sync.RWMutex
	items map[uintptr]T
	next  uintptr
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{
		items: make(map[uintptr]T),
		next:  1,
	}
}

func (r *registry[T]) add(v T) uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.next
	r.next++
	r.items[h] = v
	return h
}

func (r *registry[T]) get(h uintptr) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.items[h]
	return v, ok
}

// remove deletes the handle and returns what it referred to, so a second
// destroy of the same handle is a no-op.
func (r *registry[T]) remove(h uintptr) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.items[h]
	if ok {
		delete(r.items, h)
	}
	return v, ok
}

func (r *registry[T]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
