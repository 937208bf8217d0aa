// ABOUTME: Typed publish/subscribe feed for domain events.
// ABOUTME: Listeners are plain callbacks; Subscribe returns an unsubscribe func.
package events

import "sync"

// Feed fans values out to registered callbacks.
type Feed[T any] struct {
	mu         sync.RWMutex
	listeners  map[uint64]func(T)
	nextID     uint64
	replayLast bool
	last       *T
}

// NewFeed creates a feed. With replayLast set, a new subscriber immediately
// receives the most recent value if one has been published.
func NewFeed[T any](replayLast bool) *Feed[T] {
	return &Feed[T]{
		listeners:  make(map[uint64]func(T)),
		replayLast: replayLast,
	}
}

// Subscribe registers fn and returns a function that removes it.
func (f *Feed[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		panic("events: nil listener")
	}

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	var replay *T
	if f.replayLast && f.last != nil {
		v := *f.last
		replay = &v
	}
	f.mu.Unlock()

	if replay != nil {
		fn(*replay)
	}

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

// Publish calls every listener with v. Listeners run outside the lock and may
// subscribe or unsubscribe.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	if f.replayLast {
		last := v
		f.last = &last
	}
	fns := make([]func(T), 0, len(f.listeners))
	for id := uint64(0); id < f.nextID; id++ {
		if fn, ok := f.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of subscribers.
func (f *Feed[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.listeners)
}
