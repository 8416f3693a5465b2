package voice

import "sync"

type listenerEntry struct {
	id uint64
	fn Listener
}

// Emitter fans events out to subscribed listeners in subscription order.
type Emitter struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []listenerEntry
}

// Subscribe registers l and returns its subscription.
func (e *Emitter) Subscribe(l Listener) *Subscription {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listenerEntry{id: id, fn: l})
	e.mu.Unlock()

	return &Subscription{cancel: func() { e.remove(id) }}
}

// Emit delivers ev to every current listener. Listeners run on the caller's
// goroutine, outside the emitter lock.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	snapshot := make([]Listener, len(e.listeners))
	for i, entry := range e.listeners {
		snapshot[i] = entry.fn
	}
	e.mu.Unlock()

	for _, fn := range snapshot {
		fn(ev)
	}
}

func (e *Emitter) listenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

func (e *Emitter) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, entry := range e.listeners {
		if entry.id == id {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Subscription is a scoped listener registration.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Close removes the listener. It is safe to call more than once.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}
