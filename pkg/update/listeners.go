package update

import (
	"sync"
	"sync/atomic"
)

// listenerHub fans one native install-state stream out to any number of
// listeners. The native subscription exists only while at least one
// listener is registered. No lock is held while calling into the backend
// or into listeners, so both may re-enter add and remove.
type listenerHub struct {
	subscribe func(func(InstallState)) (func(), error)
	onError   func(error)

	mu        sync.Mutex
	next      uint64
	listeners []*hubEntry
	cancel    func()
	opening   bool
}

type hubEntry struct {
	id      uint64
	fn      func(InstallState)
	removed atomic.Bool
}

func newListenerHub(subscribe func(func(InstallState)) (func(), error), onError func(error)) *listenerHub {
	return &listenerHub{subscribe: subscribe, onError: onError}
}

// add registers fn and returns its Subscription. The first registration
// opens the native subscription; if that fails the listener stays
// registered and the next registration retries.
func (h *listenerHub) add(fn func(InstallState)) Subscription {
	h.mu.Lock()
	h.next++
	id := h.next
	h.listeners = append(h.listeners, &hubEntry{id: id, fn: fn})
	open := h.cancel == nil && !h.opening
	if open {
		h.opening = true
	}
	h.mu.Unlock()

	if open {
		h.open()
	}
	return &hubSubscription{hub: h, id: id}
}

func (h *listenerHub) open() {
	cancel, err := h.subscribe(h.dispatch)

	h.mu.Lock()
	h.opening = false
	if err != nil {
		h.mu.Unlock()
		if h.onError != nil {
			h.onError(err)
		}
		return
	}
	if len(h.listeners) == 0 {
		// Every listener left while the subscription was being opened.
		h.mu.Unlock()
		cancel()
		return
	}
	h.cancel = cancel
	h.mu.Unlock()
}

func (h *listenerHub) remove(id uint64) {
	h.mu.Lock()
	for i, e := range h.listeners {
		if e.id == id {
			e.removed.Store(true)
			h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
			break
		}
	}
	var cancel func()
	if len(h.listeners) == 0 {
		cancel = h.cancel
		h.cancel = nil
	}
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// dispatch delivers s to a snapshot of the current listeners, skipping any
// removed by an earlier listener during the same delivery.
func (h *listenerHub) dispatch(s InstallState) {
	h.mu.Lock()
	targets := make([]*hubEntry, len(h.listeners))
	copy(targets, h.listeners)
	h.mu.Unlock()

	for _, e := range targets {
		if e.removed.Load() {
			continue
		}
		e.fn(s)
	}
}

func (h *listenerHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

func (h *listenerHub) active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancel != nil
}

type hubSubscription struct {
	hub  *listenerHub
	id   uint64
	once sync.Once
}

func (s *hubSubscription) Remove() {
	s.once.Do(func() { s.hub.remove(s.id) })
}
