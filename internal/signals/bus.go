package signals

import "sync"

// Listener is a callback that reacts to incoming signals.
type Listener func(Signal)

type typedListener struct {
	handle   int
	typ      Type
	callback Listener
}

// Bus is a synchronous publish/subscribe fan-out with type filtering.
// Each publish delivers to every matching listener, typed and untyped
// alike, in a single pass over registration order. The engine
// pipeline is single-threaded; the lock only guards subscription from the
// boundary threads.
type Bus struct {
	mu         sync.RWMutex
	listeners  []typedListener // typ == "" means "all signals"
	nextHandle int
}

// NewBus constructs an empty signal bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a listener for every signal and returns a handle.
func (b *Bus) Subscribe(listener Listener) int {
	return b.SubscribeTyped("", listener)
}

// SubscribeTyped registers a listener for one signal type.
func (b *Bus) SubscribeTyped(typ Type, listener Listener) int {
	if listener == nil {
		return -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	handle := b.nextHandle
	b.nextHandle++
	b.listeners = append(b.listeners, typedListener{handle: handle, typ: typ, callback: listener})
	return handle
}

// Unsubscribe removes the listener identified by the handle.
func (b *Bus) Unsubscribe(handle int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, l := range b.listeners {
		if l.handle == handle {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Publish delivers the signal to all matching listeners synchronously.
func (b *Bus) Publish(sig Signal) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, l := range b.listeners {
		if l.typ == "" || l.typ == sig.Type {
			l.callback(sig)
		}
	}
}

// PublishAll publishes an ordered batch of signals.
func (b *Bus) PublishAll(sigs []Signal) {
	for _, sig := range sigs {
		b.Publish(sig)
	}
}
