// Package notify provides the toast notification bus owned by the application root.
package notify

import (
	"context"
	"sync"
	"time"
)

// Kind classifies a toast for presentation.
type Kind string

const (
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Toast is a user-facing notification.
type Toast struct {
	Kind    Kind      `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message,omitempty"`
	Path    string    `json:"path,omitempty"`
	At      time.Time `json:"at"`
}

// Listener receives published toasts. Listeners run synchronously on the publisher's goroutine.
type Listener func(ctx context.Context, t Toast)

// Publisher is the narrow interface handed to producers.
type Publisher interface {
	Publish(ctx context.Context, t Toast)
}

// Bus fans toasts out to subscribed listeners.
// Create one per application, pass it to producers, and Close it on shutdown.
type Bus struct {
	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
	closed    bool
	now       func() time.Time
}

var _ Publisher = (*Bus)(nil)

// NewBus returns an empty, open bus.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[uint64]Listener),
		now:       time.Now,
	}
}

// Subscribe registers fn and returns a function that removes it.
// Subscribing to a closed bus returns a no-op unsubscribe.
func (b *Bus) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers t to every listener. It is a no-op after Close.
func (b *Bus) Publish(ctx context.Context, t Toast) {
	if b == nil {
		return
	}
	if t.At.IsZero() {
		t.At = b.now()
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	snapshot := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		snapshot = append(snapshot, l)
	}
	b.mu.RUnlock()

	for _, l := range snapshot {
		l(ctx, t)
	}
}

// Len returns the number of active listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Close drops all listeners and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	clear(b.listeners)
}
