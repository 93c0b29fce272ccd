package events

import (
	"fmt"
	"sync"

	"tradeapi-connector/src/logger"
)

// -----------------------------------------------------------------------------

// Handler wraps a callback so it has a stable identity: subscribing the same
// *Handler twice keeps one registration.
type Handler[T any] struct {
	fn func(T)
}

func NewHandler[T any](fn func(T)) *Handler[T] {
	return &Handler[T]{fn: fn}
}

// -----------------------------------------------------------------------------

// Event is an ordered set of handlers for one kind of notification.
type Event[T any] struct {
	name   string
	logger *logger.Logger

	mu       sync.RWMutex
	handlers []*Handler[T]
	index    map[*Handler[T]]struct{}
}

// NewEvent creates a dispatcher. log may be nil, in which case handler panics
// are swallowed silently.
func NewEvent[T any](name string, log *logger.Logger) *Event[T] {
	return &Event[T]{
		name:   name,
		logger: log,
		index:  make(map[*Handler[T]]struct{}),
	}
}

// -----------------------------------------------------------------------------

// Subscribe adds h unless it is already present.
func (e *Event[T]) Subscribe(h *Handler[T]) {
	if h == nil || h.fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.index[h]; ok {
		return
	}
	e.index[h] = struct{}{}
	e.handlers = append(e.handlers, h)
}

// SubscribeFunc registers fn and returns its handler for later Unsubscribe.
func (e *Event[T]) SubscribeFunc(fn func(T)) *Handler[T] {
	h := NewHandler(fn)
	e.Subscribe(h)
	return h
}

// -----------------------------------------------------------------------------

// Unsubscribe removes h. Absent handlers are ignored.
func (e *Event[T]) Unsubscribe(h *Handler[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.index[h]; !ok {
		return
	}
	delete(e.index, h)
	for i, existing := range e.handlers {
		if existing == h {
			// copy so snapshots taken by running triggers stay intact
			next := make([]*Handler[T], 0, len(e.handlers)-1)
			next = append(next, e.handlers[:i]...)
			e.handlers = append(next, e.handlers[i+1:]...)
			break
		}
	}
}

// -----------------------------------------------------------------------------

// Len returns the number of registered handlers.
func (e *Event[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}

// -----------------------------------------------------------------------------

// Trigger invokes every handler registered at the moment of the call, in
// subscription order. A panicking handler is logged and skipped.
func (e *Event[T]) Trigger(value T) {
	e.mu.RLock()
	snapshot := e.handlers
	e.mu.RUnlock()

	for _, h := range snapshot {
		e.invoke(h, value)
	}
}

func (e *Event[T]) invoke(h *Handler[T], value T) {
	defer func() {
		if r := recover(); r != nil && e.logger != nil {
			e.logger.Error("handler of %s panicked: %v", e.name, fmt.Sprint(r))
		}
	}()
	h.fn(value)
}
