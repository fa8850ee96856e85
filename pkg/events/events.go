// Package events is a small typed publish/subscribe bus used to announce
// controller results to other listeners on the page (or process).
package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/safequote/safequote/pkg/vehicle"
)

// TYPE_SEARCH_COMPLETED is the envelope type of SearchCompleted on the wire.
const TYPE_SEARCH_COMPLETED = "search_completed"

// SearchCompleted is published after every successful search. It carries the
// filters the search ran with and the vehicles it returned.
type SearchCompleted struct {
	Year            string            `json:"year"`
	Make            string            `json:"make"`
	Model           string            `json:"model"`
	MinSafetyRating int               `json:"minSafetyRating"`
	Vehicles        []vehicle.Vehicle `json:"vehicles"`
	At              time.Time         `json:"at"`
}

// Envelope wraps an event for transports that multiplex event types.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// PanicHandler is told about handlers that panicked.
type PanicHandler func(recovered interface{})

// Bus delivers each published value to every subscriber, synchronously and
// in subscription order.
type Bus[T any] struct {
	mu       sync.RWMutex
	nextID   int
	handlers []subscription[T]
	onPanic  PanicHandler
}

type subscription[T any] struct {
	id int
	fn func(T)
}

// NewBus returns an empty bus. onPanic may be nil.
func NewBus[T any](onPanic PanicHandler) *Bus[T] {
	return &Bus[T]{onPanic: onPanic}
}

// Subscribe registers fn and returns a function removing it again.
func (b *Bus[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, subscription[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.handlers {
		if s.id == id {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return
		}
	}
}

// Len returns the number of current subscribers.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// Publish calls every subscriber with v. A panicking subscriber is reported
// to the PanicHandler and does not stop delivery to the others.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	handlers := make([]subscription[T], len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, s := range handlers {
		b.deliver(s.fn, v)
	}
}

func (b *Bus[T]) deliver(fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil && b.onPanic != nil {
			b.onPanic(fmt.Sprintf("event handler panic: %v", r))
		}
	}()
	fn(v)
}
