// Package eventbus carries the in-process events between the infra
// adapters and the service loop: optimization triggers in, run
// completions out.
package eventbus

import (
	"sync"
	"time"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
)

// TriggerEvent requests a dispatch run. Source names the origin
// (startup, schedule, mqtt, cli).
type TriggerEvent struct {
	Source string
	Time   time.Time
}

// RunCompletedEvent reports the outcome of a finished run.
type RunCompletedEvent struct {
	RunID  string
	Status model.RunStatus
	Time   time.Time
}

// Bus is a type-safe publish/subscribe bus. Delivery is non-blocking:
// a subscriber that falls behind its buffer misses events rather than
// stalling the publisher.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   map[int]chan T
	nextID int
	closed bool
}

func New[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[int]chan T)}
}

// Publish fans the event out to every subscriber.
func (b *Bus[T]) Publish(e T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a subscriber and returns its channel together
// with a cancel function that removes and closes it. Cancel is safe to
// call after Close.
func (b *Bus[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 8)
	b.mu.Lock()
	if b.closed {
		close(ch)
		b.mu.Unlock()
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			if !b.closed {
				close(sub)
			}
		}
	}
}

// Close closes every subscriber channel. Later publishes are dropped.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
