// Package events is the in-process change-notification bus. Stores publish
// on it after successful writes and independent UI surfaces subscribe to
// reload their own view of the data. Delivery is synchronous, same-process
// and in registration order; nothing is persisted.
package events

import (
	"log/slog"
	"sync"
)

// Topic is the closed set of change notifications the stores emit.
type Topic int

const (
	TransactionsChanged Topic = iota
	CategoriesChanged
)

func (t Topic) String() string {
	switch t {
	case TransactionsChanged:
		return "transactions changed"
	case CategoriesChanged:
		return "categories changed"
	default:
		return "unknown topic"
	}
}

// Handler reacts to a published topic. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func()

type subscription struct {
	handler Handler
}

// Bus dispatches topics to registered handlers.
type Bus struct {
	mu   sync.Mutex
	subs map[Topic][]*subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]*subscription)}
}

// Subscribe registers handler for topic and returns its deregistration
// func. Calling it more than once is harmless.
func (b *Bus) Subscribe(topic Topic, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{handler: handler}
	b.subs[topic] = append(b.subs[topic], sub)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, s := range list {
			if s == sub {
				b.subs[topic] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
}

// Publish invokes every handler registered for topic at the moment of the
// call, in registration order. A handler that unsubscribes during its own
// invocation does not disturb the in-flight delivery, and a panicking
// handler is logged without stopping the remaining ones.
func (b *Bus) Publish(topic Topic) {
	b.mu.Lock()
	snapshot := make([]*subscription, len(b.subs[topic]))
	copy(snapshot, b.subs[topic])
	b.mu.Unlock()

	for _, sub := range snapshot {
		invoke(topic, sub.handler)
	}
}

func invoke(topic Topic, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panicked", "topic", topic.String(), "panic", r)
		}
	}()
	handler()
}
