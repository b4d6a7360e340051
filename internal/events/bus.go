package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// subscription describes one consumer: a diagnostic name and an optional
// session filter. An empty sessionID receives every session's events.
type subscription struct {
	name      string
	sessionID string
}

// Bus fans chat lifecycle events out to subscribers. Delivery is best-effort:
// a subscriber whose buffer is full misses the event rather than stalling the
// scheduler or manager that published it.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan *Event]subscription
	closed      atomic.Bool
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[chan *Event]subscription),
	}
}

// Subscribe registers a consumer for every session's events.
func (b *Bus) Subscribe(name string) chan *Event {
	return b.subscribe(subscription{name: name})
}

// SubscribeSession registers a consumer that only sees one session's events.
func (b *Bus) SubscribeSession(name, sessionID string) chan *Event {
	return b.subscribe(subscription{name: name, sessionID: sessionID})
}

func (b *Bus) subscribe(sub subscription) chan *Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *Event, 100)
	b.subscribers[ch] = sub
	return ch
}

// Unsubscribe removes a subscription channel
func (b *Bus) Unsubscribe(ch chan *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, ch)
}

// Publish emits an event to every subscriber whose filter matches.
func (b *Bus) Publish(ctx context.Context, event *Event) error {
	if b.closed.Load() {
		return fmt.Errorf("event bus is closed")
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch, sub := range b.subscribers {
		if sub.sessionID != "" && sub.sessionID != event.SessionID {
			continue
		}
		select {
		case ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Buffer full; this subscriber misses the event.
		}
	}

	return nil
}

// Close shuts down the event bus
func (b *Bus) Close() error {
	b.closed.Store(true)

	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, ch)
	}

	return nil
}

// SubscriberCount returns the number of active subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
