package events

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type subscription struct {
	id      string
	handler Handler
}

// InMemoryBus is a single-process Bus backed by a buffered channel and one
// dispatch goroutine.
type InMemoryBus struct {
	mu      sync.RWMutex // guards closed and sends on eventCh
	closed  bool
	eventCh chan Event
	done    chan struct{}

	subsMu sync.RWMutex
	subs   map[string][]subscription // topic -> subscriptions
}

// NewInMemoryBus creates and starts a bus. queueSize bounds how many
// undelivered events Publish buffers before it blocks; values below 1 use
// 1024.
func NewInMemoryBus(queueSize int) *InMemoryBus {
	if queueSize < 1 {
		queueSize = 1024
	}
	b := &InMemoryBus{
		subs:    make(map[string][]subscription),
		eventCh: make(chan Event, queueSize),
		done:    make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Publish enqueues event under topic. The event's Topic field is set to
// topic.
func (b *InMemoryBus) Publish(topic string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("bus is closed")
	}

	event.Topic = topic
	b.eventCh <- event
	return nil
}

func (b *InMemoryBus) Subscribe(topic string, handler Handler) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return "", fmt.Errorf("bus is closed")
	}

	id := uuid.New().String()
	b.subsMu.Lock()
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})
	b.subsMu.Unlock()
	return id, nil
}

// SubscriberCount reports how many handlers are registered for topic.
func (b *InMemoryBus) SubscriberCount(topic string) int {
	b.subsMu.RLock()
	defer b.subsMu.RUnlock()
	return len(b.subs[topic])
}

func (b *InMemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.eventCh)
	b.mu.Unlock()

	<-b.done
	return nil
}

// dispatch delivers events in publish order. A handler runs to completion
// before the next event is taken off the queue.
func (b *InMemoryBus) dispatch() {
	defer close(b.done)

	for ev := range b.eventCh {
		b.subsMu.RLock()
		subs := b.subs[ev.Topic]
		handlers := make([]Handler, len(subs))
		for i, s := range subs {
			handlers[i] = s.handler
		}
		b.subsMu.RUnlock()

		for _, h := range handlers {
			h(ev)
		}
	}
}
