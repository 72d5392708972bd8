// Package eventbus carries pipeline stage and status events between
// components of one process.
package eventbus

import (
	"log"
	"sync"
	"time"
)

// Bus is a simple in-process pub/sub event bus. A panicking handler is
// logged and skipped; it never reaches the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
	pending  sync.WaitGroup
	now      func() time.Time
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		handlers: make(map[Topic][]Handler),
		now:      time.Now,
	}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic Topic, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Publish sends an event to all subscribers of the topic.
// Handlers are called synchronously in the order they were registered.
func (b *Bus) Publish(topic Topic, payload any) {
	event, handlers := b.prepare(topic, payload)
	for _, h := range handlers {
		b.call(h, event)
	}
}

// PublishAsync sends an event to all subscribers asynchronously. Wait
// blocks until those deliveries finish.
func (b *Bus) PublishAsync(topic Topic, payload any) {
	event, handlers := b.prepare(topic, payload)
	b.pending.Add(len(handlers))
	for _, h := range handlers {
		go func(h Handler) {
			defer b.pending.Done()
			b.call(h, event)
		}(h)
	}
}

// Wait blocks until every asynchronous delivery has returned.
func (b *Bus) Wait() {
	b.pending.Wait()
}

func (b *Bus) prepare(topic Topic, payload any) (Event, []Handler) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[topic]))
	copy(handlers, b.handlers[topic])
	b.mu.RUnlock()

	return Event{Topic: topic, Payload: payload, Timestamp: b.now()}, handlers
}

func (b *Bus) call(h Handler, event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[eventbus] handler for %s panicked: %v", event.Topic, rec)
		}
	}()
	h(event)
}
