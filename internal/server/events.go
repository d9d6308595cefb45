package server

import (
	"context"
	"sync"

	"github.com/vinylvision/backend/internal/library"
)

const (
	eventCollectionChange = "collection-change"
	eventHeartbeat        = "heartbeat"
)

// EventDispatcher fans collection change events out to SSE subscribers.
// The collection is a single shared library, so subscribers form one pool.
type EventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*eventSubscriber
	nextID      int64
	bufferSize  int
}

type eventSubscriber struct {
	id     int64
	stream chan library.ChangeEvent
}

func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		subscribers: make(map[int64]*eventSubscriber),
		bufferSize:  16,
	}
}

func (d *EventDispatcher) Subscribe(ctx context.Context) (<-chan library.ChangeEvent, func()) {
	subscriber := &eventSubscriber{
		stream: make(chan library.ChangeEvent, d.bufferSize),
	}
	d.mu.Lock()
	d.nextID++
	subscriber.id = d.nextID
	d.subscribers[subscriber.id] = subscriber
	d.mu.Unlock()

	cleanup := func() {
		d.mu.Lock()
		delete(d.subscribers, subscriber.id)
		d.mu.Unlock()
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers the event to every subscriber, dropping it for slow
// consumers rather than blocking the caller.
func (d *EventDispatcher) Publish(event library.ChangeEvent) {
	if event.Kind == "" {
		return
	}
	d.mu.RLock()
	copies := make([]*eventSubscriber, 0, len(d.subscribers))
	for _, subscriber := range d.subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}
