package server

import (
	"context"
	"sync"

	"github.com/inkforge/boardsync/internal/mutation"
)

// BroadcastHub fans mutation events out to every subscriber of a canvas,
// including the publisher. Delivery is best effort: a subscriber whose
// buffer is full misses the event rather than blocking the publisher, and
// clients reconcile through idempotent merges and snapshot loads.
type BroadcastHub struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*hubSubscriber
	nextID      int64
	bufferSize  int
}

type hubSubscriber struct {
	id     int64
	stream chan mutation.Event
}

// NewBroadcastHub constructs an empty hub.
func NewBroadcastHub() *BroadcastHub {
	return &BroadcastHub{
		subscribers: make(map[string]map[int64]*hubSubscriber),
		bufferSize:  64,
	}
}

// Subscribe registers a stream for one canvas. The stream stays open until
// the context is cancelled or the returned cleanup runs.
func (h *BroadcastHub) Subscribe(ctx context.Context, canvasID string) (<-chan mutation.Event, func()) {
	if canvasID == "" {
		ch := make(chan mutation.Event)
		close(ch)
		return ch, func() {}
	}
	subscriber := &hubSubscriber{
		id:     h.nextSequence(),
		stream: make(chan mutation.Event, h.bufferSize),
	}
	h.registerSubscriber(canvasID, subscriber)
	cleanup := func() {
		h.unregisterSubscriber(canvasID, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers the event to every subscriber of its canvas. The
// publisher's own subscription receives the echo; inbound filtering is the
// client's job. Sends happen under the read lock: unregister closes streams
// under the write lock, so a send never races a close.
func (h *BroadcastHub) Publish(event mutation.Event) error {
	if event.CanvasID == "" || event.Type == "" {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, subscriber := range h.subscribers[event.CanvasID] {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
	return nil
}

// SubscriberCount reports how many streams are attached to the canvas.
func (h *BroadcastHub) SubscriberCount(canvasID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[canvasID])
}

func (h *BroadcastHub) nextSequence() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	return h.nextID
}

func (h *BroadcastHub) registerSubscriber(canvasID string, subscriber *hubSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[canvasID]; !ok {
		h.subscribers[canvasID] = make(map[int64]*hubSubscriber)
	}
	h.subscribers[canvasID][subscriber.id] = subscriber
}

// unregisterSubscriber removes the subscriber and closes its stream so
// consumers ranging over it terminate. Repeated calls for the same id are
// no-ops; the close only happens on the call that removes the entry.
func (h *BroadcastHub) unregisterSubscriber(canvasID string, subscriberID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subscribers := h.subscribers[canvasID]
	subscriber, ok := subscribers[subscriberID]
	if !ok {
		return
	}
	delete(subscribers, subscriberID)
	if len(subscribers) == 0 {
		delete(h.subscribers, canvasID)
	}
	close(subscriber.stream)
}
