package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"kpireview/internal/domain/notifications"
)

// Hub fans realtime events out to connected stream subscribers and keeps a
// short replay buffer for diagnostics. One hub serves the whole process.
type Hub struct {
	mu         sync.Mutex
	nextID     int
	subs       []*Subscription
	recent     []notifications.Event
	bufferSize int
}

// Subscription is one attached consumer. Close is idempotent; consumers
// detach independently of connection lifecycle.
type Subscription struct {
	id     int
	userID string
	hub    *Hub
	events chan notifications.Event
	once   sync.Once
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 50
	}
	return &Hub{bufferSize: bufferSize}
}

func (h *Hub) Subscribe(userID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		id:     h.nextID,
		userID: userID,
		hub:    h,
		events: make(chan notifications.Event, h.bufferSize),
	}
	h.subs = append(h.subs, sub)
	return sub
}

func (s *Subscription) Events() <-chan notifications.Event {
	return s.events
}

func (s *Subscription) UserID() string {
	return s.userID
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		for i, sub := range s.hub.subs {
			if sub.id == s.id {
				s.hub.subs = append(s.hub.subs[:i], s.hub.subs[i+1:]...)
				break
			}
		}
		close(s.events)
	})
}

// Publish delivers the event to every subscriber in registration order. A
// subscriber whose buffer is full has the event dropped for it alone; the
// rest still receive it. Sends happen under the hub lock so a concurrent
// Close cannot race a delivery; they are non-blocking so the lock is never
// held up by a slow consumer.
func (h *Hub) Publish(event notifications.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !event.Control() {
		h.recent = append(h.recent, event)
		if len(h.recent) > h.bufferSize {
			h.recent = h.recent[len(h.recent)-h.bufferSize:]
		}
	}

	for _, sub := range h.subs {
		select {
		case sub.events <- event:
		default:
			slog.Warn("realtime subscriber buffer full, event dropped", "eventType", event.Type, "userId", sub.userID)
		}
	}
}

// Recent returns the replay buffer, oldest first.
func (h *Hub) Recent() []notifications.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]notifications.Event, len(h.recent))
	copy(out, h.recent)
	return out
}

func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// RunHeartbeat publishes liveness pings until the context ends.
func (h *Hub) RunHeartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Publish(notifications.Heartbeat())
		}
	}
}
