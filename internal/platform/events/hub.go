// Package events fans out per-topic events (one topic per voice note) to
// Server-Sent Events and WebSocket subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	TypeHeartbeat     = "heartbeat"
	TypeTranscription = "transcription"
	TypeEnded         = "ended"
)

// Event is one notification on a topic. Data is the JSON payload delivered
// to SSE clients as the event's data line.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals data into an event for topic.
func NewEvent(topic, eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return Event{
		Type:      eventType,
		Topic:     topic,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// Publisher delivers events to the subscribers of their topic.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber receives the events of one topic on Send until unsubscribed.
type Subscriber struct {
	ID    string
	Topic string
	Send  chan Event
}

// Hub tracks subscribers per topic. All operations are safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*Subscriber]struct{}
	bufSize int
}

func NewHub() *Hub {
	return &Hub{
		topics:  make(map[string]map[*Subscriber]struct{}),
		bufSize: 64,
	}
}

// Subscribe registers a new subscriber on topic.
func (h *Hub) Subscribe(topic string) *Subscriber {
	s := &Subscriber{
		ID:    uuid.NewString(),
		Topic: topic,
		Send:  make(chan Event, h.bufSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Subscriber]struct{})
	}
	h.topics[topic][s] = struct{}{}
	return s
}

// Unsubscribe removes s and closes its Send channel. Calling it twice is a no-op.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[s.Topic]
	if !ok {
		return
	}
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(h.topics, s.Topic)
	}
	close(s.Send)
}

// Publish sends event to every subscriber of event.Topic. A subscriber whose
// buffer is full misses the event rather than blocking the publisher.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.topics[event.Topic] {
		select {
		case s.Send <- event:
		default:
		}
	}
	return nil
}

// SubscriberCount returns the number of subscribers on topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// TopicCount returns the number of topics with at least one subscriber.
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}
