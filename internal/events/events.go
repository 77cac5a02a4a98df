package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventTokenIssued      = "token_issued"
	EventServiceStarted   = "service_started"
	EventServiceCompleted = "service_completed"
	EventNoShowMarked     = "no_show_marked"
)

// QueueEventPayload describes the minimal entry snapshot for event consumers.
type QueueEventPayload struct {
	EntryID            string `json:"entry_id"`
	Token              string `json:"token"`
	Service            string `json:"service"`
	Status             string `json:"status"`
	PositionInQueue    int    `json:"position_in_queue,omitempty"`
	WaitingTimeMinutes int    `json:"waiting_time_minutes,omitempty"`
	ServiceTimeMinutes int    `json:"service_time_minutes,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for lifecycle events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event. A nil bus is
// a no-op, so publishers need no nil checks.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
