package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

const (
	EventEntryRegistered = "entry_registered"
	EventEntryClosed     = "entry_closed"
	EventParkingChanged  = "parking_changed"
)

// EntryEventPayload is the entry snapshot delivered to subscribers.
type EntryEventPayload struct {
	EntryID         int64      `json:"entry_id"`
	ParkingCode     string     `json:"parking_code"`
	PlateNumber     string     `json:"plate_number"`
	EntryDateTime   time.Time  `json:"entry_date_time"`
	ExitDateTime    *time.Time `json:"exit_date_time,omitempty"`
	ChargedAmount   float64    `json:"charged_amount,omitempty"`
	AvailableSpaces int64      `json:"available_spaces"`
	TotalSpaces     int64      `json:"total_spaces"`
	ChangedBy       string     `json:"changed_by,omitempty"`
}

// ParkingEventPayload is published after admin changes and deletions.
type ParkingEventPayload struct {
	ParkingCode     string `json:"parking_code"`
	AvailableSpaces int64  `json:"available_spaces"`
	TotalSpaces     int64  `json:"total_spaces"`
	Deleted         bool   `json:"deleted,omitempty"`
}

type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

type EventHandler func(event *Event) error

// EventBus is an in-process synchronous pub/sub.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs every handler for the event type, even when some fail, and
// returns their errors joined.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes it. A nil bus is a no-op.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
}
