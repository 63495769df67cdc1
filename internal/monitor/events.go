package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSiteAdded      EventType = "site_added"
	EventSiteRemoved    EventType = "site_removed"
	EventSiteUpdated    EventType = "site_updated"
	EventCapture        EventType = "capture"
	EventCaptureFailed  EventType = "capture_failed"
	EventChange         EventType = "change"
	EventAlertDismissed EventType = "alert_dismissed"
)

// Event is published to subscribers whenever monitored state changes.
type Event struct {
	ID    string    `json:"id"`
	Type  EventType `json:"type"`
	Site  string    `json:"site,omitempty"`
	JobID string    `json:"job_id,omitempty"`
	Time  time.Time `json:"time"`

	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Hub fans events out to subscribers. Delivery is best effort: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of events and a function that unsubscribes and
// closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish stamps ev with an id and time and delivers it without blocking.
func (h *Hub) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
