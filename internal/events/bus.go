// Package events is the in-process pub/sub bus for moderation events. The
// dispatch pipeline publishes violations and escalation signals here; the
// containment controller publishes state transitions; the daemon's live
// feed subscribes.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xaoc-labs/modcore/internal/core"
)

// Event types published by the core.
const (
	TypeViolation   = "moderation.violation"
	TypeHighRisk    = "moderation.user_high_risk"
	TypeQuarantined = "moderation.quarantined"
	TypeReleased    = "moderation.released"
	TypeAction      = "moderation.action"
)

// Event is the envelope for all moderation events.
type Event struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Time        time.Time              `json:"time"`
	CommunityID string                 `json:"community_id"`
	UserID      string                 `json:"user_id"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// NewEvent creates an event with a fresh ID.
func NewEvent(eventType string, key core.Key, data map[string]interface{}) *Event {
	return &Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		Time:        time.Now(),
		CommunityID: key.CommunityID,
		UserID:      key.UserID,
		Data:        data,
	}
}

// Emitter is the publishing side of the bus. Components hold this rather
// than the concrete Bus so tests can capture emissions.
type Emitter interface {
	Emit(eventType string, key core.Key, data map[string]interface{})
}

// Bus is an in-process pub/sub event bus. Subscribers receive events in
// real time; publish never blocks — a subscriber with a full buffer misses
// the event.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *Event // eventType -> channels
	allSubs     []chan *Event            // subscribers to all events
	bufferSize  int
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]chan *Event),
		allSubs:     make([]chan *Event, 0),
		bufferSize:  100,
	}
}

// Subscribe creates a channel that receives events of specific types.
// Pass no eventTypes to receive ALL events.
func (b *Bus) Subscribe(eventTypes ...string) chan *Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *Event, b.bufferSize)

	if len(eventTypes) == 0 {
		b.allSubs = append(b.allSubs, ch)
	} else {
		for _, et := range eventTypes {
			b.subscribers[et] = append(b.subscribers[et], ch)
		}
	}

	return ch
}

// Unsubscribe removes a subscription channel and closes it.
func (b *Bus) Unsubscribe(ch chan *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for et, subs := range b.subscribers {
		filtered := make([]chan *Event, 0, len(subs))
		for _, s := range subs {
			if s != ch {
				filtered = append(filtered, s)
			}
		}
		b.subscribers[et] = filtered
	}

	filtered := make([]chan *Event, 0, len(b.allSubs))
	for _, s := range b.allSubs {
		if s != ch {
			filtered = append(filtered, s)
		}
	}
	b.allSubs = filtered

	close(ch)
}

// Publish sends an event to all matching subscribers.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[event.Type] {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}

	for _, ch := range b.allSubs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Emit is a convenience method to create and publish an event.
func (b *Bus) Emit(eventType string, key core.Key, data map[string]interface{}) {
	b.Publish(NewEvent(eventType, key, data))
}

// SubscriberCount returns the total number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := len(b.allSubs)
	for _, subs := range b.subscribers {
		count += len(subs)
	}
	return count
}
