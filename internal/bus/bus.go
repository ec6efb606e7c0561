// Package bus distributes host events: engine state changes, utterance
// lifecycle and adapter churn. Each subscriber drains its own buffered
// channel on a dedicated goroutine, so publishing from the frame loop
// never blocks; a subscriber that falls behind loses events instead.
package bus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultHistorySize is how many recent events the bus retains for
	// the bridge debug endpoint.
	DefaultHistorySize = 256

	// subscriberBuffer absorbs roughly a second of bursts at frame rate.
	subscriberBuffer = 64
)

// EventType identifies a class of host event. Subscribing to the empty
// type receives every event.
type EventType string

const (
	// Motion events
	EventTypeStateChanged EventType = "motion.state_changed"
	EventTypePhaseChanged EventType = "motion.phase_changed"
	EventTypeBlinkStarted EventType = "motion.blink_started"

	// Lip-sync events
	EventTypeUtteranceStarted  EventType = "lipsync.utterance_started"
	EventTypeUtteranceFinished EventType = "lipsync.utterance_finished"
	EventTypeStrategyResolved  EventType = "lipsync.strategy_resolved"
	EventTypeStrategyDegraded  EventType = "lipsync.strategy_degraded"
	EventTypeCueTrackRejected  EventType = "lipsync.cue_track_rejected"
	EventTypePlaybackError     EventType = "lipsync.playback_error"

	// Host events
	EventTypeConfigReloaded EventType = "host.config_reloaded"
	EventTypeClientJoined   EventType = "host.client_joined"
	EventTypeClientLeft     EventType = "host.client_left"
)

// Event is one host occurrence. The bridge forwards events verbatim to
// adapters and the debug endpoint, so the fields carry JSON tags.
type Event struct {
	Type EventType      `json:"type"`
	Time time.Time      `json:"time"`
	Data map[string]any `json:"data,omitempty"`
}

// Handler consumes events for one subscription.
type Handler func(Event)

// SubscriptionID names a subscription for Unsubscribe.
type SubscriptionID string

type subscription struct {
	id      SubscriptionID
	kind    EventType
	handler Handler
	ch      chan Event
	done    chan struct{}
}

// Bus fans events out to typed and wildcard subscribers and keeps a
// bounded history for replay on debug surfaces.
type Bus struct {
	mu       sync.RWMutex
	subs     map[SubscriptionID]*subscription
	typed    map[EventType]map[SubscriptionID]*subscription
	wildcard map[SubscriptionID]*subscription

	histMu  sync.Mutex
	history []Event
	histCap int

	counter atomic.Uint64
	wg      sync.WaitGroup
	closed  atomic.Bool
}

// New creates a bus with the default history size.
func New() *Bus {
	return NewWithHistory(DefaultHistorySize)
}

// NewWithHistory creates a bus retaining up to n recent events.
func NewWithHistory(n int) *Bus {
	if n < 0 {
		n = 0
	}
	return &Bus{
		subs:     make(map[SubscriptionID]*subscription),
		typed:    make(map[EventType]map[SubscriptionID]*subscription),
		wildcard: make(map[SubscriptionID]*subscription),
		history:  make([]Event, 0, n),
		histCap:  n,
	}
}

// Subscribe registers a handler for one event type, or for every event
// when eventType is empty. The handler runs on its own goroutine.
// Returns the empty ID when the bus is closed.
func (b *Bus) Subscribe(eventType EventType, handler Handler) SubscriptionID {
	if handler == nil {
		return ""
	}

	sub := &subscription{
		id:      SubscriptionID(fmt.Sprintf("sub-%d", b.counter.Add(1))),
		kind:    eventType,
		handler: handler,
		ch:      make(chan Event, subscriberBuffer),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed.Load() {
		b.mu.Unlock()
		return ""
	}
	b.subs[sub.id] = sub
	if eventType == "" {
		b.wildcard[sub.id] = sub
	} else {
		if b.typed[eventType] == nil {
			b.typed[eventType] = make(map[SubscriptionID]*subscription)
		}
		b.typed[eventType][sub.id] = sub
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go b.drain(sub)
	return sub.id
}

func (b *Bus) drain(sub *subscription) {
	defer b.wg.Done()
	for {
		select {
		case ev := <-sub.ch:
			sub.handler(ev)
		case <-sub.done:
			return
		}
	}
}

// Unsubscribe removes a subscription and stops its goroutine.
func (b *Bus) Unsubscribe(id SubscriptionID) error {
	if b.closed.Load() {
		return fmt.Errorf("bus: closed")
	}

	b.mu.Lock()
	sub, ok := b.subs[id]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("bus: unknown subscription %q", id)
	}
	delete(b.subs, id)
	if sub.kind == "" {
		delete(b.wildcard, id)
	} else if m := b.typed[sub.kind]; m != nil {
		delete(m, id)
		if len(m) == 0 {
			delete(b.typed, sub.kind)
		}
	}
	b.mu.Unlock()

	close(sub.done)
	return nil
}

// Publish stamps the event and hands it to every matching subscriber
// without blocking. A full subscriber buffer drops the event.
func (b *Bus) Publish(event Event) error {
	if b.closed.Load() {
		return fmt.Errorf("bus: closed")
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	b.record(event)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.wildcard {
		select {
		case sub.ch <- event:
		default:
		}
	}
	for _, sub := range b.typed[event.Type] {
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

func (b *Bus) record(event Event) {
	if b.histCap == 0 {
		return
	}
	b.histMu.Lock()
	defer b.histMu.Unlock()
	b.history = append(b.history, event)
	if len(b.history) > b.histCap {
		b.history = b.history[len(b.history)-b.histCap:]
	}
}

// History returns up to n recent events, oldest first. n <= 0 returns
// everything retained.
func (b *Bus) History(n int) []Event {
	b.histMu.Lock()
	defer b.histMu.Unlock()
	if n <= 0 || n > len(b.history) {
		n = len(b.history)
	}
	out := make([]Event, n)
	copy(out, b.history[len(b.history)-n:])
	return out
}

// SubscriberCount reports active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close stops every subscription and rejects further publishes.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("bus: already closed")
	}

	b.mu.Lock()
	for _, sub := range b.subs {
		close(sub.done)
	}
	b.subs = make(map[SubscriptionID]*subscription)
	b.typed = make(map[EventType]map[SubscriptionID]*subscription)
	b.wildcard = make(map[SubscriptionID]*subscription)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
