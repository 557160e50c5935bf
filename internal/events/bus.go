// Package events is a synchronous publish/subscribe bus for game lifecycle
// notifications.
package events

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Kind names a lifecycle notification.
type Kind string

const (
	GameCreated      Kind = "game.created"
	StatsAllocated   Kind = "stats.allocated"
	YearAdvanced     Kind = "year.advanced"
	LifeEnded        Kind = "life.ended"
	SessionAbandoned Kind = "session.abandoned"
)

// Event is a published notification.
type Event struct {
	Kind      Kind
	SessionID string
	Age       int
	Time      time.Time
	Data      any
}

// Handler receives events. Handlers run on the publishing goroutine and
// must not block.
type Handler func(Event)

// Bus delivers events to subscribers. The zero value is ready to use.
type Bus struct {
	mu       sync.RWMutex
	next     int
	handlers map[Kind]map[int]Handler
	clock    func() time.Time
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{clock: time.Now}
}

// Subscribe registers h for kind and returns a func that removes it.
func (b *Bus) Subscribe(kind Kind, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers == nil {
		b.handlers = make(map[Kind]map[int]Handler)
	}
	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[int]Handler)
	}
	id := b.next
	b.next++
	b.handlers[kind][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[kind], id)
	}
}

// Publish delivers evt to the handlers of its kind in subscription order.
// A nil bus discards events.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	if evt.Time.IsZero() {
		if b.clock != nil {
			evt.Time = b.clock()
		} else {
			evt.Time = time.Now()
		}
	}

	b.mu.RLock()
	subs := b.handlers[evt.Kind]
	ids := slices.Sorted(maps.Keys(subs))
	hs := make([]Handler, len(ids))
	for i, id := range ids {
		hs[i] = subs[id]
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(evt)
	}
}
