package bus

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// simpleEvent is a basic implementation of Event.
type simpleEvent struct {
	typeStr string
	source  string
	ts      time.Time
	data    any
	meta    map[string]any
}

func (e simpleEvent) Type() string             { return e.typeStr }
func (e simpleEvent) Source() string           { return e.source }
func (e simpleEvent) Timestamp() time.Time     { return e.ts }
func (e simpleEvent) Data() any                { return e.data }
func (e simpleEvent) Metadata() map[string]any { return e.meta }

// NewEvent creates a simple Event stamped with the current time.
func NewEvent(typ, src string, data any, metadata map[string]any) Event {
	return NewEventAt(typ, src, time.Now(), data, metadata)
}

// NewEventAt creates a simple Event with an explicit timestamp.
func NewEventAt(typ, src string, ts time.Time, data any, metadata map[string]any) Event {
	return simpleEvent{typeStr: typ, source: src, ts: ts, data: data, meta: metadata}
}

type subscription struct {
	id     string
	types  []string
	active atomic.Bool
	cancel func()
}

func (s *subscription) ID() string           { return s.id }
func (s *subscription) EventTypes() []string { return append([]string(nil), s.types...) }
func (s *subscription) IsActive() bool       { return s.active.Load() }
func (s *subscription) Cancel() error {
	if s.active.CompareAndSwap(true, false) && s.cancel != nil {
		s.cancel()
	}
	return nil
}

type entry struct {
	sub     *subscription
	handler EventHandler
}

// inMemoryBus is the default EventBus.
type inMemoryBus struct {
	mu sync.RWMutex
	// eventType -> subID -> entry
	handlers map[string]map[string]entry
}

// New creates a new EventBus instance.
func New() EventBus {
	return &inMemoryBus{handlers: make(map[string]map[string]entry)}
}

func (b *inMemoryBus) Publish(event Event) error {
	b.mu.RLock()
	m := b.handlers[event.Type()]
	subs := make([]entry, 0, len(m))
	for _, e := range m {
		subs = append(subs, e)
	}
	b.mu.RUnlock()

	var all error
	for _, e := range subs {
		if !e.sub.IsActive() {
			continue
		}
		if err := e.handler(event); err != nil {
			all = errors.Join(all, err)
		}
	}
	return all
}

func (b *inMemoryBus) Subscribe(eventType string, handler EventHandler) (Subscription, error) {
	return b.SubscribeMany(handler, eventType)
}

func (b *inMemoryBus) SubscribeMany(handler EventHandler, eventTypes ...string) (Subscription, error) {
	if handler == nil {
		return nil, errors.New("bus: nil handler")
	}
	if len(eventTypes) == 0 {
		return nil, errors.New("bus: no event types")
	}
	s := &subscription{id: uuid.NewString(), types: append([]string(nil), eventTypes...)}
	s.active.Store(true)
	s.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, t := range s.types {
			if m, ok := b.handlers[t]; ok {
				delete(m, s.id)
				if len(m) == 0 {
					delete(b.handlers, t)
				}
			}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		if b.handlers[t] == nil {
			b.handlers[t] = make(map[string]entry)
		}
		b.handlers[t][s.id] = entry{sub: s, handler: handler}
	}
	return s, nil
}

func (b *inMemoryBus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Cancel()
}

func (b *inMemoryBus) Subscribers(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
