package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus.
//
// Delivery is synchronous: Publish calls handlers in the caller goroutine and
// joins their errors. Handlers should return quickly; the controller publishes
// from inside its tick.
type EventBus interface {
	// Publish delivers the event to all active subscribers of event.Type().
	Publish(event Event) error
	// Subscribe registers a handler for one event type.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// SubscribeMany registers the same handler for several event types and
	// returns one subscription covering all of them.
	SubscribeMany(handler EventHandler, eventTypes ...string) (Subscription, error)
	// Unsubscribe cancels the given Subscription. Nil is a no-op.
	Unsubscribe(Subscription) error
	// Subscribers reports the number of active subscriptions for a type.
	Subscribers(eventType string) int
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
	Metadata() map[string]any
}

type (
	// EventHandler is invoked per delivered event.
	EventHandler func(event Event) error
)

// Subscription is a registered handler. Cancel is idempotent.
type Subscription interface {
	ID() string
	EventTypes() []string
	IsActive() bool
	Cancel() error
}

// Event types published by the behaviour controller.
const (
	TypeBehaviourFired = "behaviour.fired"
	TypeBehaviourIdle  = "behaviour.idle"
	TypeBehaviourFault = "behaviour.fault"
	TypeBehaviourEmit  = "behaviour.emit"
)
