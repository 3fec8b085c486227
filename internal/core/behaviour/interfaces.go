// Package behaviour implements condition-gated NPC behaviours.
//
// A Template is the shared, immutable definition loaded from an asset file.
// Each NPC gets its own *Behaviour created from a template; Initialize clones
// every condition and the action so no per-owner state is shared. A behaviour
// is eligible to tick while it is enabled and all of its conditions pass.
package behaviour

import (
	"time"

	"github.com/zeusync/behaviour/internal/core/blackboard"
	"github.com/zeusync/behaviour/internal/core/events/bus"
	"github.com/zeusync/behaviour/internal/core/observability/log"
)

// Owner is the NPC a behaviour instance acts for.
type Owner interface {
	ID() string
	Name() string
	State() blackboard.Blackboard
}

// Controller drives initialization and ticking of an owner's behaviours.
// Behaviours only use it for the services below.
type Controller interface {
	Now() time.Time
	Logger() log.Log
	Events() bus.EventBus
}

// Condition is a boolean predicate evaluated against the behaviour it is
// bound to. The *Behaviour passed to Init and Result is a back-reference for
// lookups; conditions must not keep it beyond the instance's lifetime.
type Condition interface {
	Name() string
	// Init binds a freshly cloned condition to its behaviour.
	Init(b *Behaviour) error
	// Result reports whether the condition currently passes.
	Result(b *Behaviour) bool
	// Clone returns an independent copy carrying the template's
	// configuration and none of the runtime state.
	Clone() Condition
}

// Action is the tick logic of a concrete behaviour kind.
type Action interface {
	Name() string
	// Tick takes the action. An empty reason means the behaviour fired; a
	// non-empty reason explains why it did not. err is reserved for faults.
	Tick(b *Behaviour) (reason string, err error)
	Clone() Action
}

// Initializer is implemented by actions that need to resolve owner
// components before the first tick.
type Initializer interface {
	Init(b *Behaviour) error
}

// FireObserver is implemented by stateful conditions that track firings.
type FireObserver interface {
	Fired(b *Behaviour)
}
