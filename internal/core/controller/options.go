package controller

import (
	"time"

	"github.com/zeusync/behaviour/internal/core/events/bus"
	"github.com/zeusync/behaviour/internal/core/observability/log"
)

type Option func(*Controller)

func WithLogger(l log.Log) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

func WithBus(b bus.EventBus) Option {
	return func(c *Controller) {
		if b != nil {
			c.events = b
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithHistoryLimit bounds the decision history; 0 keeps everything.
func WithHistoryLimit(n int) Option {
	return func(c *Controller) { c.history = NewHistory(n) }
}
