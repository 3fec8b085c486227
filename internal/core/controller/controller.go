// Package controller drives the behaviours of one NPC and, through Manager,
// of many NPCs at once.
package controller

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zeusync/behaviour/internal/core/behaviour"
	"github.com/zeusync/behaviour/internal/core/events/bus"
	"github.com/zeusync/behaviour/internal/core/observability/log"
	"github.com/zeusync/behaviour/pkg/generic"
)

var _ behaviour.Controller = (*Controller)(nil)

var (
	ErrNoOwner        = errors.New("controller: owner is nil")
	ErrNotInitialized = errors.New("controller: not initialized")
)

// Skip explains why a behaviour did not fire on a tick.
type Skip struct {
	Behaviour string `json:"behaviour"`
	Reason    string `json:"reason"`
	// Ticked is true when the behaviour was eligible and its action refused.
	Ticked bool `json:"ticked"`
}

// Fault is a genuine error raised by a behaviour's action.
type Fault struct {
	Behaviour string
	Err       error
}

// Outcome summarises one tick.
type Outcome struct {
	Owner    string
	Tick     uint64
	Fired    string
	Skipped  []Skip
	Faults   []Fault
	Duration time.Duration
}

// Idle reports whether no behaviour fired.
func (o Outcome) Idle() bool { return o.Fired == "" }

// Summary joins the skip reasons for logs and history.
func (o Outcome) Summary() string {
	parts := make([]string, 0, len(o.Skipped))
	for _, s := range o.Skipped {
		parts = append(parts, s.Behaviour+": "+s.Reason)
	}
	return strings.Join(parts, "; ")
}

// Notice is the payload of the events a controller publishes.
type Notice struct {
	Owner     string    `json:"owner"`
	OwnerName string    `json:"owner_name"`
	Tick      uint64    `json:"tick"`
	Behaviour string    `json:"behaviour,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Skipped   []Skip    `json:"skipped,omitempty"`
	Time      time.Time `json:"time"`
}

// Controller owns the behaviour instances of a single NPC and ticks them in
// priority order. Tick, Init and Close are serialized.
type Controller struct {
	mu          sync.Mutex
	owner       behaviour.Owner
	templates   []*behaviour.Template
	behaviours  []*behaviour.Behaviour
	log         log.Log
	events      bus.EventBus
	clock       func() time.Time
	history     *History
	ticks       uint64
	initialized bool
}

// New creates a controller for owner. Templates are in priority order: on each
// tick the first eligible behaviour that fires wins.
func New(owner behaviour.Owner, templates []*behaviour.Template, opts ...Option) *Controller {
	c := &Controller{
		owner:     owner,
		templates: append([]*behaviour.Template(nil), templates...),
		log:       log.NewNop(),
		events:    bus.New(),
		clock:     time.Now,
		history:   NewHistory(256),
	}
	for _, opt := range opts {
		opt(c)
	}
	if owner != nil {
		c.log = c.log.With(log.Owner(owner.ID()))
	}
	return c
}

func (c *Controller) Now() time.Time       { return c.clock() }
func (c *Controller) Logger() log.Log      { return c.log }
func (c *Controller) Events() bus.EventBus { return c.events }

func (c *Controller) Owner() behaviour.Owner { return c.owner }

func (c *Controller) ID() string {
	if c.owner == nil {
		return ""
	}
	return c.owner.ID()
}

func (c *Controller) History() *History { return c.history }

// Init creates and initializes one instance per template. Instances that fail
// are left out and their errors joined into the result; the others stay
// usable. The count is the number of instances that reported enabled.
func (c *Controller) Init() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.owner == nil {
		return 0, ErrNoOwner
	}
	if c.initialized {
		return 0, behaviour.ErrAlreadyInitialized
	}

	var errs error
	enabled := 0
	c.behaviours = make([]*behaviour.Behaviour, 0, len(c.templates))
	for _, t := range c.templates {
		b := t.NewInstance()
		ok, err := b.Initialize(c.owner, c)
		if err != nil {
			c.log.Error("behaviour init failed", log.Behaviour(t.Name()), log.Error(err))
			errs = errors.Join(errs, err)
			continue
		}
		if ok {
			enabled++
		}
		c.behaviours = append(c.behaviours, b)
	}
	c.initialized = true
	c.log.Info("controller initialized",
		log.Int("behaviours", len(c.behaviours)),
		log.Int("enabled", enabled),
		log.Int("failed", len(c.templates)-len(c.behaviours)))
	return enabled, errs
}

// Behaviours returns the live instances in priority order.
func (c *Controller) Behaviours() []*behaviour.Behaviour {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*behaviour.Behaviour(nil), c.behaviours...)
}

// Behaviour looks an instance up by template name.
func (c *Controller) Behaviour(name string) (*behaviour.Behaviour, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.behaviours {
		if b.Name() == name {
			return b, true
		}
	}
	return nil, false
}

// SetActive forces the enable flag of one behaviour.
func (c *Controller) SetActive(name string, active bool) bool {
	b, ok := c.Behaviour(name)
	if !ok {
		return false
	}
	c.mu.Lock()
	b.SetActive(active)
	c.mu.Unlock()
	return true
}

// Tick evaluates the behaviours once.
func (c *Controller) Tick() (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return Outcome{}, ErrNotInitialized
	}

	c.ticks++
	start := c.clock()
	out := Outcome{Owner: c.owner.ID(), Tick: c.ticks}

	for _, b := range c.behaviours {
		active, gate := b.CheckActive()
		if !active {
			out.Skipped = append(out.Skipped, Skip{Behaviour: b.Name(), Reason: gate})
			continue
		}
		reason, err := b.Tick()
		if err != nil {
			c.log.Error("behaviour fault", log.Behaviour(b.Name()), log.Error(err))
			out.Faults = append(out.Faults, Fault{Behaviour: b.Name(), Err: err})
			c.publish(bus.TypeBehaviourFault, Notice{Behaviour: b.Name(), Reason: err.Error()})
			continue
		}
		if reason != "" {
			out.Skipped = append(out.Skipped, Skip{Behaviour: b.Name(), Reason: reason, Ticked: true})
			continue
		}
		out.Fired = b.Name()
		break
	}

	out.Duration = c.clock().Sub(start)
	c.history.Append(DecisionRecord{
		Tick:      out.Tick,
		Fired:     out.Fired,
		Reason:    out.Summary(),
		Faults:    len(out.Faults),
		Duration:  out.Duration,
		Timestamp: start,
	})

	if out.Idle() {
		c.log.Debug("no behaviour fired", log.Int64("tick", int64(out.Tick)), log.String("reasons", out.Summary()))
		c.publish(bus.TypeBehaviourIdle, Notice{Skipped: out.Skipped})
	} else {
		c.log.Debug("behaviour fired", log.Int64("tick", int64(out.Tick)), log.Behaviour(out.Fired))
		c.publish(bus.TypeBehaviourFired, Notice{Behaviour: out.Fired, Skipped: out.Skipped})
	}
	return out, nil
}

func (c *Controller) publish(eventType string, n Notice) {
	n.Owner = c.owner.ID()
	n.OwnerName = c.owner.Name()
	n.Tick = c.ticks
	n.Time = c.clock()
	if err := c.events.Publish(bus.NewEventAt(eventType, n.Owner, n.Time, n, nil)); err != nil {
		c.log.Warn("event handler failed", log.String("event", eventType), log.Error(err))
	}
}

// Run ticks every interval until ctx is cancelled.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("controller: invalid tick interval %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := c.Tick(); err != nil {
				return err
			}
		}
	}
}

// Close releases every instance. The controller cannot tick afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs error
	for _, b := range c.behaviours {
		errs = errors.Join(errs, b.Close())
	}
	c.behaviours = nil
	c.initialized = false
	return errs
}

type snapshot struct {
	State   []byte
	History []byte
	Ticks   uint64
}

// SaveState captures the owner's blackboard and the decision history.
func (c *Controller) SaveState() ([]byte, error) {
	if c.owner == nil {
		return nil, ErrNoOwner
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	state, err := c.owner.State().MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal owner state: %w", err)
	}
	hist, err := c.history.Save()
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	snap := snapshot{State: state, History: hist, Ticks: c.ticks}
	return generic.EncodeWith(func(buf *bytes.Buffer) error {
		return gob.NewEncoder(buf).Encode(snap)
	})
}

// LoadState restores a snapshot produced by SaveState. Behaviour instance
// state (cooldowns, budgets) is not part of it.
func (c *Controller) LoadState(b []byte) error {
	if c.owner == nil {
		return ErrNoOwner
	}
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&s); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(s.State) > 0 {
		if err := c.owner.State().UnmarshalBinary(s.State); err != nil {
			return fmt.Errorf("restore owner state: %w", err)
		}
	}
	if len(s.History) > 0 {
		if err := c.history.Load(s.History); err != nil {
			return fmt.Errorf("restore history: %w", err)
		}
	}
	c.ticks = s.Ticks
	return nil
}
