package behaviour

import (
	"errors"
	"fmt"

	"github.com/zeusync/behaviour/internal/core/blackboard"
	"github.com/zeusync/behaviour/internal/core/events/bus"
)

type baseAction struct{ name string }

func (a baseAction) Name() string { return a.name }

// ActionFunc adapts a function as an Action. Fn must not capture per-owner
// state, since Clone shares it.
type ActionFunc struct {
	baseAction
	Fn func(b *Behaviour) (string, error)
}

func NewActionFunc(name string, fn func(b *Behaviour) (string, error)) *ActionFunc {
	return &ActionFunc{baseAction: baseAction{name}, Fn: fn}
}

func (a *ActionFunc) Tick(b *Behaviour) (string, error) { return a.Fn(b) }

func (a *ActionFunc) Clone() Action { cp := *a; return &cp }

// Noop always fires.
type Noop struct{ baseAction }

func NewNoop() *Noop { return &Noop{baseAction{"Noop"}} }

func (*Noop) Tick(*Behaviour) (string, error) { return "", nil }

func (a *Noop) Clone() Action { cp := *a; return &cp }

// Fail never fires and reports a fixed reason.
type Fail struct {
	baseAction
	reason string
}

func NewFail(reason string) *Fail {
	if reason == "" {
		reason = "refused"
	}
	return &Fail{baseAction: baseAction{"Fail"}, reason: reason}
}

func (a *Fail) Tick(*Behaviour) (string, error) { return a.reason, nil }

func (a *Fail) Clone() Action { cp := *a; return &cp }

// SetValue writes a constant to the owner's blackboard. It does not fire when
// the value is already in place.
type SetValue struct {
	baseAction
	key   string
	value any
}

func NewSetValue(key string, value any) *SetValue {
	return &SetValue{baseAction: baseAction{"SetValue(" + key + ")"}, key: key, value: value}
}

func (a *SetValue) Tick(b *Behaviour) (string, error) {
	state := b.Owner().State()
	if cur, ok := state.Get(a.key); ok && sameScalar(cur, a.value) {
		return fmt.Sprintf("%s already %v", a.key, a.value), nil
	}
	state.Set(a.key, a.value)
	return "", nil
}

func (a *SetValue) Clone() Action { cp := *a; return &cp }

// Increment adds a delta to a numeric blackboard value; a missing key counts
// as zero. A non-numeric value is a fault.
type Increment struct {
	baseAction
	key string
	by  float64
}

func NewIncrement(key string, by float64) *Increment {
	return &Increment{baseAction: baseAction{"Increment(" + key + ")"}, key: key, by: by}
}

func (a *Increment) Tick(b *Behaviour) (string, error) {
	state := b.Owner().State()
	cur := 0.0
	if v, ok := state.Get(a.key); ok {
		f, numeric := blackboard.ToFloat(v)
		if !numeric {
			return "", fmt.Errorf("increment %s: value %v is not numeric", a.key, v)
		}
		cur = f
	}
	state.Set(a.key, cur+a.by)
	return "", nil
}

func (a *Increment) Clone() Action { cp := *a; return &cp }

// Emit publishes a named event on the controller's bus.
type Emit struct {
	baseAction
	event string
}

func NewEmit(event string) *Emit {
	return &Emit{baseAction: baseAction{"Emit(" + event + ")"}, event: event}
}

func (a *Emit) Init(b *Behaviour) error {
	if b.Controller().Events() == nil {
		return errors.New("emit requires an event bus")
	}
	return nil
}

func (a *Emit) Tick(b *Behaviour) (string, error) {
	ctrl := b.Controller()
	ev := bus.NewEventAt(bus.TypeBehaviourEmit, b.Owner().ID(), ctrl.Now(), a.event, map[string]any{"behaviour": b.Name()})
	if err := ctrl.Events().Publish(ev); err != nil {
		return "", fmt.Errorf("emit %s: %w", a.event, err)
	}
	return "", nil
}

func (a *Emit) Clone() Action { cp := *a; return &cp }

// sameScalar compares values only when both are scalar kinds, so maps and
// slices decoded from assets never reach an uncomparable ==.
func sameScalar(x, y any) bool {
	switch xv := x.(type) {
	case string:
		yv, ok := y.(string)
		return ok && xv == yv
	case bool:
		yv, ok := y.(bool)
		return ok && xv == yv
	}
	xf, xNum := blackboard.ToFloat(x)
	yf, yNum := blackboard.ToFloat(y)
	return xNum && yNum && xf == yf
}
