package behaviour

import (
	"errors"
	"fmt"
	"io"
	"reflect"
)

// Behaviour is the per-owner runtime instance of a Template. It is driven by
// exactly one controller from one goroutine and is not safe for concurrent use.
type Behaviour struct {
	template    *Template
	owner       Owner
	controller  Controller
	conditions  []Condition
	action      Action
	enabled     bool
	initialized bool
}

// Initialize binds the instance to its owner and controller and clones the
// template's conditions and action. It returns the enable flag as it was on
// entry; condition results are not consulted.
func (b *Behaviour) Initialize(owner Owner, ctrl Controller) (bool, error) {
	enabled := b.enabled
	if isNil(owner) {
		return false, ErrNilOwner
	}
	if isNil(ctrl) {
		return false, ErrNilController
	}
	if b.initialized {
		return enabled, ErrAlreadyInitialized
	}
	if b.template.action == nil {
		return false, fmt.Errorf("template %q: %w", b.template.name, ErrNilAction)
	}

	conditions := make([]Condition, len(b.template.conditions))
	for i, tmpl := range b.template.conditions {
		if tmpl == nil {
			return false, fmt.Errorf("template %q condition %d: %w", b.template.name, i, ErrNilCondition)
		}
		conditions[i] = tmpl.Clone()
	}

	b.owner = owner
	b.controller = ctrl
	b.conditions = conditions
	b.action = b.template.action.Clone()

	for i, c := range b.conditions {
		if err := c.Init(b); err != nil {
			b.discard(i)
			return false, fmt.Errorf("template %q condition %d (%s): %w", b.template.name, i, c.Name(), err)
		}
	}
	if in, ok := b.action.(Initializer); ok {
		if err := in.Init(b); err != nil {
			b.discard(len(b.conditions))
			return false, fmt.Errorf("template %q action %s: %w", b.template.name, b.action.Name(), err)
		}
	}

	b.initialized = true
	return enabled, nil
}

// discard closes the first n condition clones, which completed Init, and the
// action, then unbinds the instance.
func (b *Behaviour) discard(n int) {
	for _, c := range b.conditions[:n] {
		if cl, ok := c.(io.Closer); ok {
			_ = cl.Close()
		}
	}
	if cl, ok := b.action.(io.Closer); ok {
		_ = cl.Close()
	}
	b.reset()
}

func (b *Behaviour) reset() {
	b.owner = nil
	b.controller = nil
	b.conditions = nil
	b.action = nil
}

// IsActive reports whether the behaviour may tick: the enable flag is set and
// every condition passes. Conditions are evaluated in order and evaluation
// stops at the first failure; nothing is evaluated while disabled.
func (b *Behaviour) IsActive() bool {
	ok, _ := b.CheckActive()
	return ok
}

// CheckActive is IsActive that also names what gated the behaviour:
// "disabled", "uninitialized" or the first failing condition.
func (b *Behaviour) CheckActive() (bool, string) {
	if !b.enabled {
		return false, "disabled"
	}
	if !b.initialized {
		return false, "uninitialized"
	}
	for _, c := range b.conditions {
		if !c.Result(b) {
			return false, c.Name()
		}
	}
	return true, ""
}

// SetActive forces the enable flag.
func (b *Behaviour) SetActive(active bool) { b.enabled = active }

// Enabled returns the raw enable flag without evaluating conditions.
func (b *Behaviour) Enabled() bool { return b.enabled }

// Tick runs the action once. The caller is expected to have checked
// IsActive; Tick does not re-evaluate conditions.
func (b *Behaviour) Tick() (string, error) {
	if !b.initialized {
		return "", ErrNotInitialized
	}
	reason, err := b.action.Tick(b)
	if err != nil {
		return reason, fmt.Errorf("behaviour %q: %w", b.template.name, err)
	}
	if reason == "" {
		for _, c := range b.conditions {
			if fo, ok := c.(FireObserver); ok {
				fo.Fired(b)
			}
		}
	}
	return reason, nil
}

func (b *Behaviour) Name() string { return b.template.name }

func (b *Behaviour) Template() *Template { return b.template }

func (b *Behaviour) Owner() Owner { return b.owner }

func (b *Behaviour) Controller() Controller { return b.controller }

func (b *Behaviour) Action() Action { return b.action }

func (b *Behaviour) Initialized() bool { return b.initialized }

// Conditions returns the instance's own conditions. The slice is a copy; the
// elements are the live clones.
func (b *Behaviour) Conditions() []Condition {
	return append([]Condition(nil), b.conditions...)
}

// Close releases resources held by the instance's conditions and action. The
// instance cannot be ticked afterwards.
func (b *Behaviour) Close() error {
	var errs error
	for _, c := range b.conditions {
		if cl, ok := c.(io.Closer); ok {
			errs = errors.Join(errs, cl.Close())
		}
	}
	if cl, ok := b.action.(io.Closer); ok {
		errs = errors.Join(errs, cl.Close())
	}
	b.initialized = false
	return errs
}

// isNil also catches typed nil pointers wrapped in an interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
