package behaviour

import (
	"errors"
	"fmt"
)

// Template is the authored definition of one possible NPC action. It is
// read-only once built and may back any number of instances concurrently.
type Template struct {
	name       string
	conditions []Condition
	action     Action
	enabled    bool
}

// NewTemplate builds a template. The condition slice is copied.
func NewTemplate(name string, action Action, enabled bool, conditions ...Condition) *Template {
	return &Template{
		name:       name,
		conditions: append([]Condition(nil), conditions...),
		action:     action,
		enabled:    enabled,
	}
}

func (t *Template) Name() string { return t.name }

func (t *Template) Enabled() bool { return t.enabled }

func (t *Template) Len() int { return len(t.conditions) }

// Validate reports configuration errors. Nil conditions are only detected
// here and at Initialize.
func (t *Template) Validate() error {
	var errs error
	if t.name == "" {
		errs = errors.Join(errs, fmt.Errorf("%w: template name is empty", ErrInvalidConfig))
	}
	if t.action == nil {
		errs = errors.Join(errs, fmt.Errorf("template %q: %w", t.name, ErrNilAction))
	}
	for i, c := range t.conditions {
		if c == nil {
			errs = errors.Join(errs, fmt.Errorf("template %q condition %d: %w", t.name, i, ErrNilCondition))
		}
	}
	return errs
}

// NewInstance returns an uninitialized behaviour bound to this template.
func (t *Template) NewInstance() *Behaviour {
	return &Behaviour{template: t, enabled: t.enabled}
}
