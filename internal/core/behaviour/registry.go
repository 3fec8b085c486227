package behaviour

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

type (
	ConditionFactory func(params map[string]any) (Condition, error)
	ActionFactory    func(params map[string]any) (Action, error)
)

// Registry maps asset type names to condition and action factories.
type Registry interface {
	RegisterCondition(name string, factory ConditionFactory)
	RegisterAction(name string, factory ActionFactory)
	NewCondition(name string, params map[string]any) (Condition, error)
	NewAction(name string, params map[string]any) (Action, error)
	Conditions() []string
	Actions() []string
}

type reg struct {
	mu    sync.RWMutex
	conds map[string]ConditionFactory
	acts  map[string]ActionFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() Registry {
	return &reg{
		conds: make(map[string]ConditionFactory),
		acts:  make(map[string]ActionFactory),
	}
}

// NewDefaultRegistry returns a registry with the builtins registered.
func NewDefaultRegistry() Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}

func (r *reg) RegisterCondition(name string, factory ConditionFactory) {
	r.mu.Lock()
	r.conds[name] = factory
	r.mu.Unlock()
}

func (r *reg) RegisterAction(name string, factory ActionFactory) {
	r.mu.Lock()
	r.acts[name] = factory
	r.mu.Unlock()
}

func (r *reg) NewCondition(name string, params map[string]any) (Condition, error) {
	r.mu.RLock()
	f := r.conds[name]
	r.mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("%w: unknown condition: %s", ErrInvalidConfig, name)
	}
	return f(params)
}

func (r *reg) NewAction(name string, params map[string]any) (Action, error) {
	r.mu.RLock()
	f := r.acts[name]
	r.mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("%w: unknown action: %s", ErrInvalidConfig, name)
	}
	return f(params)
}

func (r *reg) Conditions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.conds)
}

func (r *reg) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.acts)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RegisterBuiltins registers the builtin conditions and actions.
func RegisterBuiltins(r Registry) {
	// Conditions
	r.RegisterCondition("AlwaysTrue", func(map[string]any) (Condition, error) { return AlwaysTrue(), nil })
	r.RegisterCondition("AlwaysFalse", func(map[string]any) (Condition, error) { return AlwaysFalse(), nil })
	r.RegisterCondition("IsTrue", func(params map[string]any) (Condition, error) {
		key, err := requireString(params, "key")
		if err != nil {
			return nil, fmt.Errorf("IsTrue: %w", err)
		}
		return NewIsTrue(key), nil
	})
	r.RegisterCondition("Compare", func(params map[string]any) (Condition, error) {
		key, _ := params["key"].(string)
		op, _ := params["op"].(string)
		if op == "" {
			op = "=="
		}
		c, err := NewCompare(key, op, params["value"])
		if err != nil {
			return nil, err
		}
		return c, nil
	})
	r.RegisterCondition("Not", func(params map[string]any) (Condition, error) {
		raw, ok := params["condition"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: Not requires 'condition'", ErrInvalidConfig)
		}
		typ, _ := raw["type"].(string)
		inner, _ := raw["params"].(map[string]any)
		c, err := r.NewCondition(typ, inner)
		if err != nil {
			return nil, fmt.Errorf("Not: %w", err)
		}
		return NewNot(c), nil
	})
	r.RegisterCondition("Cooldown", func(params map[string]any) (Condition, error) {
		d, err := durationParam(params, "period")
		if err != nil {
			return nil, fmt.Errorf("Cooldown: %w", err)
		}
		return NewCooldown(d), nil
	})
	r.RegisterCondition("MaxFires", func(params map[string]any) (Condition, error) {
		n, ok := intParam(params, "limit")
		if !ok || n < 0 {
			return nil, fmt.Errorf("%w: MaxFires requires a non-negative 'limit'", ErrInvalidConfig)
		}
		return NewMaxFires(n), nil
	})
	r.RegisterCondition("Chance", func(params map[string]any) (Condition, error) {
		p, ok := floatParam(params, "p")
		if !ok {
			return nil, fmt.Errorf("%w: Chance requires 'p'", ErrInvalidConfig)
		}
		c, err := NewChance(p)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
	r.RegisterCondition("Script", func(params map[string]any) (Condition, error) {
		src, err := requireString(params, "source")
		if err != nil {
			return nil, fmt.Errorf("Script: %w", err)
		}
		name, _ := params["name"].(string)
		if name == "" {
			name = "inline"
		}
		c, err := NewScript(name, src)
		if err != nil {
			return nil, err
		}
		if _, ok := params["timeout"]; ok {
			d, err := durationParam(params, "timeout")
			if err != nil {
				return nil, fmt.Errorf("Script: %w", err)
			}
			c.SetTimeout(d)
		}
		return c, nil
	})

	// Actions
	r.RegisterAction("Noop", func(map[string]any) (Action, error) { return NewNoop(), nil })
	r.RegisterAction("Fail", func(params map[string]any) (Action, error) {
		reason, _ := params["reason"].(string)
		return NewFail(reason), nil
	})
	r.RegisterAction("SetValue", func(params map[string]any) (Action, error) {
		key, err := requireString(params, "key")
		if err != nil {
			return nil, fmt.Errorf("SetValue: %w", err)
		}
		return NewSetValue(key, params["value"]), nil
	})
	r.RegisterAction("Increment", func(params map[string]any) (Action, error) {
		key, err := requireString(params, "key")
		if err != nil {
			return nil, fmt.Errorf("Increment: %w", err)
		}
		by, ok := floatParam(params, "by")
		if !ok {
			by = 1
		}
		return NewIncrement(key, by), nil
	})
	r.RegisterAction("Emit", func(params map[string]any) (Action, error) {
		ev, err := requireString(params, "event")
		if err != nil {
			return nil, fmt.Errorf("Emit: %w", err)
		}
		return NewEmit(ev), nil
	})
}

func requireString(params map[string]any, key string) (string, error) {
	s, _ := params[key].(string)
	if s == "" {
		return "", fmt.Errorf("%w: requires '%s'", ErrInvalidConfig, key)
	}
	return s, nil
}

func floatParam(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func intParam(params map[string]any, key string) (int, bool) {
	f, ok := floatParam(params, key)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// durationParam accepts a Go duration string ("1.5s") or a number of
// milliseconds.
func durationParam(params map[string]any, key string) (time.Duration, error) {
	switch v := params[key].(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
		return d, nil
	case nil:
		return 0, fmt.Errorf("%w: requires '%s'", ErrInvalidConfig, key)
	}
	if ms, ok := floatParam(params, key); ok {
		return time.Duration(ms * float64(time.Millisecond)), nil
	}
	return 0, fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidConfig, key, params[key])
}
