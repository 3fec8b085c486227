package behaviour

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/behaviour/internal/core/blackboard"
)

// baseCondition carries the display name shared by the builtin conditions.
type baseCondition struct{ name string }

func (c baseCondition) Name() string { return c.name }

func (baseCondition) Init(*Behaviour) error { return nil }

// constant always returns the same result.
type constant struct {
	baseCondition
	result bool
}

// AlwaysTrue returns a condition that always passes.
func AlwaysTrue() Condition { return &constant{baseCondition{"AlwaysTrue"}, true} }

// AlwaysFalse returns a condition that never passes.
func AlwaysFalse() Condition { return &constant{baseCondition{"AlwaysFalse"}, false} }

func (c *constant) Result(*Behaviour) bool { return c.result }

func (c *constant) Clone() Condition { cp := *c; return &cp }

// ConditionFunc adapts a plain predicate. Fn must not capture per-owner state,
// since Clone shares it.
type ConditionFunc struct {
	baseCondition
	Fn func(b *Behaviour) bool
}

func NewConditionFunc(name string, fn func(b *Behaviour) bool) *ConditionFunc {
	return &ConditionFunc{baseCondition: baseCondition{name}, Fn: fn}
}

func (c *ConditionFunc) Result(b *Behaviour) bool { return c.Fn(b) }

func (c *ConditionFunc) Clone() Condition { cp := *c; return &cp }

// IsTrue passes when the owner's blackboard holds true under key.
type IsTrue struct {
	baseCondition
	key string
}

func NewIsTrue(key string) *IsTrue {
	return &IsTrue{baseCondition: baseCondition{"IsTrue(" + key + ")"}, key: key}
}

func (c *IsTrue) Result(b *Behaviour) bool { return blackboard.Bool(b.Owner().State(), c.key) }

func (c *IsTrue) Clone() Condition { cp := *c; return &cp }

// Compare checks a blackboard value against a constant. Numeric kinds are
// compared as float64; other values only support == and !=. A missing key
// never passes.
type Compare struct {
	baseCondition
	key   string
	op    string
	value any
}

var compareOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func NewCompare(key, op string, value any) (*Compare, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: compare requires a key", ErrInvalidConfig)
	}
	if !compareOps[op] {
		return nil, fmt.Errorf("%w: unknown compare op %q", ErrInvalidConfig, op)
	}
	if _, numeric := blackboard.ToFloat(value); !numeric && op != "==" && op != "!=" {
		return nil, fmt.Errorf("%w: op %q needs a numeric value, got %T", ErrInvalidConfig, op, value)
	}
	return &Compare{
		baseCondition: baseCondition{fmt.Sprintf("Compare(%s %s %v)", key, op, value)},
		key:           key,
		op:            op,
		value:         value,
	}, nil
}

func (c *Compare) Result(b *Behaviour) bool {
	actual, ok := b.Owner().State().Get(c.key)
	if !ok {
		return false
	}
	return compare(actual, c.op, c.value)
}

func (c *Compare) Clone() Condition { cp := *c; return &cp }

func compare(actual any, op string, want any) bool {
	af, aNum := blackboard.ToFloat(actual)
	wf, wNum := blackboard.ToFloat(want)
	if aNum && wNum {
		switch op {
		case "==":
			return af == wf
		case "!=":
			return af != wf
		case "<":
			return af < wf
		case "<=":
			return af <= wf
		case ">":
			return af > wf
		case ">=":
			return af >= wf
		}
		return false
	}
	var eq bool
	switch w := want.(type) {
	case string:
		s, ok := actual.(string)
		eq = ok && s == w
	case bool:
		v, ok := actual.(bool)
		eq = ok && v == w
	default:
		return false
	}
	switch op {
	case "==":
		return eq
	case "!=":
		return !eq
	}
	return false
}

// Not inverts another condition.
type Not struct {
	baseCondition
	inner Condition
}

func NewNot(inner Condition) *Not {
	return &Not{baseCondition: baseCondition{"Not(" + inner.Name() + ")"}, inner: inner}
}

func (c *Not) Init(b *Behaviour) error { return c.inner.Init(b) }

func (c *Not) Result(b *Behaviour) bool { return !c.inner.Result(b) }

func (c *Not) Clone() Condition {
	return &Not{baseCondition: c.baseCondition, inner: c.inner.Clone()}
}

func (c *Not) Close() error {
	if cl, ok := c.inner.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

func (c *Not) Fired(b *Behaviour) {
	if fo, ok := c.inner.(FireObserver); ok {
		fo.Fired(b)
	}
}

// Cooldown blocks the behaviour for a duration after each firing.
type Cooldown struct {
	baseCondition
	period    time.Duration
	lastFired time.Time
	hasFired  bool
}

func NewCooldown(period time.Duration) *Cooldown {
	return &Cooldown{baseCondition: baseCondition{"Cooldown(" + period.String() + ")"}, period: period}
}

func (c *Cooldown) Result(b *Behaviour) bool {
	if !c.hasFired {
		return true
	}
	return b.Controller().Now().Sub(c.lastFired) >= c.period
}

func (c *Cooldown) Fired(b *Behaviour) {
	c.lastFired = b.Controller().Now()
	c.hasFired = true
}

func (c *Cooldown) Clone() Condition {
	return &Cooldown{baseCondition: c.baseCondition, period: c.period}
}

// MaxFires passes until the behaviour has fired n times.
type MaxFires struct {
	baseCondition
	limit int
	fired int
}

func NewMaxFires(limit int) *MaxFires {
	return &MaxFires{baseCondition: baseCondition{fmt.Sprintf("MaxFires(%d)", limit)}, limit: limit}
}

func (c *MaxFires) Result(*Behaviour) bool { return c.fired < c.limit }

func (c *MaxFires) Fired(*Behaviour) { c.fired++ }

// Count is the number of firings observed by this instance.
func (c *MaxFires) Count() int { return c.fired }

func (c *MaxFires) Clone() Condition {
	return &MaxFires{baseCondition: c.baseCondition, limit: c.limit}
}

// Chance passes with probability p. Each instance draws from its own source
// seeded by owner id and behaviour name, so runs are reproducible per NPC.
// Result consumes randomness and therefore is not side-effect-free.
type Chance struct {
	baseCondition
	p   float64
	rng *rand.Rand
}

func NewChance(p float64) (*Chance, error) {
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("%w: chance %v outside [0,1]", ErrInvalidConfig, p)
	}
	return &Chance{baseCondition: baseCondition{fmt.Sprintf("Chance(%.2f)", p)}, p: p}, nil
}

func (c *Chance) Init(b *Behaviour) error {
	c.rng = rand.New(rand.NewSource(int64(Seed(b.Owner().ID(), b.Name()))))
	return nil
}

func (c *Chance) Result(*Behaviour) bool {
	switch {
	case c.p <= 0:
		return false
	case c.p >= 1:
		return true
	}
	return c.rng.Float64() < c.p
}

func (c *Chance) Clone() Condition {
	return &Chance{baseCondition: c.baseCondition, p: c.p}
}

// Seed derives a stable per-owner, per-behaviour seed.
func Seed(ownerID, behaviour string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(ownerID)
	_, _ = d.WriteString("/")
	_, _ = d.WriteString(behaviour)
	return d.Sum64()
}
