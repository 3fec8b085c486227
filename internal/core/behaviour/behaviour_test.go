package behaviour

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledIsNeverActive(t *testing.T) {
	c, calls := newCounting("c", true)
	tmpl := NewTemplate("idle", NewNoop(), false, c, AlwaysTrue())
	b, enabled := mustInit(t, tmpl, newOwner("a", nil), newController())

	assert.False(t, enabled)
	assert.False(t, b.IsActive())
	assert.Zero(t, *calls, "conditions must not be evaluated while disabled")

	ok, why := b.CheckActive()
	assert.False(t, ok)
	assert.Equal(t, "disabled", why)
}

func TestEmptyConditionsFollowFlag(t *testing.T) {
	b, _ := mustInit(t, NewTemplate("idle", NewNoop(), true), newOwner("a", nil), newController())
	assert.True(t, b.IsActive())

	b.SetActive(false)
	assert.False(t, b.IsActive())
	b.SetActive(true)
	assert.True(t, b.IsActive())
}

func TestAnyFalseConditionGates(t *testing.T) {
	first, firstCalls := newCounting("first", true)
	gate, _ := newCounting("gate", false)
	last, lastCalls := newCounting("last", true)

	b, _ := mustInit(t, NewTemplate("x", NewNoop(), true, first, gate, last), newOwner("a", nil), newController())
	ok, why := b.CheckActive()
	assert.False(t, ok)
	assert.Equal(t, "gate", why)
	assert.Equal(t, 1, *firstCalls)
	assert.Zero(t, *lastCalls, "evaluation stops at the first failure")

	only, _ := mustInit(t, NewTemplate("y", NewNoop(), true, AlwaysFalse()), newOwner("a", nil), newController())
	assert.False(t, only.IsActive())
}

func TestInitializeReturnsFlagNotConditions(t *testing.T) {
	_, enabled := mustInit(t, NewTemplate("x", NewNoop(), true, AlwaysFalse()), newOwner("a", nil), newController())
	assert.True(t, enabled)

	b := NewTemplate("y", NewNoop(), true, AlwaysTrue()).NewInstance()
	b.SetActive(false)
	enabled, err := b.Initialize(newOwner("a", nil), newController())
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestScenarios(t *testing.T) {
	owner, ctrl := newOwner("npc", nil), newController()

	t.Run("A all true", func(t *testing.T) {
		b, enabled := mustInit(t, NewTemplate("a", NewNoop(), true, AlwaysTrue(), AlwaysTrue()), owner, ctrl)
		assert.True(t, enabled)
		assert.True(t, b.IsActive())
	})

	t.Run("B one false", func(t *testing.T) {
		b, _ := mustInit(t, NewTemplate("b", NewNoop(), true, AlwaysTrue(), AlwaysFalse()), owner, ctrl)
		assert.False(t, b.IsActive())
	})

	t.Run("C empty and disabled", func(t *testing.T) {
		b, enabled := mustInit(t, NewTemplate("c", NewNoop(), false), owner, ctrl)
		assert.False(t, enabled)
		assert.False(t, b.IsActive())
	})

	t.Run("D instances are independent", func(t *testing.T) {
		tmpl := NewTemplate("d", NewNoop(), true, NewIsTrue("ready"))
		ownerA := newOwner("a", map[string]any{"ready": false})
		ownerB := newOwner("b", map[string]any{"ready": true})
		a, _ := mustInit(t, tmpl, ownerA, ctrl)
		b, _ := mustInit(t, tmpl, ownerB, ctrl)

		a.SetActive(false)
		assert.False(t, a.IsActive())
		assert.True(t, b.IsActive())
		assert.True(t, tmpl.Enabled(), "template flag is untouched")

		a.SetActive(true)
		assert.False(t, a.IsActive())
		assert.True(t, b.IsActive())
	})
}

func TestInitializeClonesConditions(t *testing.T) {
	limit := NewMaxFires(1)
	tmpl := NewTemplate("once", NewNoop(), true, limit)
	ctrl := newController()
	a, _ := mustInit(t, tmpl, newOwner("a", nil), ctrl)
	b, _ := mustInit(t, tmpl, newOwner("b", nil), ctrl)

	require.Len(t, a.Conditions(), 1)
	require.Len(t, b.Conditions(), 1)
	assert.NotSame(t, a.Conditions()[0], b.Conditions()[0])
	assert.NotSame(t, Condition(limit), a.Conditions()[0])
	assert.Equal(t, tmpl.Len(), len(a.Conditions()))

	reason, err := a.Tick()
	require.NoError(t, err)
	assert.Empty(t, reason)

	assert.False(t, a.IsActive(), "a used up its only firing")
	assert.True(t, b.IsActive(), "b keeps its own budget")
	assert.Zero(t, limit.Count(), "template condition never mutates")
}

func TestInitializePreconditions(t *testing.T) {
	tmpl := NewTemplate("x", NewNoop(), true, AlwaysTrue())

	_, err := tmpl.NewInstance().Initialize(nil, newController())
	assert.ErrorIs(t, err, ErrNilOwner)

	_, err = tmpl.NewInstance().Initialize(newOwner("a", nil), nil)
	assert.ErrorIs(t, err, ErrNilController)

	b, _ := mustInit(t, tmpl, newOwner("a", nil), newController())
	_, err = b.Initialize(newOwner("a", nil), newController())
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	broken := NewTemplate("broken", NewNoop(), true, AlwaysTrue(), nil)
	assert.ErrorIs(t, broken.Validate(), ErrNilCondition)
	bi := broken.NewInstance()
	_, err = bi.Initialize(newOwner("a", nil), newController())
	assert.ErrorIs(t, err, ErrNilCondition)
	assert.False(t, bi.Initialized())

	noAction := NewTemplate("na", nil, true)
	assert.ErrorIs(t, noAction.Validate(), ErrNilAction)
	_, err = noAction.NewInstance().Initialize(newOwner("a", nil), newController())
	assert.ErrorIs(t, err, ErrNilAction)
}

func TestTickOutcomes(t *testing.T) {
	ctrl := newController()

	_, err := NewTemplate("x", NewNoop(), true).NewInstance().Tick()
	assert.ErrorIs(t, err, ErrNotInitialized)

	refuse, _ := mustInit(t, NewTemplate("refuse", NewFail("no target"), true, NewMaxFires(1)), newOwner("a", nil), ctrl)
	reason, err := refuse.Tick()
	require.NoError(t, err)
	assert.Equal(t, "no target", reason)
	assert.True(t, refuse.IsActive(), "a refusal is not a firing")

	boom := errors.New("boom")
	faulty := NewActionFunc("faulty", func(*Behaviour) (string, error) { return "", boom })
	fb, _ := mustInit(t, NewTemplate("faulty", faulty, true, NewMaxFires(1)), newOwner("a", nil), ctrl)
	_, err = fb.Tick()
	assert.ErrorIs(t, err, boom)
	assert.True(t, fb.IsActive(), "a fault is not a firing")
}

type initAction struct {
	Noop
	initErr error
	bound   string
}

func (a *initAction) Init(b *Behaviour) error {
	a.bound = b.Owner().ID()
	return a.initErr
}

func (a *initAction) Clone() Action { cp := *a; return &cp }

func TestActionInitializer(t *testing.T) {
	proto := &initAction{Noop: *NewNoop()}
	b, _ := mustInit(t, NewTemplate("x", proto, true), newOwner("owner-1", nil), newController())
	assert.Equal(t, "owner-1", b.Action().(*initAction).bound)
	assert.Empty(t, proto.bound)

	failing := &initAction{Noop: *NewNoop(), initErr: errors.New("missing weapon")}
	fi := NewTemplate("y", failing, true).NewInstance()
	_, err := fi.Initialize(newOwner("a", nil), newController())
	assert.ErrorContains(t, err, "missing weapon")
	assert.False(t, fi.Initialized())
	assert.Nil(t, fi.Owner())
}

func TestCloseReleasesInstance(t *testing.T) {
	script, err := NewScript("s", "return true")
	require.NoError(t, err)
	b, _ := mustInit(t, NewTemplate("x", NewNoop(), true, NewNot(script)), newOwner("a", nil), newController())
	require.NoError(t, b.Close())
	_, err = b.Tick()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

// tracked counts Init and Close calls across its clones.
type tracked struct {
	baseCondition
	initErr error
	opened  *int
	closed  *int
}

func newTracked(name string, initErr error) *tracked {
	return &tracked{baseCondition: baseCondition{name}, initErr: initErr, opened: new(int), closed: new(int)}
}

func (c *tracked) Init(*Behaviour) error {
	if c.initErr != nil {
		return c.initErr
	}
	*c.opened++
	return nil
}

func (c *tracked) Result(*Behaviour) bool { return true }
func (c *tracked) Clone() Condition       { cp := *c; return &cp }

func (c *tracked) Close() error {
	*c.closed++
	return nil
}

func TestFailedInitializeClosesClones(t *testing.T) {
	first := newTracked("first", nil)
	bad := newTracked("bad", errors.New("boom"))

	b := NewTemplate("x", NewNoop(), true, first, bad).NewInstance()
	_, err := b.Initialize(newOwner("a", nil), newController())
	require.ErrorContains(t, err, "boom")
	assert.Equal(t, 1, *first.opened)
	assert.Equal(t, 1, *first.closed)
	assert.Zero(t, *bad.closed, "a clone whose Init failed is not closed")
	assert.False(t, b.Initialized())

	script, err := NewScript("s", "return true")
	require.NoError(t, err)
	failing := &initAction{Noop: *NewNoop(), initErr: errors.New("no weapon")}
	tb := NewTemplate("y", failing, true, first, script).NewInstance()
	_, err = tb.Initialize(newOwner("a", nil), newController())
	require.ErrorContains(t, err, "no weapon")
	assert.Equal(t, 2, *first.closed)
}

func TestUninitializedIsNeverActive(t *testing.T) {
	b := NewTemplate("x", NewNoop(), true, AlwaysFalse()).NewInstance()
	assert.False(t, b.IsActive())

	ok, why := b.CheckActive()
	assert.False(t, ok)
	assert.Equal(t, "uninitialized", why)

	b.SetActive(false)
	_, why = b.CheckActive()
	assert.Equal(t, "disabled", why)
}

func TestInitializeRejectsTypedNil(t *testing.T) {
	chance, err := NewChance(0.5)
	require.NoError(t, err)
	tmpl := NewTemplate("x", NewNoop(), true, chance)

	var owner *testOwner
	_, err = tmpl.NewInstance().Initialize(owner, newController())
	assert.ErrorIs(t, err, ErrNilOwner)

	var ctrl *testController
	_, err = tmpl.NewInstance().Initialize(newOwner("a", nil), ctrl)
	assert.ErrorIs(t, err, ErrNilController)
}
