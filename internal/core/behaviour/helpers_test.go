package behaviour

import (
	"time"

	"github.com/zeusync/behaviour/internal/core/blackboard"
	"github.com/zeusync/behaviour/internal/core/events/bus"
	"github.com/zeusync/behaviour/internal/core/observability/log"
)

type testOwner struct {
	id    string
	state blackboard.Blackboard
}

func newOwner(id string, state map[string]any) *testOwner {
	return &testOwner{id: id, state: blackboard.New(state)}
}

func (o *testOwner) ID() string                   { return o.id }
func (o *testOwner) Name() string                 { return "npc " + o.id }
func (o *testOwner) State() blackboard.Blackboard { return o.state }

type testController struct {
	now    time.Time
	events bus.EventBus
}

func newController() *testController {
	return &testController{now: time.Unix(1_700_000_000, 0), events: bus.New()}
}

func (c *testController) Now() time.Time          { return c.now }
func (c *testController) Logger() log.Log         { return log.NewNop() }
func (c *testController) Events() bus.EventBus    { return c.events }
func (c *testController) advance(d time.Duration) { c.now = c.now.Add(d) }

// counting records how often Result was evaluated. Clones share the counter.
type counting struct {
	baseCondition
	result bool
	calls  *int
}

func newCounting(name string, result bool) (*counting, *int) {
	n := 0
	return &counting{baseCondition: baseCondition{name}, result: result, calls: &n}, &n
}

func (c *counting) Result(*Behaviour) bool {
	*c.calls++
	return c.result
}

func (c *counting) Clone() Condition { cp := *c; return &cp }

func mustInit(t interface {
	Helper()
	Fatalf(string, ...any)
}, tmpl *Template, owner Owner, ctrl Controller) (*Behaviour, bool) {
	t.Helper()
	b := tmpl.NewInstance()
	ok, err := b.Initialize(owner, ctrl)
	if err != nil {
		t.Fatalf("initialize %s: %v", tmpl.Name(), err)
	}
	return b, ok
}
