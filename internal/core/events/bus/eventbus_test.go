package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got Event
	_, err := b.Subscribe(TypeBehaviourFired, func(e Event) error {
		got = e
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent(TypeBehaviourFired, "npc-1", "flee", nil)))
	require.NotNil(t, got)
	assert.Equal(t, "npc-1", got.Source())
	assert.Equal(t, "flee", got.Data())
}

func TestPublishJoinsHandlerErrors(t *testing.T) {
	b := New()
	e1, e2 := errors.New("one"), errors.New("two")
	_, _ = b.Subscribe("x", func(Event) error { return e1 })
	_, _ = b.Subscribe("x", func(Event) error { return e2 })

	err := b.Publish(NewEvent("x", "src", nil, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
}

func TestSubscribeManyAndCancel(t *testing.T) {
	b := New()
	calls := 0
	sub, err := b.SubscribeMany(func(Event) error {
		calls++
		return nil
	}, TypeBehaviourFired, TypeBehaviourIdle)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers(TypeBehaviourFired))
	assert.Equal(t, 1, b.Subscribers(TypeBehaviourIdle))

	_ = b.Publish(NewEvent(TypeBehaviourFired, "a", nil, nil))
	_ = b.Publish(NewEvent(TypeBehaviourIdle, "a", nil, nil))
	_ = b.Publish(NewEvent(TypeBehaviourFault, "a", nil, nil))
	assert.Equal(t, 2, calls)

	require.NoError(t, b.Unsubscribe(sub))
	require.NoError(t, sub.Cancel())
	assert.False(t, sub.IsActive())
	assert.Zero(t, b.Subscribers(TypeBehaviourFired))

	_ = b.Publish(NewEvent(TypeBehaviourFired, "a", nil, nil))
	assert.Equal(t, 2, calls)
}

func TestSubscribeRejectsBadInput(t *testing.T) {
	b := New()
	_, err := b.Subscribe("x", nil)
	assert.Error(t, err)
	_, err = b.SubscribeMany(func(Event) error { return nil })
	assert.Error(t, err)
	assert.NoError(t, b.Unsubscribe(nil))
}
