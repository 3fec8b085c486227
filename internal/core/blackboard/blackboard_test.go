package blackboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetDelete(t *testing.T) {
	bb := New(map[string]any{"health": 100})
	v, ok := bb.Get("health")
	require.True(t, ok)
	assert.Equal(t, 100, v)

	bb.Set("alert", true)
	assert.True(t, Bool(bb, "alert"))

	bb.Delete("alert")
	_, ok = bb.Get("alert")
	assert.False(t, ok)
	assert.False(t, Bool(bb, "alert"))
}

func TestNamespace(t *testing.T) {
	bb := New(nil)
	combat := bb.Namespace("combat")
	combat.Set("target", "player")
	bb.Set("health", 10)

	v, ok := bb.Get("combat:target")
	require.True(t, ok)
	assert.Equal(t, "player", v)

	assert.Equal(t, []string{"target"}, combat.Keys())
	assert.Equal(t, []string{"combat:target", "health"}, bb.Keys())

	nested := combat.Namespace("a:b")
	nested.Set("x", 1)
	_, ok = bb.Get("combat:a_b:x")
	assert.True(t, ok)
}

func TestFloat(t *testing.T) {
	bb := New(map[string]any{"i": 3, "f": 2.5, "s": "nope", "i64": int64(7)})
	f, ok := Float(bb, "i")
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)
	f, _ = Float(bb, "f")
	assert.Equal(t, 2.5, f)
	f, _ = Float(bb, "i64")
	assert.Equal(t, 7.0, f)
	_, ok = Float(bb, "s")
	assert.False(t, ok)
	_, ok = Float(bb, "missing")
	assert.False(t, ok)
}

func TestBinaryRoundTripReplacesState(t *testing.T) {
	src := New(map[string]any{"health": 42, "name": "guard", "alert": true})
	data, err := src.MarshalBinary()
	require.NoError(t, err)

	dst := New(map[string]any{"stale": 1})
	require.NoError(t, dst.UnmarshalBinary(data))

	assert.Equal(t, src.Snapshot(), dst.Snapshot())
	_, ok := dst.Get("stale")
	assert.False(t, ok)
}

func TestBinaryRoundTripNestedValues(t *testing.T) {
	src := New(map[string]any{
		"patrol": map[string]any{"from": "gate", "laps": 3},
		"route":  []any{"gate", 2.5, true, map[string]any{"x": 1}},
	})
	data, err := src.MarshalBinary()
	require.NoError(t, err)

	dst := New(nil)
	require.NoError(t, dst.UnmarshalBinary(data))
	assert.Equal(t, src.Snapshot(), dst.Snapshot())
}
