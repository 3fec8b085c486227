package generic

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolReset(t *testing.T) {
	var resets int
	p := NewPool(func() []int { return make([]int, 0, 4) }, func([]int) { resets++ })

	v := p.Get()
	assert.Equal(t, 4, cap(v))
	p.Put(v)
	assert.Equal(t, 1, resets)
}

func TestEncodeWith(t *testing.T) {
	first, err := EncodeWith(func(b *bytes.Buffer) error {
		b.WriteString("alpha")
		return nil
	})
	require.NoError(t, err)

	second, err := EncodeWith(func(b *bytes.Buffer) error {
		assert.Zero(t, b.Len())
		b.WriteString("beta")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "alpha", string(first))
	assert.Equal(t, "beta", string(second))

	_, err = EncodeWith(func(*bytes.Buffer) error { return errors.New("boom") })
	assert.EqualError(t, err, "boom")
}
