package generic

import (
	"bytes"
	"sync"
)

// Pool is a typed sync.Pool. reset, when set, runs on every value handed back
// through Put.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
}

func NewPool[T any](generate func() T, reset func(T)) *Pool[T] {
	return &Pool[T]{
		pool:  sync.Pool{New: func() any { return generate() }},
		reset: reset,
	}
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	if p.reset != nil {
		p.reset(value)
	}
	p.pool.Put(value)
}

// Buffers holds scratch buffers for snapshot encoding.
var Buffers = NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

// EncodeWith runs encode against a pooled buffer and returns a copy of what
// it wrote.
func EncodeWith(encode func(*bytes.Buffer) error) ([]byte, error) {
	buf := Buffers.Get()
	defer Buffers.Put(buf)
	if err := encode(buf); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}
