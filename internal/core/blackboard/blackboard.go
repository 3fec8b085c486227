// Package blackboard holds the mutable state of a single NPC. Conditions read
// it, actions write it.
package blackboard

import (
	"bytes"
	"encoding/gob"
	"maps"
	"sort"
	"strings"
	"sync"
)

// Nested values arrive from YAML assets and config as generic maps and lists.
func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// Blackboard is a thread-safe key/value store with namespaced views.
type Blackboard interface {
	// Get retrieves a value by key. Returns (nil, false) if absent.
	Get(key string) (any, bool)
	// Set assigns a value by key.
	Set(key string, value any)
	// Delete removes a value by key.
	Delete(key string)
	// Namespace returns a view whose keys are stored as "ns:key".
	Namespace(ns string) Blackboard
	// Keys returns a sorted snapshot of existing keys.
	Keys() []string
	// Snapshot returns a copy of the visible key/value pairs.
	Snapshot() map[string]any
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(b []byte) error
}

type bbMap struct {
	mu     sync.RWMutex
	data   map[string]any
	prefix string
	root   *bbMap
}

// New creates a root blackboard, optionally seeded with initial values.
func New(initial map[string]any) Blackboard {
	m := &bbMap{data: make(map[string]any, len(initial))}
	m.root = m
	maps.Copy(m.data, initial)
	return m
}

func (b *bbMap) fullKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + ":" + key
}

func (b *bbMap) Get(key string) (any, bool) {
	bb := b.root
	bb.mu.RLock()
	defer bb.mu.RUnlock()
	v, ok := bb.data[b.fullKey(key)]
	return v, ok
}

func (b *bbMap) Set(key string, value any) {
	bb := b.root
	bb.mu.Lock()
	bb.data[b.fullKey(key)] = value
	bb.mu.Unlock()
}

func (b *bbMap) Delete(key string) {
	bb := b.root
	bb.mu.Lock()
	delete(bb.data, b.fullKey(key))
	bb.mu.Unlock()
}

func (b *bbMap) Namespace(ns string) Blackboard {
	ns = strings.ReplaceAll(ns, ":", "_")
	return &bbMap{root: b.root, prefix: b.fullKey(ns)}
}

func (b *bbMap) Keys() []string {
	snap := b.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b *bbMap) Snapshot() map[string]any {
	bb := b.root
	bb.mu.RLock()
	defer bb.mu.RUnlock()
	if b.prefix == "" {
		return maps.Clone(bb.data)
	}
	pref := b.prefix + ":"
	out := make(map[string]any)
	for k, v := range bb.data {
		if strings.HasPrefix(k, pref) {
			out[strings.TrimPrefix(k, pref)] = v
		}
	}
	return out
}

// MarshalBinary encodes the whole root state with gob, regardless of the view.
func (b *bbMap) MarshalBinary() ([]byte, error) {
	bb := b.root
	bb.mu.RLock()
	defer bb.mu.RUnlock()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(bb.data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary replaces the root state.
func (b *bbMap) UnmarshalBinary(data []byte) error {
	restored := make(map[string]any)
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&restored); err != nil {
		return err
	}
	bb := b.root
	bb.mu.Lock()
	bb.data = restored
	bb.mu.Unlock()
	return nil
}

// Float reads a numeric value as float64.
func Float(bb Blackboard, key string) (float64, bool) {
	v, ok := bb.Get(key)
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// ToFloat converts the numeric kinds found in blackboards and decoded
// YAML/JSON documents.
func ToFloat(v any) (float64, bool) {
	switch tv := v.(type) {
	case float64:
		return tv, true
	case float32:
		return float64(tv), true
	case int:
		return float64(tv), true
	case int64:
		return float64(tv), true
	case int32:
		return float64(tv), true
	case uint:
		return float64(tv), true
	case uint64:
		return float64(tv), true
	default:
		return 0, false
	}
}

// Bool reads a boolean value; absent or non-bool values are false.
func Bool(bb Blackboard, key string) bool {
	v, ok := bb.Get(key)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}
