package controller

import (
	"bytes"
	"encoding/gob"
	"sync"
	"time"
)

// DecisionRecord is one tick of one controller as kept in its history.
type DecisionRecord struct {
	Tick      uint64        `json:"tick"`
	Fired     string        `json:"fired,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Faults    int           `json:"faults,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"ts"`
}

// History is a bounded, thread-safe log of decisions; the oldest records are
// dropped once the limit is reached.
type History struct {
	mu    sync.RWMutex
	limit int
	list  []DecisionRecord
}

// NewHistory creates a history; limit <= 0 keeps everything.
func NewHistory(limit int) *History {
	capacity := limit
	if capacity <= 0 || capacity > 128 {
		capacity = 128
	}
	return &History{limit: limit, list: make([]DecisionRecord, 0, capacity)}
}

func (h *History) Append(rec DecisionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.limit > 0 && len(h.list) == h.limit {
		copy(h.list, h.list[1:])
		h.list[len(h.list)-1] = rec
		return
	}
	h.list = append(h.list, rec)
}

// Records returns a copy, oldest first.
func (h *History) Records() []DecisionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make([]DecisionRecord, len(h.list))
	copy(cp, h.list)
	return cp
}

// Last returns the most recent record.
func (h *History) Last() (DecisionRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.list) == 0 {
		return DecisionRecord{}, false
	}
	return h.list[len(h.list)-1], true
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.list)
}

func (h *History) Reset() {
	h.mu.Lock()
	h.list = h.list[:0]
	h.mu.Unlock()
}

// Save serializes the history with gob.
func (h *History) Save() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(h.list); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load replaces the history, keeping only the newest records within limit.
func (h *History) Load(b []byte) error {
	var list []DecisionRecord
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&list); err != nil {
		return err
	}
	if h.limit > 0 && len(list) > h.limit {
		list = list[len(list)-h.limit:]
	}
	h.mu.Lock()
	h.list = list
	h.mu.Unlock()
	return nil
}
