package controller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zeusync/behaviour/internal/core/observability/log"
	"github.com/zeusync/behaviour/internal/core/storage"
	"github.com/zeusync/behaviour/pkg/concurrent"
)

// Manager ticks many controllers in parallel. Controllers share nothing
// mutable, so each one is ticked on its own goroutine.
type Manager struct {
	mu          sync.RWMutex
	controllers map[string]*Controller
	workers     int
	log         log.Log
}

// NewManager creates a manager running at most workers ticks at a time
// (workers <= 0 means one goroutine per controller).
func NewManager(workers int, logger log.Log) *Manager {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Manager{
		controllers: make(map[string]*Controller),
		workers:     workers,
		log:         logger,
	}
}

// Add registers an initialized controller under its owner id.
func (m *Manager) Add(c *Controller) error {
	if c == nil || c.Owner() == nil {
		return ErrNoOwner
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := c.ID()
	if _, exists := m.controllers[id]; exists {
		return fmt.Errorf("controller for owner %s already exists", id)
	}
	m.controllers[id] = c
	return nil
}

// Remove unregisters and closes a controller.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	c, ok := m.controllers[id]
	delete(m.controllers, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	if err := c.Close(); err != nil {
		m.log.Warn("controller close failed", log.Owner(id), log.Error(err))
	}
	return true
}

func (m *Manager) Get(id string) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.controllers[id]
	return c, ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.controllers)
}

// Controllers returns a snapshot sorted by owner id.
func (m *Manager) Controllers() []*Controller {
	m.mu.RLock()
	out := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		out = append(out, c)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// TickAll ticks every controller once. A controller that fails to tick does
// not stop the others; errors are joined.
func (m *Manager) TickAll(ctx context.Context) (map[string]Outcome, error) {
	ctrls := m.Controllers()
	var (
		mu       sync.Mutex
		outcomes = make(map[string]Outcome, len(ctrls))
		errs     error
	)
	err := concurrent.ForEach(ctx, ctrls, m.workers, func(_ context.Context, c *Controller) error {
		out, err := c.Tick()
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("owner %s: %w", c.ID(), err))
			return nil
		}
		outcomes[c.ID()] = out
		return nil
	})
	return outcomes, errors.Join(err, errs)
}

// Run calls TickAll every interval until ctx is cancelled. Tick errors are
// logged and do not stop the loop.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("manager: invalid tick interval %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			start := time.Now()
			outcomes, err := m.TickAll(ctx)
			if err != nil && ctx.Err() == nil {
				m.log.Error("tick failed", log.Error(err))
			}
			fired := 0
			for _, o := range outcomes {
				if !o.Idle() {
					fired++
				}
			}
			m.log.Debug("tick complete",
				log.Int("controllers", len(outcomes)),
				log.Int("fired", fired),
				log.Duration("took", time.Since(start)))
		}
	}
}

// SaveAll writes every controller's snapshot to the store.
func (m *Manager) SaveAll(ctx context.Context, store storage.SnapshotStore) error {
	return concurrent.ForEach(ctx, m.Controllers(), m.workers, func(ctx context.Context, c *Controller) error {
		data, err := c.SaveState()
		if err != nil {
			return fmt.Errorf("owner %s: %w", c.ID(), err)
		}
		return store.Save(ctx, c.ID(), data)
	})
}

// RestoreAll loads snapshots for registered controllers. It returns how many
// were restored; owners without a snapshot are left alone.
func (m *Manager) RestoreAll(ctx context.Context, store storage.SnapshotStore) (int, error) {
	var (
		mu       sync.Mutex
		restored int
	)
	err := concurrent.ForEach(ctx, m.Controllers(), m.workers, func(ctx context.Context, c *Controller) error {
		data, ok, err := store.Load(ctx, c.ID())
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := c.LoadState(data); err != nil {
			return fmt.Errorf("owner %s: %w", c.ID(), err)
		}
		mu.Lock()
		restored++
		mu.Unlock()
		return nil
	})
	return restored, err
}
