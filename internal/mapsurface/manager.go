package mapsurface

import (
	"sync"

	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/pkg/metrics"
)

// Manager owns the active surface and swaps engines. It keeps no map state
// of its own: callers pass the center and pins on every render and switch.
type Manager struct {
	opts Options
	cb   Callbacks

	mu      sync.Mutex
	current Surface
}

// NewManager creates a manager with an initial engine.
func NewManager(p Provider, opts Options, cb Callbacks) (*Manager, error) {
	s, err := New(p, opts, cb)
	if err != nil {
		return nil, err
	}
	return &Manager{opts: opts, cb: cb, current: s}, nil
}

// Switch tears down the current engine and renders center and pins on a
// fresh instance of p. Switching to the active provider is a no-op.
func (m *Manager) Switch(p Provider, center domain.Coordinates, pins []domain.Pin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Provider() == p {
		return nil
	}
	next, err := New(p, m.opts, m.cb)
	if err != nil {
		return err
	}
	m.current.Close()
	m.current = next
	metrics.ProviderSwitches.WithLabelValues(string(p)).Inc()
	return next.Render(center, pins)
}

func (m *Manager) Render(center domain.Coordinates, pins []domain.Pin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Render(center, pins)
}

// Dispatch does not hold the manager lock while callbacks run, so a callback
// may render. An event racing a switch hits the closed engine and gets
// ErrClosed.
func (m *Manager) Dispatch(raw []byte) error {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	return s.Dispatch(raw)
}

func (m *Manager) Frame() Frame {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	return s.Frame()
}

func (m *Manager) Provider() Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Provider()
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Close()
}
