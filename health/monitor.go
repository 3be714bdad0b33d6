package health

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// Check reports the current health of one component.
type Check func(ctx context.Context) Status

// Monitor collects component health. Components either register a Check that
// runs on every report or push their status with Update.
type Monitor struct {
	name string

	mu       sync.RWMutex
	checks   map[string]Check
	statuses map[string]Status
}

// NewMonitor creates a monitor reporting as name.
func NewMonitor(name string) *Monitor {
	return &Monitor{
		name:     name,
		checks:   make(map[string]Check),
		statuses: make(map[string]Status),
	}
}

// Register adds a pull-based check for component.
func (m *Monitor) Register(component string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[component] = check
}

// Update records a pushed status for component.
func (m *Monitor) Update(component string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = component
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[component] = status
}

// Remove stops reporting component.
func (m *Monitor) Remove(component string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checks, component)
	delete(m.statuses, component)
}

// Health runs every check and aggregates them with the pushed statuses.
// Sub-statuses are ordered by component name.
func (m *Monitor) Health(ctx context.Context) Status {
	m.mu.RLock()
	checks := make(map[string]Check, len(m.checks))
	for name, c := range m.checks {
		checks[name] = c
	}
	subs := make([]Status, 0, len(m.statuses)+len(m.checks))
	for _, s := range m.statuses {
		subs = append(subs, s)
	}
	m.mu.RUnlock()

	for name, check := range checks {
		s := check(ctx)
		s.Component = name
		subs = append(subs, s)
	}

	slices.SortFunc(subs, func(a, b Status) int {
		return strings.Compare(a.Component, b.Component)
	})
	return Aggregate(m.name, subs)
}
