package session

import (
	"context"
	"sync"
	"time"

	"field_inventory_backend/internal/events"
	"field_inventory_backend/platform/logger"
	"field_inventory_backend/platform/metrics"

	"github.com/google/uuid"
)

type managedSession struct {
	machine  *Machine
	lastSeen time.Time
}

// Manager holds at most one placement session per user. Sessions idle for
// longer than idleTTL are closed, which removes their markers.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*managedSession
	catalog  Catalog
	store    FeatureStore
	idleTTL  time.Duration
	log      *logger.Logger
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a manager. A zero idleTTL disables eviction.
func NewManager(catalog Catalog, store FeatureStore, idleTTL time.Duration, log *logger.Logger) *Manager {
	m := &Manager{
		sessions: make(map[uuid.UUID]*managedSession),
		catalog:  catalog,
		store:    store,
		idleTTL:  idleTTL,
		log:      log,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if idleTTL > 0 {
		go m.sweepLoop()
	}
	return m
}

// Open returns the user's session for projectID. An open session on another
// project is closed first, so a user never holds two.
func (m *Manager) Open(userID, projectID uuid.UUID) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		if s.machine.ProjectID() == projectID {
			s.lastSeen = m.now()
			return s.machine
		}
		s.machine.Close()
		delete(m.sessions, userID)
	}

	machine := NewMachine(userID, projectID, m.catalog, m.store, NewMemorySurface())
	m.sessions[userID] = &managedSession{machine: machine, lastSeen: m.now()}
	metrics.PlacementSessionsActive.Set(float64(len(m.sessions)))
	m.log.Info("placement session opened", "userId", userID, "projectId", projectID)
	return machine
}

// Get returns the user's session and marks it as used.
func (m *Manager) Get(userID uuid.UUID) (*Machine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	s.lastSeen = m.now()
	return s.machine, true
}

// Unmount closes and forgets the user's session.
func (m *Manager) Unmount(userID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		s.machine.Close()
		delete(m.sessions, userID)
		metrics.PlacementSessionsActive.Set(float64(len(m.sessions)))
	}
}

// Sweep unmounts sessions idle for longer than idleTTL and returns how many were removed.
func (m *Manager) Sweep() int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for userID, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			s.machine.Close()
			delete(m.sessions, userID)
			removed++
		}
	}
	if removed > 0 {
		metrics.PlacementSessionsActive.Set(float64(len(m.sessions)))
		m.log.Info("idle placement sessions unmounted", "count", removed)
	}
	return removed
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the sweeper and unmounts every session. Safe to call more than once.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })

	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, s := range m.sessions {
		s.machine.Close()
		delete(m.sessions, userID)
	}
	metrics.PlacementSessionsActive.Set(0)
}

// RegisterHandlers refreshes the point layer of sessions on a project whenever
// its features change.
func (m *Manager) RegisterHandlers(bus events.Bus) {
	refresh := events.HandlerFunc(func(_ context.Context, e events.Event) error {
		if ev, ok := e.(events.ProjectEvent); ok {
			m.bumpProject(ev.Project())
		}
		return nil
	})
	for _, name := range events.ProjectNames {
		bus.Subscribe(name, refresh)
	}
}

func (m *Manager) bumpProject(projectID uuid.UUID) {
	m.mu.Lock()
	machines := make([]*Machine, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.machine.ProjectID() == projectID {
			machines = append(machines, s.machine)
		}
	}
	m.mu.Unlock()

	for _, machine := range machines {
		machine.BumpPoints()
	}
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
