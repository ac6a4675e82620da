package session

import "sync"

// Position is a WGS84 coordinate.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Surface is the map the placement marker lives on.
type Surface interface {
	AddMarker(at Position) Marker
}

// Marker is the draggable placement marker. Remove must be safe to call twice.
type Marker interface {
	Position() Position
	MoveTo(p Position)
	Remove()
}

// MemorySurface keeps markers in memory for server-held sessions.
type MemorySurface struct {
	mu     sync.Mutex
	live   int
	placed int
}

// NewMemorySurface creates an empty surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{}
}

func (s *MemorySurface) AddMarker(at Position) Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live++
	s.placed++
	return &memoryMarker{surface: s, pos: at}
}

// Live returns the number of markers not yet removed.
func (s *MemorySurface) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Placed returns the number of markers ever added.
func (s *MemorySurface) Placed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.placed
}

type memoryMarker struct {
	surface *MemorySurface
	pos     Position
	removed bool
}

func (m *memoryMarker) Position() Position {
	m.surface.mu.Lock()
	defer m.surface.mu.Unlock()
	return m.pos
}

func (m *memoryMarker) MoveTo(p Position) {
	m.surface.mu.Lock()
	defer m.surface.mu.Unlock()
	if !m.removed {
		m.pos = p
	}
}

func (m *memoryMarker) Remove() {
	m.surface.mu.Lock()
	defer m.surface.mu.Unlock()
	if m.removed {
		return
	}
	m.removed = true
	m.surface.live--
}
