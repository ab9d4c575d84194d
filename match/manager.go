package match

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chess-persona/selection"
)

var ErrSessionNotFound = errors.New("session not found")

// Manager owns the live game sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	rng      *rand.Rand
	profiles selection.ProfileResolver
	searcher selection.Searcher
	logger   *zap.Logger
}

// NewManager creates a session manager. searcher may be nil, in which case
// engine moves and analysis fail with ErrNoEngine.
func NewManager(profiles selection.ProfileResolver, searcher selection.Searcher, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		profiles: profiles,
		searcher: searcher,
		logger:   logger,
	}
}

// Profiles returns the resolver sessions use.
func (m *Manager) Profiles() selection.ProfileResolver {
	return m.profiles
}

// Searcher returns the engine sessions use, possibly nil.
func (m *Manager) Searcher() selection.Searcher {
	return m.searcher
}

// Create starts a new session with its own RNG stream.
func (m *Manager) Create() *Session {
	m.mu.Lock()
	seed := m.rng.Int63()
	m.mu.Unlock()

	s := NewSession(uuid.NewString(), m.profiles, m.searcher, seed, m.logger)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("session created", zap.String("session", s.ID()), zap.Int("sessions", n))
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove forgets a session. Removing an unknown id is a no-op.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		m.logger.Info("session removed", zap.String("session", id))
	}
}

// IDs lists the live session ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Prune removes sessions idle for longer than maxIdle and returns how many
// were dropped.
func (m *Manager) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.updated.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}
