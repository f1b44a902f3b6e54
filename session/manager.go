package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/c360studio/rolefit/metrics"
	"github.com/google/uuid"
)

// DefaultIdleTimeout is how long a session may go without an intent
// before Sweep discards it.
const DefaultIdleTimeout = 30 * time.Minute

// ManagerConfig holds the Manager settings.
type ManagerConfig struct {
	// IdleTimeout expires sessions with no activity. 0 disables expiry.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// SweepInterval is how often Run checks for idle sessions.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// Session configures each new session.
	Session Config `yaml:"-"`
}

// Manager owns the in-memory sessions of a server.
type Manager struct {
	questions   QuestionSource
	suggestions SuggestionSource
	cfg         ManagerConfig
	logger      *slog.Logger
	metrics     *metrics.Metrics
	onComplete  CompletionHook

	mu       sync.RWMutex
	sessions map[string]*Machine
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerConfig sets the manager settings.
func WithManagerConfig(cfg ManagerConfig) ManagerOption {
	return func(m *Manager) { m.cfg = cfg }
}

// WithManagerLogger sets the logger shared by the manager and its sessions.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithManagerMetrics sets the collectors shared by the manager and its sessions.
func WithManagerMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

// WithResultHook sets the completion hook given to every session.
func WithResultHook(h CompletionHook) ManagerOption {
	return func(m *Manager) { m.onComplete = h }
}

// NewManager creates an empty manager.
func NewManager(questions QuestionSource, suggestions SuggestionSource, opts ...ManagerOption) *Manager {
	m := &Manager{
		questions:   questions,
		suggestions: suggestions,
		cfg: ManagerConfig{
			IdleTimeout:   DefaultIdleTimeout,
			SweepInterval: time.Minute,
			Session:       DefaultConfig(),
		},
		logger:   slog.Default(),
		sessions: make(map[string]*Machine),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "sessions")
	return m
}

// Create starts a new session and returns it.
func (m *Manager) Create() *Machine {
	id := uuid.New().String()
	s := NewMachine(m.questions, m.suggestions,
		WithID(id),
		WithConfig(m.cfg.Session),
		WithLogger(m.logger),
		WithMetrics(m.metrics),
		WithCompletionHook(m.onComplete),
	)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.metrics.SessionOpened()
	m.logger.Debug("Session created", "session_id", id)
	return s
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Machine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete closes and removes the session with id. It reports whether the
// session existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	m.metrics.SessionClosed()
	return true
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs returns the live session ids, sorted.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Sweep removes sessions idle since before now minus the idle timeout and
// returns how many were removed.
func (m *Manager) Sweep(now time.Time) int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-m.cfg.IdleTimeout)

	m.mu.RLock()
	var idle []string
	for id, s := range m.sessions {
		if s.LastActivity().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, id := range idle {
		if m.Delete(id) {
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("Expired idle sessions", "count", removed)
	}
	return removed
}

// Run sweeps idle sessions until ctx is canceled, then closes every
// remaining session.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}

func (m *Manager) closeAll() {
	for _, id := range m.IDs() {
		m.Delete(id)
	}
}
