package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kiseto/order-intake/internal/domain/catalog"
)

// Manager owns the live sessions, keyed by an opaque token carried in a
// cookie. Idle sessions are evicted after the configured TTL.
type Manager struct {
	catalog *catalog.Catalog
	creds   Credentials
	ttl     time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty Manager. ttl bounds how long an idle session
// survives between user actions.
func NewManager(c *catalog.Catalog, creds Credentials, ttl time.Duration) *Manager {
	return &Manager{
		catalog:  c,
		creds:    creds,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Create allocates a fresh session in the login phase and returns its token.
func (m *Manager) Create() *Session {
	s := newSession(uuid.New().String(), m.catalog, m.creds)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.id] = s
	return s
}

// Get returns the session for token, or false when the token is unknown or
// the session has expired.
func (m *Manager) Get(token string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return nil, false
	}
	if m.expired(s, time.Now()) {
		delete(m.sessions, token)
		return nil, false
	}
	return s, true
}

// Drop removes a session, ending the user's visit.
func (m *Manager) Drop(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) expired(s *Session, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen) > m.ttl
}

// cleanup evicts every expired session.
func (m *Manager) cleanup(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for token, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, token)
		}
	}
}

// StartCleanup launches a background goroutine that evicts expired sessions
// every half TTL. It stops when ctx is cancelled.
func (m *Manager) StartCleanup(ctx context.Context) {
	interval := m.ttl / 2
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.cleanup(now)
			}
		}
	}()
}
