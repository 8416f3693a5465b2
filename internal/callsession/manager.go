package callsession

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// socketCloser is the close side of a websocket.Conn.
type socketCloser interface {
	Close(code websocket.StatusCode, reason string) error
}

// SessionManager tracks live call sockets per user and tab.
type SessionManager struct {
	mu     sync.RWMutex
	active map[string]map[string]socketCloser
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		active: make(map[string]map[string]socketCloser),
	}
}

// Active reports whether a user has a live call socket in tab.
func (m *SessionManager) Active(userID, tabID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.active[userID][tabID]
	return ok
}

// Count returns the number of live call sockets of a user.
func (m *SessionManager) Count(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active[userID])
}

// Register adds a call socket. A socket already registered for the same tab
// is closed and replaced. Sockets are closed after the lock is released.
func (m *SessionManager) Register(userID, tabID string, conn socketCloser) {
	m.mu.Lock()
	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]socketCloser)
	}
	existing, exists := m.active[userID][tabID]
	m.active[userID][tabID] = conn
	m.mu.Unlock()

	if exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "call replaced")
	}
	slog.Info("Call socket registered", "user_id", userID, "tab_id", tabID)
}

// Unregister removes conn if it is still the socket registered for the tab.
func (m *SessionManager) Unregister(userID, tabID string, conn socketCloser) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[userID]
	if !ok {
		return
	}
	if current, exists := sessions[tabID]; exists && current == conn {
		delete(sessions, tabID)
		if len(sessions) == 0 {
			delete(m.active, userID)
		}
		slog.Info("Call socket unregistered", "user_id", userID, "tab_id", tabID)
	}
}

// CloseUser closes every call socket of a user.
func (m *SessionManager) CloseUser(userID string) {
	m.mu.Lock()
	sessions, ok := m.active[userID]
	delete(m.active, userID)
	m.mu.Unlock()

	if !ok {
		return
	}
	for tab, conn := range sessions {
		_ = conn.Close(websocket.StatusNormalClosure, "signed out")
		slog.Info("Call socket closed", "user_id", userID, "tab_id", tab)
	}
}
