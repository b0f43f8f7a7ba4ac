// Package fsm tracks per-user conversation state for the registration
// and feedback flows.
package fsm

import "sync"

// State is a user's position in the conversation flow.
type State int

const (
	StateNone State = iota
	StateAwaitingEmail
	StateAwaitingPassword
	StateAwaitingFeedback
)

func (s State) String() string {
	switch s {
	case StateAwaitingEmail:
		return "awaiting_email"
	case StateAwaitingPassword:
		return "awaiting_password"
	case StateAwaitingFeedback:
		return "awaiting_feedback"
	default:
		return "none"
	}
}

// Manager holds conversation state in memory, keyed by user id.
type Manager struct {
	mu     sync.RWMutex
	states map[int64]State
}

func NewManager() *Manager {
	return &Manager{states: make(map[int64]State)}
}

func (m *Manager) Get(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[userID]
}

func (m *Manager) Set(userID int64, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userID] = state
}

func (m *Manager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, userID)
}
