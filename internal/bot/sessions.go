package bot

import "sync"

// sessionState marks what kind of input the bot expects next from a user.
type sessionState int

const (
	stateIdle sessionState = iota
	stateBusinessPlanInfo
	stateValuePropositionInfo
	stateBroadcastMessage
	stateDocumentTitle
	stateFeedbackMessage
)

// session is per-user conversation state. data carries step-specific
// payload, like the stored file path awaiting a title.
type session struct {
	State sessionState
	Data  map[string]string
}

// sessionManager is a mutex-guarded map of active user sessions. Users
// without a session are idle.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[int64]*session
}

func newSessionManager() *sessionManager {
	return &sessionManager{sessions: make(map[int64]*session)}
}

// Get returns the user's current state and payload.
func (m *sessionManager) Get(userID int64) (sessionState, map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return stateIdle, nil
	}
	return s.State, s.Data
}

// Set replaces the user's session state and payload.
func (m *sessionManager) Set(userID int64, state sessionState, data map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state == stateIdle {
		delete(m.sessions, userID)
		return
	}
	m.sessions[userID] = &session{State: state, Data: data}
}

// Clear drops the user's session and reports whether one existed.
func (m *sessionManager) Clear(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	delete(m.sessions, userID)
	return ok
}
