package memory

import (
	"sync"

	"quiz-attempt-service/internal/app"
)

// SessionRegistry is an in-memory implementation of app.SessionRegistry.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*app.AttemptSession
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*app.AttemptSession),
	}
}

// Put registers a session for an attempt ID. If a session already exists it
// wins and is returned; only one session drives an attempt at a time.
func (r *SessionRegistry) Put(attemptID string, session *app.AttemptSession) *app.AttemptSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[attemptID]; ok {
		return existing
	}
	r.sessions[attemptID] = session
	return session
}

func (r *SessionRegistry) Get(attemptID string) (*app.AttemptSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[attemptID]
	return session, ok
}

func (r *SessionRegistry) Delete(attemptID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, attemptID)
}
