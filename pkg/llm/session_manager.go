package llm

import (
	"sync"
	"time"
)

// GlobalSessionID is the key every caller shares when sessions are global.
const GlobalSessionID = "global"

// Session owns the conversation state of one caller: the transcript and
// the memory slot. Lock serializes turns so the transcript always holds
// complete tool-call/tool-result pairs.
type Session struct {
	ID        string
	History   *ChatHistory
	Memory    *MemorySlot
	CreatedAt time.Time

	mu sync.Mutex
}

func newSession(id string) *Session {
	return &Session{
		ID:        id,
		History:   NewChatHistory(),
		Memory:    NewMemorySlot(),
		CreatedAt: time.Now(),
	}
}

// Lock acquires exclusive use of the session for one turn.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// SessionManager hands out sessions by id. With global scope every id
// resolves to the same shared session, and concurrent users overwrite each
// other's memory (last writer wins).
type SessionManager struct {
	sessions map[string]*Session
	global   bool
	mu       sync.RWMutex
}

// NewSessionManager creates a manager. global selects the shared scope.
func NewSessionManager(global bool) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		global:   global,
	}
}

// Global reports whether all callers share one session.
func (sm *SessionManager) Global() bool {
	return sm.global
}

// Key maps a caller-supplied id to the internal session key.
func (sm *SessionManager) Key(sessionID string) string {
	if sm.global || sessionID == "" {
		return GlobalSessionID
	}
	return sessionID
}

// Get returns the session for sessionID, creating it on first use.
func (sm *SessionManager) Get(sessionID string) *Session {
	key := sm.Key(sessionID)

	sm.mu.RLock()
	s, ok := sm.sessions[key]
	sm.mu.RUnlock()
	if ok {
		return s
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	// Double check under lock
	if s, ok = sm.sessions[key]; ok {
		return s
	}
	s = newSession(key)
	sm.sessions[key] = s
	return s
}

// Acquire returns the session for sessionID with its lock held. A waiter
// whose session was dropped while it blocked retries on the replacement,
// so no turn runs on a session that is no longer reachable.
func (sm *SessionManager) Acquire(sessionID string) *Session {
	key := sm.Key(sessionID)
	for {
		s := sm.Get(sessionID)
		s.Lock()

		sm.mu.RLock()
		current := sm.sessions[key]
		sm.mu.RUnlock()
		if current == s {
			return s
		}
		s.Unlock()
	}
}

// Drop discards a session; the next Get starts from a fresh transcript.
func (sm *SessionManager) Drop(sessionID string) {
	key := sm.Key(sessionID)
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, key)
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
