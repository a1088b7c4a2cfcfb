package runlock

import (
	"sync"
)

// Session is the server-side view of one browser tab: its opaque tab id plus
// the lock tokens that tab currently holds, keyed by run id. Lifetime matches
// the tab; a tab that never calls back simply leaves its locks to expire.
type Session struct {
	TabID string

	mu     sync.Mutex
	tokens map[string]string // runID -> lock token
}

func newSession(tabID string) *Session {
	return &Session{
		TabID:  tabID,
		tokens: make(map[string]string),
	}
}

// Token returns the token this tab last recorded for the run, "" if none.
func (s *Session) Token(runID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[runID]
}

func (s *Session) put(runID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[runID] = token
}

func (s *Session) clear(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, runID)
}

// idle reports whether the session holds no tokens at all.
func (s *Session) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens) == 0
}
