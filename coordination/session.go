package coordination

import (
	"log"
	"sync"
	"time"

	"github.com/harmoniq-labs/songgen-agents-go/models"
)

// sessionTTL bounds how long an undecided user-approval gate is kept;
// abandoned sessions are purged so the store cannot grow forever.
const sessionTTL = 30 * time.Minute

// suspension is one workflow parked at the user-approval gate.
type suspension struct {
	state     models.SongState
	createdAt time.Time
}

// SessionStore parks suspended workflow states awaiting a user decision.
// Sessions are consume-once: the first decision takes the state, duplicates
// find nothing. Sessions older than sessionTTL expire undecided.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*suspension

	// now is swapped out in tests to drive expiry.
	now func() time.Time
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*suspension),
		now:      time.Now,
	}
}

// Suspend parks the state and returns its session id.
func (s *SessionStore) Suspend(state models.SongState) string {
	id := models.NewID()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
	s.sessions[id] = &suspension{state: state, createdAt: s.now()}
	return id
}

// Take removes and returns the suspended state. The second call for the
// same id, or a call after the session expired, reports false.
func (s *SessionStore) Take(id string) (models.SongState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
	susp, ok := s.sessions[id]
	if !ok {
		return models.SongState{}, false
	}
	delete(s.sessions, id)
	return susp.state, true
}

// Len reports the number of live parked sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
	return len(s.sessions)
}

func (s *SessionStore) purgeLocked() {
	cutoff := s.now().Add(-sessionTTL)
	for id, susp := range s.sessions {
		if susp.createdAt.Before(cutoff) {
			delete(s.sessions, id)
			log.Printf("🧹 Session %s expired undecided", id)
		}
	}
}
