package session

import (
	"math/rand/v2"
	"sync"
	"time"

	apperrors "github.com/tatianab/life-restart/internal/errors"
)

// Store maps session identifiers to their live sessions.
// It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	nowFunc  func() time.Time // injectable clock for testing
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		nowFunc:  time.Now,
	}
}

// Create starts a session for id. A terminated session under the same id is
// replaced; any other live session makes Create fail.
func (st *Store) Create(id string, rng *rand.Rand) (*Session, error) {
	if id == "" {
		return nil, apperrors.New(apperrors.CodeInvalidState, "session id is empty")
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if existing, ok := st.sessions[id]; ok {
		if !existing.Phase().IsTerminal() {
			return nil, apperrors.WithMetadata(apperrors.CodeSessionExists, "session already in progress",
				map[string]string{"session": id, "phase": existing.Phase().String()})
		}
		existing.abandon()
	}

	s := newSession(id, rng, st.nowFunc())
	st.sessions[id] = s
	return s, nil
}

// Get returns the live session for id.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, notFound(id)
	}
	return s, nil
}

// Remove evicts the session for id in any phase. Operations still running on
// it will have their results discarded.
func (st *Store) Remove(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return notFound(id)
	}
	s.abandon()
	delete(st.sessions, id)
	return nil
}

// Discard evicts s if it is still the live session for its id. It is a
// no-op when s was already removed or replaced.
func (st *Store) Discard(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s.abandon()
	if st.sessions[s.id] == s {
		delete(st.sessions, s.id)
	}
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func notFound(id string) error {
	return apperrors.WithMetadata(apperrors.CodeSessionNotFound, "no session for id",
		map[string]string{"session": id})
}
