package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"sellerpilot/internal/types"
)

// DefaultSessionTTL is the session lifetime when none is configured.
const DefaultSessionTTL = 24 * time.Hour

// Session is one authenticated operator session. IDs are opaque UUIDs handed
// out as bearer tokens.
type Session struct {
	ID        string         `json:"id"`
	User      types.AuthUser `json:"user"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// SessionStore keeps sessions in process memory. Sessions do not survive a
// restart; operators simply log in again.
type SessionStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]Session
}

// NewSessionStore builds a SessionStore with the given TTL. A zero or
// negative TTL falls back to DefaultSessionTTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]Session),
	}
}

// Create registers a new session for the user and returns it.
func (s *SessionStore) Create(user types.AuthUser) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeExpiredLocked(now)

	sess := Session{
		ID:        uuid.NewString(),
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.sessions[sess.ID] = sess
	return sess
}

// Validate resolves a session ID. Expired sessions are removed on sight.
func (s *SessionStore) Validate(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, types.NewAppError(types.ErrCodeAuthTokenInvalid, "unknown session", nil)
	}
	if s.now().After(sess.ExpiresAt) {
		delete(s.sessions, id)
		return Session{}, types.NewAppError(types.ErrCodeAuthSessionExpired, "session has expired", nil)
	}
	return sess, nil
}

// Invalidate removes a session. Removing an unknown ID is a no-op.
func (s *SessionStore) Invalidate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Count returns the number of live sessions.
func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) purgeExpiredLocked(now time.Time) {
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}
