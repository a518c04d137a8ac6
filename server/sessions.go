package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"connectrpc.com/connect"

	"github.com/chazu/scriptbridge/bridge"
)

// ClientSession scopes handles to one remote client. Destroying it releases
// every handle created under its id.
type ClientSession struct {
	ID      string
	Name    string
	Created time.Time
}

// SessionStore manages client sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*ClientSession
	nextID   atomic.Uint64
	bridge   *bridge.Session
}

// NewSessionStore creates a new session store.
func NewSessionStore(b *bridge.Session) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*ClientSession),
		bridge:   b,
	}
}

// Create creates a new session with an optional name.
func (s *SessionStore) Create(name string) *ClientSession {
	id := fmt.Sprintf("s-%d", s.nextID.Add(1))

	session := &ClientSession{
		ID:      id,
		Name:    name,
		Created: time.Now(),
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	log.Debugf("client session %s created (%q)", id, name)
	return session
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(id string) (*ClientSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	return session, ok
}

// Destroy removes a session and releases all its handles. It returns how
// many handles were released.
func (s *SessionStore) Destroy(id string) int {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	n := s.bridge.ReleaseOwner(id)
	log.Debugf("client session %s destroyed, released %d handles", id, n)
	return n
}

// Len returns the number of open client sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// check accepts an empty id (no client session) or a live one.
func (s *SessionStore) check(id string) error {
	if id == "" {
		return nil
	}
	if _, ok := s.Get(id); !ok {
		return connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
	}
	return nil
}
