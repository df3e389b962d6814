package iris

import (
	"sync"

	"github.com/mpetrov/iris/transport"
)

// Session is the state of one image-grounded conversation: an ordered
// sequence of turns under an opaque caller-chosen key. Turns are never
// reordered or deduplicated.
type Session struct {
	key string

	mu    sync.RWMutex
	turns []transport.Turn
}

func (s *Session) Key() string { return s.key }

// Turns returns a copy of the session's turn sequence.
func (s *Session) Turns() []transport.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]transport.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns in the session.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.turns)
}

func (s *Session) append(turns ...transport.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, turns...)
}

// Storage is the backing map of a SessionStore. The in-process
// implementation below is the only one shipped; the interface is the seam
// where a deployment would plug in a shared external store.
type Storage interface {
	Load(key string) (*Session, bool)
	Store(key string, sess *Session)
	Delete(key string)
	Keys() []string
}

type memStorage struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newMemStorage() *memStorage {
	return &memStorage{sessions: make(map[string]*Session)}
}

func (m *memStorage) Load(key string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[key]
	return sess, ok
}

func (m *memStorage) Store(key string, sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[key] = sess
}

func (m *memStorage) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, key)
}

func (m *memStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	return keys
}

// SessionStore owns per-session conversation history. At most one Session
// exists per key. Entries live until explicitly cleared or the process
// exits; there is no eviction and no persistence.
type SessionStore struct {
	storage Storage
}

// NewSessionStore returns a store backed by an in-process map.
func NewSessionStore() *SessionStore {
	return &SessionStore{storage: newMemStorage()}
}

// NewSessionStoreWith returns a store backed by the given Storage.
func NewSessionStoreWith(storage Storage) *SessionStore {
	return &SessionStore{storage: storage}
}

// Get looks up a session. No side effects.
func (st *SessionStore) Get(key string) (*Session, bool) {
	return st.storage.Load(key)
}

// GetOrCreate returns the session for key, creating an empty one if absent.
// Idempotent for existing sessions. Callers racing on the same key must
// serialize themselves (the Service holds a per-key lock around this).
func (st *SessionStore) GetOrCreate(key string) *Session {
	if sess, ok := st.storage.Load(key); ok {
		return sess
	}
	sess := &Session{key: key}
	st.storage.Store(key, sess)
	return sess
}

// Append adds turns to an existing session. Fails with ErrSessionNotFound
// if the session does not exist; callers must create it first.
func (st *SessionStore) Append(key string, turns ...transport.Turn) error {
	sess, ok := st.storage.Load(key)
	if !ok {
		return ErrSessionNotFound
	}
	sess.append(turns...)
	return nil
}

// Clear removes the session entirely. Idempotent.
func (st *SessionStore) Clear(key string) {
	st.storage.Delete(key)
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	return len(st.storage.Keys())
}

// Keys returns the keys of all live sessions, in no particular order.
func (st *SessionStore) Keys() []string {
	return st.storage.Keys()
}
