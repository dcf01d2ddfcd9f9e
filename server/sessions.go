package server

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/sabri/compiler"
	"github.com/chazu/sabri/vm"
)

// Session is a workspace with its own VM. Globals defined by one
// evaluation are visible to the next.
type Session struct {
	ID      string
	Name    string
	Created time.Time

	// VM and out are touched only on the worker goroutine.
	VM  *vm.VM
	out *bytes.Buffer

	seq uint64
}

// takeOutput returns and clears the print output captured since the last
// call.
func (s *Session) takeOutput() string {
	text := s.out.String()
	s.out.Reset()
	return text
}

// newSessionVM creates a VM with the compiler installed and its print
// output captured.
func newSessionVM() (*vm.VM, *bytes.Buffer) {
	out := &bytes.Buffer{}
	v := vm.NewVM()
	v.Out = out
	v.UseCompiler(compiler.Factory)
	return v, out
}

// SessionStore manages workspace sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	next     uint64
}

// NewSessionStore creates a new session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
	}
}

// Create creates a new session with an optional name.
func (s *SessionStore) Create(name string) *Session {
	v, out := newSessionVM()
	session := &Session{
		ID:      uuid.NewString(),
		Name:    name,
		Created: time.Now(),
		VM:      v,
		out:     out,
	}

	s.mu.Lock()
	s.next++
	session.seq = s.next
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	return session, ok
}

// Destroy removes a session. It reports whether the session existed.
func (s *SessionStore) Destroy(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// IDs returns the live session IDs in creation order.
func (s *SessionStore) IDs() []string {
	s.mu.RLock()
	all := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		all = append(all, session)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	ids := make([]string, len(all))
	for i, session := range all {
		ids[i] = session.ID
	}
	return ids
}
