package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Registry maps a user id to that user's currently open realtime sessions.
// A user may hold several sessions at once (multiple tabs), so each entry is
// a set. In-memory and per-process: rebuilt empty on restart. Only the
// gateway mutates it, on connect and disconnect; everything else gets the
// read-only surface.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]map[*Session]struct{}
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]map[*Session]struct{})}
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sessions[s.userID]
	if !ok {
		set = make(map[*Session]struct{})
		r.sessions[s.userID] = set
	}
	set[s] = struct{}{}
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sessions[s.userID]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(r.sessions, s.userID)
	}
}

// IsUserConnected reports whether the user has at least one open session.
func (r *Registry) IsUserConnected(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID]) > 0
}

// SessionsFor returns a snapshot of the user's open sessions.
func (r *Registry) SessionsFor(userID uuid.UUID) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.sessions[userID]
	out := make([]*Session, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// ConnectionCount returns the total number of open sessions.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.sessions {
		n += len(set)
	}
	return n
}
