package vault

import (
	"sync"
	"time"
)

// Registry tracks the live sessions of one hosting process. Sessions are
// independent: the registry lock only guards the map and is never held while a
// session unlocks.
type Registry struct {
	src  BlobSource
	opts []SessionOption

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates sessions reading from src with opts applied to each.
func NewRegistry(src BlobSource, opts ...SessionOption) *Registry {
	return &Registry{
		src:      src,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new Locked session.
func (r *Registry) Create() *Session {
	s := NewSession(r.src, r.opts...)
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	return s
}

// Get looks a session up by id. Unknown and ended sessions both report
// ErrSessionClosed.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok || s.Closed() {
		return nil, ErrSessionClosed
	}
	return s, nil
}

// End closes and forgets a session. It reports whether the id was known.
func (r *Registry) End(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep ends sessions that are closed, or locked with no activity for longer
// than maxIdle, and returns how many were removed. Unlocked sessions are left
// to their own timeouts.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	r.mu.RLock()
	var stale []*Session
	for _, s := range r.sessions {
		if s.Closed() {
			stale = append(stale, s)
			continue
		}
		if s.State() == StateLocked && s.now().Sub(s.LastActivity()) > maxIdle {
			stale = append(stale, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range stale {
		r.End(s.ID())
	}
	return len(stale)
}

// Close ends every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
