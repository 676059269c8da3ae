package voice

import "sync"

// Registry holds at most one Session per guild. It is an explicit object
// owned by the Controller and injected where needed, not package state.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Get returns the session for guildID or nil.
func (r *Registry) Get(guildID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[guildID]
}

// Put installs s, returning any session it replaced.
func (r *Registry) Put(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.sessions[s.GuildID]
	r.sessions[s.GuildID] = s
	return prev
}

// Remove deletes and returns the session for guildID, or nil.
func (r *Registry) Remove(guildID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.sessions[guildID]
	delete(r.sessions, guildID)
	return prev
}

// Drain removes and returns all sessions. Used during shutdown.
func (r *Registry) Drain() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.sessions = make(map[string]*Session)
	return out
}
