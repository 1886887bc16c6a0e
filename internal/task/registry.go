package task

import (
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
)

// Registry tracks sessions in both id spaces. Local ids are negative
// and minted here; remote ids are positive and server-assigned. Zero
// is never a valid id.
type Registry struct {
	mu        sync.Mutex
	byLocal   map[int64]*Session
	byRemote  map[int64]*Session
	nextLocal int64
}

func NewRegistry() *Registry {
	return &Registry{
		byLocal:   make(map[int64]*Session),
		byRemote:  make(map[int64]*Session),
		nextLocal: -1,
	}
}

// NewSession mints a provisional session under a fresh local id.
func (r *Registry) NewSession() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := newSession(r.nextLocal)
	r.byLocal[s.localID] = s
	r.nextLocal--
	return s
}

// Get resolves an id in whichever space its sign selects.
func (r *Registry) Get(id int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(id)
}

func (r *Registry) lookup(id int64) (*Session, bool) {
	switch {
	case id < 0:
		s, ok := r.byLocal[id]
		return s, ok
	case id > 0:
		s, ok := r.byRemote[id]
		return s, ok
	default:
		return nil, false
	}
}

// GetOrCreate resolves an id, creating the session when it is
// unknown. Zero always creates a fresh provisional session. An
// unknown positive id registers a session already bound to that
// remote id, which is how server-originated sessions enter the
// registry during resumption.
func (r *Registry) GetOrCreate(id int64) *Session {
	if id == 0 {
		return r.NewSession()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.lookup(id); ok {
		return s
	}
	if id > 0 {
		s := newSession(r.nextLocal)
		r.nextLocal--
		s.remoteID = id
		r.byLocal[s.localID] = s
		r.byRemote[id] = s
		return s
	}
	// A local id this registry never minted. Honor it so stale host
	// references stay stable, and keep future mints below it.
	s := newSession(id)
	r.byLocal[id] = s
	if id <= r.nextLocal {
		r.nextLocal = id - 1
	}
	return s
}

// Promote binds a provisional session to its server-confirmed id.
// One-way and idempotent: repeating the same promotion is a no-op,
// and when the remote id is already registered the confirmed session
// wins and the local id becomes an alias for it.
func (r *Registry) Promote(localID, remoteID int64) (*Session, error) {
	if localID >= 0 || remoteID <= 0 {
		return nil, ErrSessionNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	local, ok := r.byLocal[localID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if existing, ok := r.byRemote[remoteID]; ok {
		if existing != local {
			r.byLocal[localID] = existing
		}
		return existing, nil
	}
	if cur := local.RemoteID(); cur != 0 {
		if cur == remoteID {
			return local, nil
		}
		return nil, ErrAlreadyPromoted
	}
	local.setRemoteID(remoteID)
	r.byRemote[remoteID] = local
	return local, nil
}

// Remove drops a session from both spaces and aborts anything it had
// in flight.
func (r *Registry) Remove(id int64) bool {
	r.mu.Lock()
	s, ok := r.lookup(id)
	if ok {
		delete(r.byLocal, s.localID)
		if rid := s.RemoteID(); rid != 0 {
			delete(r.byRemote, rid)
		}
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.Slot().Cancel()
	if op := s.Op(); op != nil && !op.StatusNow().Terminal() {
		op.Cancel()
	}
	return true
}

// List returns all sessions, most recently touched first.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.byLocal))
	for _, s := range r.byLocal {
		out = append(out, s)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt().After(out[j].UpdatedAt())
	})
	return out
}

// Search ranks sessions whose title fuzzy-matches the query, then
// appends sessions whose transcript contains it as a substring. An
// empty query lists everything.
func (r *Registry) Search(query string) []*Session {
	sessions := r.List()
	query = strings.TrimSpace(query)
	if query == "" {
		return sessions
	}
	titles := make([]string, len(sessions))
	for i, s := range sessions {
		titles[i] = s.Title()
	}
	seen := make(map[*Session]bool)
	var out []*Session
	for _, m := range fuzzy.Find(query, titles) {
		s := sessions[m.Index]
		out = append(out, s)
		seen[s] = true
	}
	lq := strings.ToLower(query)
	for _, s := range sessions {
		if seen[s] {
			continue
		}
		for _, msg := range s.Messages() {
			if strings.Contains(strings.ToLower(msg.Content), lq) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Range calls fn over a snapshot of the registry, so fn may create or
// remove sessions without deadlocking. Returning false stops the walk.
func (r *Registry) Range(fn func(*Session) bool) {
	for _, s := range r.List() {
		if !fn(s) {
			return
		}
	}
}

// Len reports how many sessions are registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byLocal)
}
