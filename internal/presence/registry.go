// Package presence tracks which users are reachable right now and through
// which live sessions.
package presence

import (
	"sort"
	"sync"
)

// Status values carried by presence transitions.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Handle is one live session. ID must be unique per connection.
type Handle interface {
	ID() string
}

// StatusFunc is invoked on a user's 0->1 (online) and 1->0 (offline)
// session transitions, in the order they happened. It runs outside the
// registry lock.
type StatusFunc func(userID int64, status string)

type transition struct {
	userID int64
	status string
}

// Registry maps user ids to their active session handles. A user id is
// present only while it has at least one session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]map[string]Handle
	onStatus StatusFunc

	// transitions are queued under mu and delivered under notifyMu
	pending  []transition
	notifyMu sync.Mutex
}

// NewRegistry creates an empty registry. onStatus may be nil.
func NewRegistry(onStatus StatusFunc) *Registry {
	return &Registry{
		sessions: make(map[int64]map[string]Handle),
		onStatus: onStatus,
	}
}

// OnStatus replaces the transition callback.
func (r *Registry) OnStatus(fn StatusFunc) {
	r.mu.Lock()
	r.onStatus = fn
	r.mu.Unlock()
}

// Register adds handle to the user's session set and reports whether this
// was the user's first concurrent session.
func (r *Registry) Register(userID int64, h Handle) bool {
	r.mu.Lock()
	set, ok := r.sessions[userID]
	if !ok {
		set = make(map[string]Handle)
		r.sessions[userID] = set
		r.pending = append(r.pending, transition{userID, StatusOnline})
	}
	set[h.ID()] = h
	r.mu.Unlock()

	r.flush()
	return !ok
}

// Unregister removes handle and reports whether it was the user's last
// session. Unknown handles are ignored.
func (r *Registry) Unregister(userID int64, h Handle) bool {
	r.mu.Lock()
	last := r.removeLocked(userID, h)
	if last {
		r.pending = append(r.pending, transition{userID, StatusOffline})
	}
	r.mu.Unlock()

	if last {
		r.flush()
	}
	return last
}

func (r *Registry) removeLocked(userID int64, h Handle) bool {
	set, ok := r.sessions[userID]
	if !ok {
		return false
	}
	if _, ok := set[h.ID()]; !ok {
		return false
	}
	delete(set, h.ID())
	if len(set) > 0 {
		return false
	}
	delete(r.sessions, userID)
	return true
}

// flush hands queued transitions to the callback. Only one goroutine
// delivers at a time and it keeps draining until the queue is empty, so the
// callback sees transitions in registry order and may call back into the
// registry.
func (r *Registry) flush() {
	for {
		if !r.notifyMu.TryLock() {
			return
		}
		r.mu.Lock()
		batch := r.pending
		r.pending = nil
		fn := r.onStatus
		r.mu.Unlock()

		if fn != nil {
			for _, t := range batch {
				fn(t.userID, t.status)
			}
		}
		r.notifyMu.Unlock()

		r.mu.RLock()
		more := len(r.pending) > 0
		r.mu.RUnlock()
		if !more {
			return
		}
	}
}

// SessionsFor returns a snapshot of the user's handles, empty when offline.
func (r *Registry) SessionsFor(userID int64) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.sessions[userID]
	out := make([]Handle, 0, len(set))
	for _, h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// IsOnline reports whether the user has at least one session.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[userID]
	return ok
}

// Count returns the number of online users and total sessions.
func (r *Registry) Count() (users int, sessions int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, set := range r.sessions {
		sessions += len(set)
	}
	return len(r.sessions), sessions
}
