// Package runtime handles message routing, presence tracking and
// history replay. It orchestrates the system without containing
// transport or storage mechanics.
package runtime

import (
	"sync"
	"time"

	"courier/contract"

	"github.com/google/uuid"
)

// Registry is the presence registry: the live mapping from a verified
// user id to that user's currently open connection sinks. It holds
// non-owning references only; closing a session never depends on
// registry bookkeeping.
//
// All operations are linearizable under the registry lock. A user id
// key exists if and only if at least one live connection exists for
// it; the entry is removed entirely when the last connection goes.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[uuid.UUID]contract.EventSink
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[string]map[uuid.UUID]contract.EventSink)}
}

// Register adds the connection sink for a user, creating the user
// entry if absent. Registering the same session twice is idempotent.
func (r *Registry) Register(userID string, sessionID uuid.UUID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		r.users[userID] = make(map[uuid.UUID]contract.EventSink)
	}
	r.users[userID][sessionID] = sink
}

// Unregister removes the connection; when the resulting set is empty
// the user entry disappears entirely. Calling it for an absent pairing
// is a no-op, not an error.
func (r *Registry) Unregister(userID string, sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, ok := r.users[userID]
	if !ok {
		return
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(r.users, userID)
	}
}

// SinksFor returns a snapshot of the user's live connection sinks.
// An empty result is the normal "recipient offline" case, never an
// error.
func (r *Registry) SinksFor(userID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions, ok := r.users[userID]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(sessions))
	for _, sink := range sessions {
		sinks = append(sinks, sink)
	}
	return sinks
}

// AllSinks returns a snapshot of every live connection sink across all
// users. Used by the broadcast recipient strategy.
func (r *Registry) AllSinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for _, sessions := range r.users {
		for _, sink := range sessions {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// Snapshot reports the number of live connections per user, for
// telemetry.
func (r *Registry) Snapshot() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int, len(r.users))
	for userID, sessions := range r.users {
		counts[userID] = len(sessions)
	}
	return counts
}

// ExpiredSessions returns the registered sessions whose credential
// deadline already passed. Sinks that carry no deadline are skipped.
func (r *Registry) ExpiredSessions(now time.Time) []contract.ICloser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []contract.ICloser
	for _, sessions := range r.users {
		for _, sink := range sessions {
			closer, ok := sink.(contract.ICloser)
			if !ok {
				continue
			}
			if deadline := closer.Deadline(); !deadline.IsZero() && deadline.Before(now) {
				expired = append(expired, closer)
			}
		}
	}
	return expired
}
