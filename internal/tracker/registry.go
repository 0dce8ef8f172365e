package tracker

import (
	"log/slog"
	"sync"

	"github.com/sakif/foodtrack/internal/calendar"
)

// Registry hands out one Session per user, created on first use.
type Registry struct {
	lifecycle Lifecycle
	clock     calendar.Clock
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(lifecycle Lifecycle, clock calendar.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		lifecycle: lifecycle,
		clock:     clock,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
}

// Get returns the user's session, creating an unloaded one if needed.
func (r *Registry) Get(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		s = NewSession(userID, r.lifecycle, r.clock, r.logger)
		r.sessions[userID] = s
	}
	return s
}

// Drop forgets the user's session (logout). The next Get starts fresh.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// Len reports how many sessions are held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
