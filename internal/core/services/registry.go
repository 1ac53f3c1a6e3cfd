package services

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/univote/ballotbox/internal/core/ports"
)

// Registry hands out one SessionManager per voter, created on first use.
// It replaces the ambient global stores the browser front end used: the
// session context is explicit, scoped, and torn down with the registry.
type Registry struct {
	api       ports.VotingAPI
	elections ports.ElectionAPI
	drafts    ports.DraftRepository
	logger    *slog.Logger

	mu       sync.Mutex
	managers map[uuid.UUID]*SessionManager
}

func NewRegistry(api ports.VotingAPI, elections ports.ElectionAPI, drafts ports.DraftRepository, logger *slog.Logger) *Registry {
	return &Registry{
		api:       api,
		elections: elections,
		drafts:    drafts,
		logger:    logger,
		managers:  make(map[uuid.UUID]*SessionManager),
	}
}

func (r *Registry) ForVoter(voterID uuid.UUID) ports.SessionManager {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.managers[voterID]; ok {
		return m
	}
	m := NewSessionManager(voterID, r.api, r.elections, r.drafts, r.logger)
	r.managers[voterID] = m
	return m
}

// Close stops every manager's background tasks. Called on server shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.managers {
		m.Close()
	}
}
