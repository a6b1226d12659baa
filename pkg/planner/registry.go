package planner

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Registry holds at most one open session per guild unit
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	backend  Backend
	opts     Options
	logger   *zap.Logger
}

// NewRegistry creates a registry whose sessions share backend and opts
func NewRegistry(backend Backend, opts Options, logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		backend:  backend,
		opts:     opts,
		logger:   logger,
	}
}

// Open returns the unit's session, creating and loading it if needed
func (r *Registry) Open(ctx context.Context, unitID string) (*Session, bool, error) {
	r.mu.Lock()
	if s, ok := r.sessions[unitID]; ok {
		r.mu.Unlock()
		return s, false, nil
	}
	r.mu.Unlock()

	s := NewSession(unitID, r.backend, r.opts, r.logger)
	if err := s.Refresh(ctx); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[unitID]; ok {
		return existing, false, nil
	}
	r.sessions[unitID] = s
	r.logger.Info("session opened", zap.String("unit", unitID), zap.String("session", s.ID.String()))
	return s, true, nil
}

// Get returns the unit's open session
func (r *Registry) Get(unitID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[unitID]
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}

// Discard drops the unit's session and every unsaved edit in it
func (r *Registry) Discard(unitID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[unitID]; !ok {
		return false
	}
	delete(r.sessions, unitID)
	r.logger.Info("session discarded", zap.String("unit", unitID))
	return true
}

// RefreshUnit reloads the unit's open session, if any. Used for change notifications.
func (r *Registry) RefreshUnit(ctx context.Context, unitID string) error {
	s, err := r.Get(unitID)
	if err != nil {
		return nil
	}
	return s.Refresh(ctx)
}
