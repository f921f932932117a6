package workspace

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store errors.
var (
	ErrNotFound     = errors.New("workspace not found")
	ErrLimitReached = errors.New("workspace limit reached")
)

// IDPrefix prefixes generated workspace IDs.
const IDPrefix = "ws_"

// StoreConfig configures a Store.
type StoreConfig struct {
	// MaxWorkspaces caps live workspaces; zero means unlimited.
	MaxWorkspaces int
	// IdleTTL is how long an untouched workspace survives Sweep.
	IdleTTL time.Duration
	// Template is copied into every new workspace's Config; ID and Logger are
	// overwritten.
	Template Config
	Logger   zerolog.Logger
}

// Store keeps workspaces in memory.
type Store struct {
	mu         sync.RWMutex
	workspaces map[string]*Workspace
	cfg        StoreConfig
	logger     zerolog.Logger
}

// NewStore creates an empty store.
func NewStore(cfg StoreConfig) *Store {
	return &Store{
		workspaces: make(map[string]*Workspace),
		cfg:        cfg,
		logger:     cfg.Logger,
	}
}

// Create starts a new workspace.
func (s *Store) Create() (*Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.MaxWorkspaces > 0 && len(s.workspaces) >= s.cfg.MaxWorkspaces {
		return nil, ErrLimitReached
	}

	cfg := s.cfg.Template
	cfg.ID = IDPrefix + uuid.New().String()
	cfg.Logger = s.logger
	w := New(cfg)
	s.workspaces[cfg.ID] = w

	s.logger.Debug().Str("workspace_id", cfg.ID).Int("count", len(s.workspaces)).Msg("workspace created")
	return w, nil
}

// Get returns the workspace with the given ID.
func (s *Store) Get(id string) (*Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workspaces[id]
	if !ok {
		return nil, ErrNotFound
	}
	return w, nil
}

// Delete closes and removes a workspace.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	w, ok := s.workspaces[id]
	delete(s.workspaces, id)
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	w.Close()
	return nil
}

// Len returns the number of live workspaces.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workspaces)
}

// Sweep closes workspaces idle for longer than IdleTTL and returns how many
// were removed.
func (s *Store) Sweep(now time.Time) int {
	if s.cfg.IdleTTL <= 0 {
		return 0
	}

	s.mu.Lock()
	var idle []*Workspace
	for id, w := range s.workspaces {
		if now.Sub(w.LastActive()) > s.cfg.IdleTTL {
			idle = append(idle, w)
			delete(s.workspaces, id)
		}
	}
	s.mu.Unlock()

	for _, w := range idle {
		w.Close()
	}
	if len(idle) > 0 {
		s.logger.Info().Int("removed", len(idle)).Msg("swept idle workspaces")
	}
	return len(idle)
}

// Close closes every workspace.
func (s *Store) Close() {
	s.mu.Lock()
	all := s.workspaces
	s.workspaces = make(map[string]*Workspace)
	s.mu.Unlock()

	for _, w := range all {
		w.Close()
	}
}
