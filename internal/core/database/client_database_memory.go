package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/markdave123-py/guardian/internal/core"
	"github.com/markdave123-py/guardian/internal/models"
)

// MemoryStore is the process-local fallback. Contents are lost on restart.
// Every method runs inside one critical section, so the best-score merge
// cannot interleave with another submission for the same user.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	entries  []models.Rating
	byUser   map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]models.Session),
		byUser:   make(map[string]int),
	}
}

func (m *MemoryStore) Mode() string { return ModeMemory }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) InsertSession(_ context.Context, s *models.Session) error {
	if s == nil {
		return errors.New("nil session")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	out := s.Clone()
	return &out, nil
}

func (m *MemoryStore) UpdateSession(_ context.Context, id string, patch models.SessionPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if s.IsCompleted {
		return fmt.Errorf("%w: %s", ErrSessionCompleted, id)
	}
	patch.Apply(&s)
	m.sessions[id] = s
	return nil
}

func (m *MemoryStore) GetEntry(_ context.Context, userID string) (*models.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byUser[userID]
	if !ok {
		return nil, nil
	}
	r := m.entries[i]
	return &r, nil
}

func (m *MemoryStore) UpsertIfBetter(_ context.Context, r *models.Rating) (bool, error) {
	if r == nil {
		return false, errors.New("nil rating")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.byUser[r.UserID]; ok {
		if r.Total <= m.entries[i].Total {
			return false, nil
		}
		// Replaced in place so the entry keeps its insertion position for ties.
		m.entries[i] = *r
		return true, nil
	}
	m.byUser[r.UserID] = len(m.entries)
	m.entries = append(m.entries, *r)
	return true, nil
}

func (m *MemoryStore) ListEntries(_ context.Context, limit int) ([]models.Rating, error) {
	m.mu.Lock()
	sorted := make([]models.Rating, len(m.entries))
	copy(sorted, m.entries)
	m.mu.Unlock()

	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Total > sorted[j].Total })
	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

var _ core.Store = (*MemoryStore)(nil)
