package consent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phr/phr/internal/platform/apperr"
)

type memoryRepo struct {
	mu     sync.Mutex
	states map[string]*State
}

func NewMemoryRepository() Repository {
	return &memoryRepo{states: make(map[string]*State)}
}

func (m *memoryRepo) Create(_ context.Context, s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[s.RecordID]; ok {
		return fmt.Errorf("consent state %s: %w", s.RecordID, apperr.ErrConflict)
	}
	m.states[s.RecordID] = s.clone()
	return nil
}

func (m *memoryRepo) Get(_ context.Context, recordID string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[recordID]
	if !ok {
		return nil, fmt.Errorf("consent state %s: %w", recordID, apperr.ErrNotFound)
	}
	return s.clone(), nil
}

func (m *memoryRepo) States(_ context.Context, recordIDs []string) (map[string]*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*State, len(recordIDs))
	for _, id := range recordIDs {
		if s, ok := m.states[id]; ok {
			out[id] = s.clone()
		}
	}
	return out, nil
}

func (m *memoryRepo) mutate(recordID string, fn func(*State)) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[recordID]
	if !ok {
		return nil, fmt.Errorf("consent state %s: %w", recordID, apperr.ErrNotFound)
	}
	fn(s)
	return s.clone(), nil
}

func (m *memoryRepo) SetShared(_ context.Context, recordID string, shared bool, now time.Time) (*State, error) {
	return m.mutate(recordID, func(s *State) { s.applyShared(shared, now) })
}

func (m *memoryRepo) AddGrantee(_ context.Context, recordID, grantee string) (*State, error) {
	return m.mutate(recordID, func(s *State) { s.addGrantee(grantee) })
}

func (m *memoryRepo) RemoveGrantee(_ context.Context, recordID, grantee string) (*State, error) {
	return m.mutate(recordID, func(s *State) { s.removeGrantee(grantee) })
}

func (m *memoryRepo) Delete(_ context.Context, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, recordID)
	return nil
}
