package records

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/phr/phr/internal/platform/apperr"
)

type memoryRepo struct {
	mu      sync.RWMutex
	records map[string]*ClinicalRecord
}

// NewMemoryRepository returns a Repository held in a map guarded by a mutex.
func NewMemoryRepository() Repository {
	return &memoryRepo{records: make(map[string]*ClinicalRecord)}
}

func (m *memoryRepo) List(_ context.Context, owner string) ([]*ClinicalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*ClinicalRecord, 0)
	for _, r := range m.records {
		if r.OwnerIdentity == owner {
			out = append(out, r.clone())
		}
	}
	sortRecords(out)
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, owner, id string) (*ClinicalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok || r.OwnerIdentity != owner {
		return nil, fmt.Errorf("record %s: %w", id, apperr.ErrNotFound)
	}
	return r.clone(), nil
}

func (m *memoryRepo) Upsert(_ context.Context, r *ClinicalRecord) (*ClinicalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := r.clone()
	if existing, ok := m.records[r.ID]; ok {
		if existing.OwnerIdentity != r.OwnerIdentity {
			return nil, fmt.Errorf("record %s belongs to another owner: %w", r.ID, apperr.ErrForbidden)
		}
		stored.DateAdded = existing.DateAdded
	}
	m.records[r.ID] = stored
	return stored.clone(), nil
}

func (m *memoryRepo) Delete(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok || r.OwnerIdentity != owner {
		return fmt.Errorf("record %s: %w", id, apperr.ErrNotFound)
	}
	delete(m.records, id)
	return nil
}

func (m *memoryRepo) DeleteBySource(_ context.Context, sourceRecordID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, r := range m.records {
		if r.SourceRecordID != nil && *r.SourceRecordID == sourceRecordID {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

// sortRecords orders by DateAdded then id so every backend lists identically.
func sortRecords(rs []*ClinicalRecord) {
	sort.SliceStable(rs, func(i, j int) bool {
		if !rs[i].DateAdded.Equal(rs[j].DateAdded) {
			return rs[i].DateAdded.Before(rs[j].DateAdded)
		}
		return rs[i].ID < rs[j].ID
	})
}
