package documents

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/phr/phr/internal/platform/apperr"
)

type memoryRepo struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

func NewMemoryRepository() Repository {
	return &memoryRepo{docs: make(map[string]*Document)}
}

func (m *memoryRepo) Create(_ context.Context, d *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.docs {
		if other.ID == d.ID || other.FilePath == d.FilePath {
			return fmt.Errorf("document %s: %w", d.ID, apperr.ErrConflict)
		}
	}
	cp := *d
	cp.IsShared = false
	m.docs[d.ID] = &cp
	return nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, apperr.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (m *memoryRepo) ListByOwner(_ context.Context, owner string) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Document, 0)
	for _, d := range m.docs {
		if d.OwnerIdentity == owner {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, apperr.ErrNotFound)
	}
	delete(m.docs, id)
	return nil
}
