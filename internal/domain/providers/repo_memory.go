package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/phr/phr/internal/platform/apperr"
)

type memoryProfiles struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

func NewMemoryProfileRepository() ProfileRepository {
	return &memoryProfiles{profiles: make(map[string]*Profile)}
}

func (m *memoryProfiles) Upsert(_ context.Context, p *Profile) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, other := range m.profiles {
		if id != p.ID && strings.EqualFold(other.Email, p.Email) {
			return nil, fmt.Errorf("email %s already registered: %w", p.Email, apperr.ErrConflict)
		}
	}
	cp := *p
	if existing, ok := m.profiles[p.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	m.profiles[p.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memoryProfiles) GetByID(_ context.Context, id string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, apperr.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *memoryProfiles) GetByEmail(_ context.Context, email string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.profiles {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("profile %s: %w", email, apperr.ErrNotFound)
}

func (m *memoryProfiles) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[id]; !ok {
		return fmt.Errorf("profile %s: %w", id, apperr.ErrNotFound)
	}
	delete(m.profiles, id)
	return nil
}

type linkKey struct{ patient, provider string }

type memoryLinks struct {
	mu       sync.RWMutex
	links    map[linkKey]*Link
	profiles ProfileRepository
}

// NewMemoryLinkRepository joins against profiles the way the SQL repository
// joins the profiles table.
func NewMemoryLinkRepository(profiles ProfileRepository) LinkRepository {
	return &memoryLinks{links: make(map[linkKey]*Link), profiles: profiles}
}

func (m *memoryLinks) Insert(ctx context.Context, l *Link) error {
	if _, err := m.profiles.GetByID(ctx, l.ProviderIdentity); err != nil {
		return ErrProviderNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := linkKey{l.PatientIdentity, l.ProviderIdentity}
	if _, ok := m.links[k]; ok {
		return ErrAlreadyLinked
	}
	cp := *l
	cp.Provider = nil
	m.links[k] = &cp
	return nil
}

func (m *memoryLinks) Delete(_ context.Context, patient, providerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := linkKey{patient, providerID}
	_, ok := m.links[k]
	delete(m.links, k)
	return ok, nil
}

func (m *memoryLinks) Exists(_ context.Context, patient, providerID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.links[linkKey{patient, providerID}]
	return ok, nil
}

func (m *memoryLinks) collect(match func(linkKey) bool) []*Link {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Link, 0)
	for k, l := range m.links {
		if match(k) {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AccessGrantedAt.Equal(out[j].AccessGrantedAt) {
			return out[i].AccessGrantedAt.Before(out[j].AccessGrantedAt)
		}
		return out[i].ProviderIdentity+out[i].PatientIdentity < out[j].ProviderIdentity+out[j].PatientIdentity
	})
	return out
}

func (m *memoryLinks) ListByPatient(ctx context.Context, patient string) ([]*Link, error) {
	out := m.collect(func(k linkKey) bool { return k.patient == patient })
	for _, l := range out {
		if p, err := m.profiles.GetByID(ctx, l.ProviderIdentity); err == nil {
			l.Provider = p
		}
	}
	return out, nil
}

func (m *memoryLinks) ListByProvider(_ context.Context, providerID string) ([]*Link, error) {
	return m.collect(func(k linkKey) bool { return k.provider == providerID }), nil
}

func (m *memoryLinks) DeleteByPatient(_ context.Context, patient string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.links {
		if k.patient == patient {
			delete(m.links, k)
			n++
		}
	}
	return n, nil
}
