package clinical

import (
	"context"
	"sync"
)

type memoryRepo struct {
	mu   sync.RWMutex
	rows Derived
}

// NewMemoryRepository returns a Repository for tests and single-process runs.
func NewMemoryRepository() Repository { return &memoryRepo{} }

func filterByEmail[T any](items []T, email string, key func(T) string) []T {
	out := make([]T, 0)
	for _, it := range items {
		if key(it) == email {
			out = append(out, it)
		}
	}
	return out
}

func removeWhere[T any](items []T, match func(T) bool) ([]T, int) {
	kept := items[:0]
	n := 0
	for _, it := range items {
		if match(it) {
			n++
			continue
		}
		kept = append(kept, it)
	}
	return kept, n
}

func (m *memoryRepo) ListMedications(_ context.Context, email string) ([]Medication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterByEmail(m.rows.Medications, email, func(r Medication) string { return r.PatientEmail }), nil
}

func (m *memoryRepo) ListAllergies(_ context.Context, email string) ([]Allergy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterByEmail(m.rows.Allergies, email, func(r Allergy) string { return r.PatientEmail }), nil
}

func (m *memoryRepo) ListLabResults(_ context.Context, email string) ([]LabResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterByEmail(m.rows.LabResults, email, func(r LabResult) string { return r.PatientEmail }), nil
}

func (m *memoryRepo) ListImmunizations(_ context.Context, email string) ([]Immunization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterByEmail(m.rows.Immunizations, email, func(r Immunization) string { return r.PatientEmail }), nil
}

func (m *memoryRepo) InsertDerived(_ context.Context, d *Derived) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows.Medications = append(m.rows.Medications, d.Medications...)
	m.rows.Allergies = append(m.rows.Allergies, d.Allergies...)
	m.rows.LabResults = append(m.rows.LabResults, d.LabResults...)
	m.rows.Immunizations = append(m.rows.Immunizations, d.Immunizations...)
	return nil
}

func sourceIs(id string) func(*string) bool {
	return func(src *string) bool { return src != nil && *src == id }
}

func (m *memoryRepo) DeleteBySource(_ context.Context, sourceRecordID string) (int, error) {
	match := sourceIs(sourceRecordID)
	return m.deleteWhere(
		func(r Medication) bool { return match(r.SourceRecordID) },
		func(r Allergy) bool { return match(r.SourceRecordID) },
		func(r LabResult) bool { return match(r.SourceRecordID) },
		func(r Immunization) bool { return match(r.SourceRecordID) },
	), nil
}

func (m *memoryRepo) DeleteByEmail(_ context.Context, email string) (int, error) {
	return m.deleteWhere(
		func(r Medication) bool { return r.PatientEmail == email },
		func(r Allergy) bool { return r.PatientEmail == email },
		func(r LabResult) bool { return r.PatientEmail == email },
		func(r Immunization) bool { return r.PatientEmail == email },
	), nil
}

func (m *memoryRepo) deleteWhere(med func(Medication) bool, al func(Allergy) bool, lab func(LabResult) bool, imm func(Immunization) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n, total int
	m.rows.Medications, n = removeWhere(m.rows.Medications, med)
	total += n
	m.rows.Allergies, n = removeWhere(m.rows.Allergies, al)
	total += n
	m.rows.LabResults, n = removeWhere(m.rows.LabResults, lab)
	total += n
	m.rows.Immunizations, n = removeWhere(m.rows.Immunizations, imm)
	total += n
	return total
}
