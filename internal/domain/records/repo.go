package records

import "context"

// Repository is keyed by record id. Implementations must never return rows of
// another owner from List.
type Repository interface {
	List(ctx context.Context, owner string) ([]*ClinicalRecord, error)
	Get(ctx context.Context, owner, id string) (*ClinicalRecord, error)
	// Upsert inserts r or replaces the stored record with the same id and
	// owner, keeping the original DateAdded. It returns the stored record.
	Upsert(ctx context.Context, r *ClinicalRecord) (*ClinicalRecord, error)
	Delete(ctx context.Context, owner, id string) error
	// DeleteBySource removes every record derived from the given document.
	DeleteBySource(ctx context.Context, sourceRecordID string) (int, error)
}
