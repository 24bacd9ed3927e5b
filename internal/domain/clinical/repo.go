package clinical

import "context"

// Repository is the read/write surface of the structured tables. List
// methods return an empty slice, never nil, when the patient has no rows.
type Repository interface {
	ListMedications(ctx context.Context, email string) ([]Medication, error)
	ListAllergies(ctx context.Context, email string) ([]Allergy, error)
	ListLabResults(ctx context.Context, email string) ([]LabResult, error)
	ListImmunizations(ctx context.Context, email string) ([]Immunization, error)

	// InsertDerived writes every row of d. Rows must already be stamped.
	InsertDerived(ctx context.Context, d *Derived) error
	// DeleteBySource removes all rows extracted from the given document
	// across the four tables and returns how many went.
	DeleteBySource(ctx context.Context, sourceRecordID string) (int, error)
	// DeleteByEmail removes every row of a patient.
	DeleteByEmail(ctx context.Context, email string) (int, error)
}
