package providers

import "context"

type ProfileRepository interface {
	Upsert(ctx context.Context, p *Profile) (*Profile, error)
	GetByID(ctx context.Context, id string) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	Delete(ctx context.Context, id string) error
}

type LinkRepository interface {
	// Insert fails with ErrAlreadyLinked when the pair exists.
	Insert(ctx context.Context, l *Link) error
	Delete(ctx context.Context, patient, providerID string) (bool, error)
	Exists(ctx context.Context, patient, providerID string) (bool, error)
	// ListByPatient joins each link with its provider profile. Provider is
	// nil when the profile row is missing.
	ListByPatient(ctx context.Context, patient string) ([]*Link, error)
	ListByProvider(ctx context.Context, providerID string) ([]*Link, error)
	DeleteByPatient(ctx context.Context, patient string) (int, error)
}
