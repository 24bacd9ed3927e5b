package documents

import "context"

type Repository interface {
	Create(ctx context.Context, d *Document) error
	Get(ctx context.Context, id string) (*Document, error)
	ListByOwner(ctx context.Context, owner string) ([]*Document, error)
	Delete(ctx context.Context, id string) error
}
