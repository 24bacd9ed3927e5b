package consent

import (
	"context"
	"time"
)

// Repository mutates only the consent columns of a document; no method
// rewrites the whole row.
type Repository interface {
	Create(ctx context.Context, s *State) error
	Get(ctx context.Context, recordID string) (*State, error)
	// States returns the states of the given records keyed by record id.
	// Unknown ids are absent from the map.
	States(ctx context.Context, recordIDs []string) (map[string]*State, error)
	// SetShared sets ConsentGiven and, on a false to true transition with at
	// least one grantee, LastShared = now. It is a single atomic update.
	SetShared(ctx context.Context, recordID string, shared bool, now time.Time) (*State, error)
	AddGrantee(ctx context.Context, recordID, grantee string) (*State, error)
	RemoveGrantee(ctx context.Context, recordID, grantee string) (*State, error)
	// Delete is idempotent.
	Delete(ctx context.Context, recordID string) error
}
