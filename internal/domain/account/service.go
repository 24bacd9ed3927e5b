// Package account deletes a user's whole footprint: documents and everything
// derived from them, cached records, directory entries and the identity.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/phr/phr/internal/domain/providers"
	"github.com/phr/phr/internal/platform/apperr"
)

type Directory interface {
	Profile(ctx context.Context, id string) (*providers.Profile, error)
	DeleteAccountData(ctx context.Context, userID, email string) error
}

type Documents interface {
	DeleteAll(ctx context.Context, owner string) (int, error)
}

type Records interface {
	DeleteAll(ctx context.Context, owner string) (int, error)
}

type StructuredRows interface {
	DeleteByEmail(ctx context.Context, email string) (int, error)
}

// IdentityDeleter removes the login itself. identity.AdminClient implements
// it with the service-role key.
type IdentityDeleter interface {
	DeleteUser(ctx context.Context, userID string) error
}

type Deps struct {
	Directory  Directory
	Documents  Documents
	Records    Records
	Structured StructuredRows
	Identity   IdentityDeleter
	Logger     zerolog.Logger
}

type Service struct {
	d Deps
}

func NewService(d Deps) *Service {
	return &Service{d: d}
}

// Delete removes the account of userID. email is the address the caller
// authenticated with and is used when the user never created a profile.
// Data is removed before the identity, so a failed call can be repeated.
func (s *Service) Delete(ctx context.Context, userID, email string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("userId must be a uuid: %w", apperr.ErrValidation)
	}
	log := s.d.Logger.With().Str("user_id", userID).Logger()

	prof, err := s.d.Directory.Profile(ctx, userID)
	switch {
	case err == nil:
		email = prof.Email
	case errors.Is(err, apperr.ErrNotFound):
	default:
		return err
	}

	if email != "" {
		n, err := s.d.Documents.DeleteAll(ctx, email)
		if err != nil {
			return fmt.Errorf("delete documents: %w", err)
		}
		log.Info().Int("documents", n).Msg("account deletion: documents removed")

		if s.d.Records != nil {
			if _, err := s.d.Records.DeleteAll(ctx, email); err != nil {
				return fmt.Errorf("delete cached records: %w", err)
			}
		}
		if s.d.Structured != nil {
			if _, err := s.d.Structured.DeleteByEmail(ctx, email); err != nil {
				return fmt.Errorf("delete structured rows: %w", err)
			}
		}
	}

	if err := s.d.Directory.DeleteAccountData(ctx, userID, email); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if err := s.d.Identity.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	log.Info().Msg("account deleted")
	return nil
}
