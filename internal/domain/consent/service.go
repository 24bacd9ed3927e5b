package consent

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/phr/phr/internal/platform/apperr"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Document ids are UUIDs; anything else cannot name a consent row.
func checkRecordID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("consent state %q: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, recordID string) (*State, error) {
	if err := checkRecordID(recordID); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, recordID)
}

// States batch-reads consent for a set of documents. Invalid ids are skipped.
func (s *Service) States(ctx context.Context, recordIDs []string) (map[string]*State, error) {
	valid := make([]string, 0, len(recordIDs))
	for _, id := range recordIDs {
		if checkRecordID(id) == nil {
			valid = append(valid, id)
		}
	}
	return s.repo.States(ctx, valid)
}

// SetShared is idempotent: repeating the current value leaves LastShared
// untouched.
func (s *Service) SetShared(ctx context.Context, recordID string, shared bool) (*State, error) {
	if err := checkRecordID(recordID); err != nil {
		return nil, err
	}
	st, err := s.repo.SetShared(ctx, recordID, shared, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("record_id", recordID).Bool("consent_given", st.ConsentGiven).Msg("consent updated")
	return st, nil
}

func (s *Service) AddGrantee(ctx context.Context, recordID, grantee string) (*State, error) {
	if err := checkRecordID(recordID); err != nil {
		return nil, err
	}
	g, err := validGrantee(grantee)
	if err != nil {
		return nil, err
	}
	return s.repo.AddGrantee(ctx, recordID, g)
}

func (s *Service) RemoveGrantee(ctx context.Context, recordID, grantee string) (*State, error) {
	if err := checkRecordID(recordID); err != nil {
		return nil, err
	}
	g := NormalizeGrantee(grantee)
	if g == "" {
		return nil, fmt.Errorf("grantee is required: %w", apperr.ErrValidation)
	}
	return s.repo.RemoveGrantee(ctx, recordID, g)
}

func validGrantee(grantee string) (string, error) {
	g := NormalizeGrantee(grantee)
	if g == "" {
		return "", fmt.Errorf("grantee is required: %w", apperr.ErrValidation)
	}
	if addr, err := mail.ParseAddress(g); err != nil || addr.Address != g {
		return "", fmt.Errorf("grantee %q is not an email address: %w", grantee, apperr.ErrValidation)
	}
	return g, nil
}
