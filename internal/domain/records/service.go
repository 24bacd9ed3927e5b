package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/phr/phr/internal/platform/apperr"
)

// DocumentCounter reports uploaded-document totals for an owner. The documents
// service implements it; stats degrade to zero documents without one.
type DocumentCounter interface {
	CountDocuments(ctx context.Context, owner string) (total, shared int, err error)
}

type Service struct {
	repo   Repository
	docs   DocumentCounter
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// SetDocumentCounter wires document totals into GetStats.
func (s *Service) SetDocumentCounter(dc DocumentCounter) { s.docs = dc }

// ListAll returns every record owned by owner. Rows with another owner or an
// unreadable payload are skipped.
func (s *Service) ListAll(ctx context.Context, owner string) ([]*ClinicalRecord, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner identity is required: %w", apperr.ErrValidation)
	}
	rows, err := s.repo.List(ctx, owner)
	if err != nil {
		return nil, err
	}

	out := make([]*ClinicalRecord, 0, len(rows))
	for _, r := range rows {
		if r.OwnerIdentity != owner {
			s.logger.Error().Str("record_id", r.ID).Msg("repository returned a record of another owner; dropped")
			continue
		}
		if !json.Valid(r.Payload) {
			s.logger.Warn().Str("record_id", r.ID).Str("category", string(r.Category)).Msg("skipping record with malformed payload")
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// ByCategory partitions records by category, preserving order.
func ByCategory(rs []*ClinicalRecord) map[Category][]*ClinicalRecord {
	out := make(map[Category][]*ClinicalRecord, len(Categories))
	for _, r := range rs {
		out[r.Category] = append(out[r.Category], r)
	}
	return out
}

func (s *Service) Get(ctx context.Context, owner, id string) (*ClinicalRecord, error) {
	r, err := s.repo.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if !json.Valid(r.Payload) {
		return nil, fmt.Errorf("record %s has a malformed payload: %w", id, apperr.ErrNotFound)
	}
	return r, nil
}

// Save upserts r. LastModified is always set to now; DateAdded is set on
// first insert and kept on update.
func (s *Service) Save(ctx context.Context, r *ClinicalRecord) (*ClinicalRecord, error) {
	if r.OwnerIdentity == "" {
		return nil, fmt.Errorf("owner identity is required: %w", apperr.ErrValidation)
	}
	if !r.Category.Valid() {
		return nil, fmt.Errorf("invalid category %q: %w", r.Category, apperr.ErrValidation)
	}
	payload := strings.TrimSpace(string(r.Payload))
	if payload == "" || payload == "null" {
		r.Payload = json.RawMessage(`{}`)
	} else if !json.Valid(r.Payload) || payload[0] != '{' {
		return nil, fmt.Errorf("payload must be a JSON object: %w", apperr.ErrValidation)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	now := s.now().UTC()
	r.LastModified = now
	r.DateAdded = now
	return s.repo.Upsert(ctx, r)
}

func (s *Service) Delete(ctx context.Context, owner, id string) error {
	return s.repo.Delete(ctx, owner, id)
}

// DeleteAll removes every record of owner and reports how many were removed.
func (s *Service) DeleteAll(ctx context.Context, owner string) (int, error) {
	rows, err := s.repo.List(ctx, owner)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range rows {
		if err := s.repo.Delete(ctx, owner, r.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return n, err
		}
		n++
	}
	return n, nil
}

// DeleteDerived removes every record whose SourceRecordID is sourceID.
func (s *Service) DeleteDerived(ctx context.Context, sourceID string) (int, error) {
	return s.repo.DeleteBySource(ctx, sourceID)
}

// GetStats counts records per category and estimates stored size. Any store
// failure yields zero stats instead of an error.
func (s *Service) GetStats(ctx context.Context, owner string) *Stats {
	stats := emptyStats()

	rows, err := s.ListAll(ctx, owner)
	if err != nil {
		s.logger.Warn().Err(err).Msg("record stats unavailable")
		return stats
	}
	for _, r := range rows {
		stats.Counts[r.Category]++
		stats.TotalRecords++
		stats.ApproxBytes += int64(len(r.Payload) + len(r.ID) + len(r.OwnerIdentity))
	}

	if s.docs != nil {
		total, shared, err := s.docs.CountDocuments(ctx, owner)
		if err != nil {
			s.logger.Warn().Err(err).Msg("document stats unavailable")
		} else {
			stats.Documents, stats.SharedDocuments = total, shared
		}
	}
	return stats
}
