package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/phr/phr/internal/platform/apperr"
)

type Service struct {
	profiles ProfileRepository
	links    LinkRepository
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(profiles ProfileRepository, links LinkRepository, logger zerolog.Logger) *Service {
	return &Service{profiles: profiles, links: links, logger: logger, now: time.Now}
}

// LinkProvider grants the provider registered under providerEmail access to
// the patient's shared documents. The insert is not pre-checked; the pair
// constraint decides duplicates.
func (s *Service) LinkProvider(ctx context.Context, patient, providerEmail string) (*Link, error) {
	email := strings.ToLower(strings.TrimSpace(providerEmail))
	if patient == "" || email == "" {
		return nil, fmt.Errorf("patient and provider email are required: %w", apperr.ErrValidation)
	}

	prof, err := s.profiles.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrProviderNotFound
	}
	if err != nil {
		return nil, err
	}
	if prof.Role != RoleProvider {
		return nil, ErrProviderNotFound
	}

	link := &Link{
		PatientIdentity:  patient,
		ProviderIdentity: prof.ID,
		AccessGrantedAt:  s.now().UTC(),
	}
	if err := s.links.Insert(ctx, link); err != nil {
		return nil, err
	}
	link.Provider = prof
	s.logger.Info().Str("provider_id", prof.ID).Msg("provider linked")
	return link, nil
}

// UnlinkProvider succeeds whether or not the link existed; removed reports
// which.
func (s *Service) UnlinkProvider(ctx context.Context, patient, providerID string) (removed bool, err error) {
	if _, err := uuid.Parse(providerID); err != nil {
		return false, nil
	}
	return s.links.Delete(ctx, patient, providerID)
}

// ListLinkedProviders drops links whose provider profile is missing.
func (s *Service) ListLinkedProviders(ctx context.Context, patient string) ([]*Link, error) {
	links, err := s.links.ListByPatient(ctx, patient)
	if err != nil {
		return nil, err
	}
	out := make([]*Link, 0, len(links))
	for _, l := range links {
		if l.Provider == nil || l.Provider.Email == "" {
			s.logger.Warn().Str("provider_id", l.ProviderIdentity).Msg("dropping link without provider profile")
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Service) ListLinkedPatients(ctx context.Context, providerID string) ([]*Link, error) {
	if _, err := uuid.Parse(providerID); err != nil {
		return []*Link{}, nil
	}
	return s.links.ListByProvider(ctx, providerID)
}

// IsLinked reports whether providerID may see patient's shared documents.
func (s *Service) IsLinked(ctx context.Context, patient, providerID string) (bool, error) {
	if _, err := uuid.Parse(providerID); err != nil {
		return false, nil
	}
	return s.links.Exists(ctx, patient, providerID)
}

func (s *Service) Profile(ctx context.Context, id string) (*Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("profile %q: %w", id, apperr.ErrNotFound)
	}
	return s.profiles.GetByID(ctx, id)
}

// SaveProfile creates or updates the caller's own directory entry.
func (s *Service) SaveProfile(ctx context.Context, p *Profile) (*Profile, error) {
	if _, err := uuid.Parse(p.ID); err != nil {
		return nil, fmt.Errorf("profile id must be a uuid: %w", apperr.ErrValidation)
	}
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.Email == "" {
		return nil, fmt.Errorf("email is required: %w", apperr.ErrValidation)
	}
	switch p.Role {
	case RolePatient, RoleProvider, RoleAdmin:
	default:
		return nil, fmt.Errorf("invalid role %q: %w", p.Role, apperr.ErrValidation)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	return s.profiles.Upsert(ctx, p)
}

// DeleteAccountData removes the profile and every link naming the user.
// A missing profile is not an error.
func (s *Service) DeleteAccountData(ctx context.Context, userID, email string) error {
	if email != "" {
		if _, err := s.links.DeleteByPatient(ctx, email); err != nil {
			return err
		}
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil
	}
	if err := s.profiles.Delete(ctx, userID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return nil
}
