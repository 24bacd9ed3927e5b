package providers

import (
	"fmt"
	"time"

	"github.com/phr/phr/internal/platform/apperr"
)

var (
	ErrProviderNotFound = fmt.Errorf("provider not found: %w", apperr.ErrNotFound)
	ErrAlreadyLinked    = fmt.Errorf("provider already linked: %w", apperr.ErrConflict)
)

const (
	RolePatient  = "patient"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

// Profile is the directory entry of a portal user.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name"`
	Specialty   string    `json:"specialty,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Link grants a provider visibility of a patient's shared documents.
// PatientIdentity is the patient's email; ProviderIdentity is the provider's
// profile id.
type Link struct {
	PatientIdentity  string    `json:"patient_identity"`
	ProviderIdentity string    `json:"provider_identity"`
	AccessGrantedAt  time.Time `json:"access_granted_at"`
	Provider         *Profile  `json:"provider,omitempty"`
}
