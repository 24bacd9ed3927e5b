package client

import "time"

type Document struct {
	ID           string    `json:"id"`
	FileName     string    `json:"file_name"`
	FilePath     string    `json:"file_path"`
	DocumentType string    `json:"document_type"`
	ProviderName *string   `json:"provider_name,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
	IsShared     bool      `json:"is_shared"`
}

type DocumentPage struct {
	Data    []Document `json:"data"`
	Total   int        `json:"total"`
	HasMore bool       `json:"has_more"`
}

type ConsentState struct {
	RecordID     string     `json:"record_id"`
	ConsentGiven bool       `json:"consent_given"`
	SharedWith   []string   `json:"shared_with"`
	LastShared   *time.Time `json:"last_shared,omitempty"`
}

type SignedURL struct {
	URL       string    `json:"signed_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Provider struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Specialty   string `json:"specialty,omitempty"`
}

type ProviderLink struct {
	PatientIdentity  string    `json:"patient_identity"`
	ProviderIdentity string    `json:"provider_identity"`
	AccessGrantedAt  time.Time `json:"access_granted_at"`
	Provider         *Provider `json:"provider,omitempty"`
}

// VisibleDocument is what a provider sees for a linked patient. SignedURL
// stops working at ExpiresAt and must not be cached past it.
type VisibleDocument struct {
	ID           string    `json:"id"`
	FileName     string    `json:"file_name"`
	DocumentType string    `json:"document_type"`
	ProviderName *string   `json:"provider_name,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
	SignedURL    string    `json:"signed_url"`
	ExpiresAt    time.Time `json:"expires_at"`
}
