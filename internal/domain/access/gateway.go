// Package access answers what a provider may see for a patient: documents
// the patient both linked the provider to and marked as shared.
package access

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/phr/phr/internal/domain/documents"
	"github.com/phr/phr/internal/platform/blobstore"
)

// LinkChecker reports whether a provider is linked to a patient.
type LinkChecker interface {
	IsLinked(ctx context.Context, patient, providerID string) (bool, error)
}

// SharedDocuments lists a patient's shared documents and signs links to them.
type SharedDocuments interface {
	ListShared(ctx context.Context, owner string) ([]*documents.Document, error)
	SignedURL(d *documents.Document) (*blobstore.SignedURL, error)
}

// VisibleDocument is a shared document with a link minted for this request.
type VisibleDocument struct {
	ID           string    `json:"id"`
	FileName     string    `json:"file_name"`
	DocumentType string    `json:"document_type"`
	ProviderName *string   `json:"provider_name,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
	SignedURL    string    `json:"signed_url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type Gateway struct {
	links  LinkChecker
	docs   SharedDocuments
	logger zerolog.Logger
}

func NewGateway(links LinkChecker, docs SharedDocuments, logger zerolog.Logger) *Gateway {
	return &Gateway{links: links, docs: docs, logger: logger}
}

// ListVisibleDocuments returns an empty slice when provider is not linked to
// patient. Store failures are returned, never turned into visibility.
func (g *Gateway) ListVisibleDocuments(ctx context.Context, provider, patient string) ([]VisibleDocument, error) {
	out := make([]VisibleDocument, 0)
	if provider == "" || patient == "" {
		return out, nil
	}

	linked, err := g.links.IsLinked(ctx, patient, provider)
	if err != nil {
		return nil, err
	}
	if !linked {
		return out, nil
	}

	docs, err := g.docs.ListShared(ctx, patient)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.OwnerIdentity != patient || !d.IsShared {
			continue
		}
		u, err := g.docs.SignedURL(d)
		if err != nil {
			g.logger.Warn().Err(err).Str("record_id", d.ID).Msg("could not sign document; omitted")
			continue
		}
		out = append(out, VisibleDocument{
			ID:           d.ID,
			FileName:     d.FileName,
			DocumentType: d.DocumentType,
			ProviderName: d.ProviderName,
			UploadedAt:   d.UploadedAt,
			SignedURL:    u.URL,
			ExpiresAt:    u.ExpiresAt,
		})
	}
	g.logger.Debug().
		Str("provider_id", provider).
		Int("visible", len(out)).
		Msg("provider document listing")
	return out, nil
}
