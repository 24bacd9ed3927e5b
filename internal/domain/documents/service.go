package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/phr/phr/internal/domain/clinical"
	"github.com/phr/phr/internal/domain/consent"
	"github.com/phr/phr/internal/platform/apperr"
	"github.com/phr/phr/internal/platform/blobstore"
	"github.com/phr/phr/internal/platform/db"
	"github.com/phr/phr/internal/platform/metrics"
)

// DerivedRecords removes locally cached records extracted from a document.
type DerivedRecords interface {
	DeleteDerived(ctx context.Context, sourceRecordID string) (int, error)
}

type Deps struct {
	Documents Repository
	Consents  consent.Repository
	Clinical  clinical.Repository
	Records   DerivedRecords
	Blobs     blobstore.Store
	Signer    *blobstore.URLSigner
	Tx        db.Transactor
	Logger    zerolog.Logger
}

type Service struct {
	docs     Repository
	consents consent.Repository
	clinical clinical.Repository
	records  DerivedRecords
	blobs    blobstore.Store
	signer   *blobstore.URLSigner
	tx       db.Transactor
	logger   zerolog.Logger
	now      func() time.Time
	newID    func() string
}

func NewService(d Deps) *Service {
	tx := d.Tx
	if tx == nil {
		tx = db.NopTransactor{}
	}
	return &Service{
		docs:     d.Documents,
		consents: d.Consents,
		clinical: d.Clinical,
		records:  d.Records,
		blobs:    d.Blobs,
		signer:   d.Signer,
		tx:       tx,
		logger:   d.Logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func notFound(id string) error {
	return fmt.Errorf("document %s: %w", id, apperr.ErrNotFound)
}

// owned loads a document and hides it unless owner uploaded it.
func (s *Service) owned(ctx context.Context, owner, id string) (*Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound(id)
	}
	d, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.OwnerIdentity != owner {
		return nil, notFound(id)
	}
	return d, nil
}

// Upload stores the binary, then writes the metadata and a private consent
// row in one transaction. The binary is removed again if the rows cannot be
// written.
func (s *Service) Upload(ctx context.Context, in UploadInput, content io.Reader) (*Document, error) {
	if in.Owner == "" {
		return nil, fmt.Errorf("owner identity is required: %w", apperr.ErrValidation)
	}
	if strings.TrimSpace(in.DocumentType) == "" {
		return nil, fmt.Errorf("document_type is required: %w", apperr.ErrValidation)
	}
	if strings.TrimSpace(in.FileName) == "" {
		return nil, fmt.Errorf("file name is required: %w", apperr.ErrValidation)
	}

	id := s.newID()
	doc := &Document{
		ID:            id,
		OwnerIdentity: in.Owner,
		FilePath:      ObjectPath(in.Owner, id, in.FileName),
		FileName:      SafeFileName(in.FileName),
		DocumentType:  strings.TrimSpace(in.DocumentType),
		UploadedAt:    s.now().UTC(),
	}
	if p := strings.TrimSpace(in.ProviderName); p != "" {
		doc.ProviderName = &p
	}

	if _, err := s.blobs.Upload(ctx, doc.FilePath, content); err != nil {
		if errors.Is(err, blobstore.ErrFileTooLarge) || errors.Is(err, blobstore.ErrInvalidPath) {
			return nil, fmt.Errorf("upload %s: %v: %w", in.FileName, err, apperr.ErrValidation)
		}
		return nil, fmt.Errorf("upload %s: %v: %w", in.FileName, err, apperr.ErrStoreUnavailable)
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.docs.Create(ctx, doc); err != nil {
			return err
		}
		return s.consents.Create(ctx, consent.NewState(id, "", doc.UploadedAt))
	})
	if err != nil {
		if rmErr := s.blobs.Remove(ctx, doc.FilePath); rmErr != nil {
			s.logger.Error().Err(rmErr).Str("record_id", id).Msg("orphaned upload could not be removed")
		}
		return nil, err
	}

	s.logger.Info().Str("record_id", id).Str("document_type", doc.DocumentType).Msg("document uploaded")
	return doc, nil
}

// List returns the owner's documents, newest first, with IsShared filled in
// from the consent ledger.
func (s *Service) List(ctx context.Context, owner string) ([]*Document, error) {
	docs, err := s.docs.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return docs, nil
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	states, err := s.consents.States(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if st, ok := states[d.ID]; ok {
			d.IsShared = st.ConsentGiven
		}
	}
	return docs, nil
}

// ListShared returns only documents whose consent is given.
func (s *Service) ListShared(ctx context.Context, owner string) ([]*Document, error) {
	docs, err := s.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]*Document, 0, len(docs))
	for _, d := range docs {
		if d.IsShared {
			out = append(out, d)
		}
	}
	return out, nil
}

// CountDocuments reports total and shared documents for dashboard stats.
func (s *Service) CountDocuments(ctx context.Context, owner string) (total, shared int, err error) {
	docs, err := s.List(ctx, owner)
	if err != nil {
		return 0, 0, err
	}
	for _, d := range docs {
		if d.IsShared {
			shared++
		}
	}
	return len(docs), shared, nil
}

// OwnerOf reports who uploaded a document.
func (s *Service) OwnerOf(ctx context.Context, id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", notFound(id)
	}
	d, err := s.docs.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return d.OwnerIdentity, nil
}

// PreviewURL mints a fresh signed URL for the owner's own document.
func (s *Service) PreviewURL(ctx context.Context, owner, id string) (*blobstore.SignedURL, error) {
	d, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return s.SignedURL(d)
}

// SignedURL mints a URL for d. Nothing is cached; each call signs anew.
func (s *Service) SignedURL(d *Document) (*blobstore.SignedURL, error) {
	u, err := s.signer.Sign(d.FilePath)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", d.ID, err)
	}
	return u, nil
}

// Delete removes a document in three phases. Blob and derived-row failures
// are logged and skipped; only a failure to delete the metadata row fails
// the call, and earlier phases are not undone.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	d, err := s.owned(ctx, owner, id)
	if err != nil {
		return err
	}
	log := s.logger.With().Str("record_id", id).Logger()

	if err := s.blobs.Remove(ctx, d.FilePath); err != nil {
		metrics.CascadePhaseFailures.WithLabelValues("blob").Inc()
		log.Warn().Err(err).Str("phase", "blob").Msg("document delete: blob removal failed, continuing")
	}

	if n, err := s.clinical.DeleteBySource(ctx, id); err != nil {
		metrics.CascadePhaseFailures.WithLabelValues("derived_remote").Inc()
		log.Warn().Err(err).Str("phase", "derived_remote").Msg("document delete: derived rows not removed, continuing")
	} else if n > 0 {
		log.Debug().Int("rows", n).Msg("removed derived rows")
	}
	if s.records != nil {
		if _, err := s.records.DeleteDerived(ctx, id); err != nil {
			metrics.CascadePhaseFailures.WithLabelValues("derived_local").Inc()
			log.Warn().Err(err).Str("phase", "derived_local").Msg("document delete: cached records not removed, continuing")
		}
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.consents.Delete(ctx, id); err != nil {
			return err
		}
		return s.docs.Delete(ctx, id)
	})
	if err != nil {
		metrics.CascadePhaseFailures.WithLabelValues("metadata").Inc()
		log.Error().Err(err).Str("phase", "metadata").Msg("document delete failed")
		return err
	}
	log.Info().Msg("document deleted")
	return nil
}

// DeleteAll deletes every document of owner, stopping at the first
// authoritative failure.
func (s *Service) DeleteAll(ctx context.Context, owner string) (int, error) {
	docs, err := s.docs.ListByOwner(ctx, owner)
	if err != nil {
		return 0, err
	}
	for i, d := range docs {
		if err := s.Delete(ctx, owner, d.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return i, err
		}
	}
	return len(docs), nil
}

// IngestParsed writes a parsed document, its consent row and every derived
// row in one transaction, all owned by rec.TargetPatientEmail. The record is
// shared iff rec.UserEmail names a provider rather than the patient.
func (s *Service) IngestParsed(ctx context.Context, rec *ParsedRecord) (*IngestResult, error) {
	owner := consent.NormalizeGrantee(rec.TargetPatientEmail)
	if owner == "" {
		return nil, fmt.Errorf("targetPatientEmail is required: %w", apperr.ErrValidation)
	}
	if strings.TrimSpace(rec.FileName) == "" {
		return nil, fmt.Errorf("fileName is required: %w", apperr.ErrValidation)
	}
	docType := strings.TrimSpace(rec.DocumentType)
	if docType == "" {
		docType = ParsedDocumentType
	}
	grantee := consent.NormalizeGrantee(rec.UserEmail)
	if grantee == owner {
		grantee = ""
	}

	now := s.now().UTC()
	id := s.newID()
	doc := &Document{
		ID:            id,
		OwnerIdentity: owner,
		FilePath:      rec.FilePath,
		FileName:      SafeFileName(rec.FileName),
		DocumentType:  docType,
		UploadedAt:    now,
	}
	if doc.FilePath == "" {
		doc.FilePath = ObjectPath(owner, id, rec.FileName)
	} else if _, err := blobstore.CleanPath(doc.FilePath); err != nil || !strings.HasPrefix(doc.FilePath, owner+"/") {
		return nil, fmt.Errorf("filePath must lie under the patient's namespace: %w", apperr.ErrValidation)
	}
	if p := strings.TrimSpace(rec.Parsed.Provider); p != "" {
		doc.ProviderName = &p
	}

	derived := rec.Parsed.Derived
	derived.Stamp(owner, id, now, s.newID)

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.docs.Create(ctx, doc); err != nil {
			return err
		}
		if err := s.consents.Create(ctx, consent.NewState(id, grantee, now)); err != nil {
			return err
		}
		return s.clinical.InsertDerived(ctx, &derived)
	})
	if err != nil {
		return nil, err
	}
	doc.IsShared = grantee != ""

	s.logger.Info().Str("record_id", id).Bool("shared", doc.IsShared).Int("derived_rows", derived.Len()).Msg("parsed record ingested")
	return &IngestResult{Document: doc, Derived: derived.Len()}, nil
}
