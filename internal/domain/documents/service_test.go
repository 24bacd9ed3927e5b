package documents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/phr/phr/internal/domain/clinical"
	"github.com/phr/phr/internal/domain/consent"
	"github.com/phr/phr/internal/domain/records"
	"github.com/phr/phr/internal/platform/apperr"
	"github.com/phr/phr/internal/platform/blobstore"
)

type fixture struct {
	svc      *Service
	docs     Repository
	consents consent.Repository
	clinical clinical.Repository
	records  *records.Service
	blobs    blobstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		docs:     NewMemoryRepository(),
		consents: consent.NewMemoryRepository(),
		clinical: clinical.NewMemoryRepository(),
		records:  records.NewService(records.NewMemoryRepository(), zerolog.Nop()),
		blobs:    blobstore.NewMemoryStore(),
	}
	f.svc = NewService(Deps{
		Documents: f.docs,
		Consents:  f.consents,
		Clinical:  f.clinical,
		Records:   f.records,
		Blobs:     f.blobs,
		Signer:    blobstore.NewURLSigner([]byte("test-key"), "http://localhost:8000", time.Minute),
		Logger:    zerolog.Nop(),
	})
	return f
}

func (f *fixture) upload(t *testing.T, owner, name string) *Document {
	t.Helper()
	doc, err := f.svc.Upload(context.Background(), UploadInput{
		Owner: owner, FileName: name, DocumentType: "lab_report",
	}, strings.NewReader("%PDF-1.4 fake"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return doc
}

type failingDocs struct {
	Repository
	createErr, deleteErr error
}

func (f failingDocs) Create(ctx context.Context, d *Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.Repository.Create(ctx, d)
}

func (f failingDocs) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Repository.Delete(ctx, id)
}

type failingBlobs struct{ blobstore.Store }

func (failingBlobs) Remove(context.Context, ...string) error { return errors.New("bucket offline") }

func TestObjectPath(t *testing.T) {
	got := ObjectPath("alice@example.com", "abc", "../../etc/passwd")
	if got != "alice@example.com/abc-passwd" {
		t.Errorf("unexpected path %q", got)
	}
	if SafeFileName("") != "upload" {
		t.Error("empty names should fall back to upload")
	}
}

func TestService_UploadAndList(t *testing.T) {
	f := newFixture(t)
	doc := f.upload(t, "alice@example.com", "blood work.pdf")

	if !strings.HasPrefix(doc.FilePath, "alice@example.com/"+doc.ID+"-") {
		t.Errorf("unexpected file path %q", doc.FilePath)
	}
	if doc.DocumentType != "lab_report" {
		t.Errorf("document type must come from the caller, got %q", doc.DocumentType)
	}
	rc, _, err := f.blobs.Open(context.Background(), doc.FilePath)
	if err != nil {
		t.Fatalf("blob missing: %v", err)
	}
	rc.Close()

	st, err := f.consents.Get(context.Background(), doc.ID)
	if err != nil || st.ConsentGiven {
		t.Errorf("expected private consent row, got %+v %v", st, err)
	}

	list, err := f.svc.List(context.Background(), "alice@example.com")
	if err != nil || len(list) != 1 || list[0].IsShared {
		t.Errorf("unexpected list %+v %v", list, err)
	}

	f.consents.SetShared(context.Background(), doc.ID, true, time.Now())
	shared, _ := f.svc.ListShared(context.Background(), "alice@example.com")
	if len(shared) != 1 || !shared[0].IsShared {
		t.Errorf("expected shared document, got %+v", shared)
	}
	total, sharedN, _ := f.svc.CountDocuments(context.Background(), "alice@example.com")
	if total != 1 || sharedN != 1 {
		t.Errorf("unexpected counts %d/%d", total, sharedN)
	}
}

func TestService_UploadRequiresDocumentType(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Upload(context.Background(), UploadInput{Owner: "a@b.c", FileName: "x.pdf"}, strings.NewReader("x"))
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestService_UploadRemovesBlobWhenInsertFails(t *testing.T) {
	f := newFixture(t)
	f.svc.docs = failingDocs{Repository: f.docs, createErr: apperr.ErrStoreUnavailable}

	_, err := f.svc.Upload(context.Background(), UploadInput{Owner: "alice@example.com", FileName: "x.pdf", DocumentType: "imaging"}, strings.NewReader("x"))
	if !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Fatalf("expected store error, got %v", err)
	}
	objs, _ := f.blobs.List(context.Background(), "alice@example.com/")
	if len(objs) != 0 {
		t.Errorf("orphaned blob left behind: %+v", objs)
	}
}

func TestService_PreviewURLOwnerOnly(t *testing.T) {
	f := newFixture(t)
	doc := f.upload(t, "alice@example.com", "scan.png")

	u, err := f.svc.PreviewURL(context.Background(), "alice@example.com", doc.ID)
	if err != nil || !strings.Contains(u.URL, "token=") {
		t.Fatalf("expected signed url, got %+v %v", u, err)
	}
	if _, err := f.svc.PreviewURL(context.Background(), "bob@example.com", doc.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for another owner, got %v", err)
	}
}

func TestService_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.IngestParsed(ctx, &ParsedRecord{
		TargetPatientEmail: "alice@example.com", FileName: "discharge.pdf", DocumentType: "discharge_summary",
		Parsed: ParsedContent{Derived: clinical.Derived{
			Medications: []clinical.Medication{{Name: "Warfarin"}},
			Allergies:   []clinical.Allergy{{Allergen: "Sulfa"}},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	id := res.Document.ID
	f.records.Save(ctx, &records.ClinicalRecord{OwnerIdentity: "alice@example.com", Category: records.CategoryMedication, SourceRecordID: &id})

	if err := f.svc.Delete(ctx, "alice@example.com", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	meds, _ := f.clinical.ListMedications(ctx, "alice@example.com")
	cached, _ := f.records.ListAll(ctx, "alice@example.com")
	if len(meds) != 0 || len(cached) != 0 {
		t.Errorf("derived rows survived: %d remote, %d cached", len(meds), len(cached))
	}
	if _, err := f.consents.Get(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("consent row survived: %v", err)
	}
	if _, err := f.docs.Get(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("metadata row survived: %v", err)
	}
}

func TestService_DeleteContinuesPastBlobFailure(t *testing.T) {
	f := newFixture(t)
	doc := f.upload(t, "alice@example.com", "x.pdf")
	f.svc.blobs = failingBlobs{f.blobs}

	if err := f.svc.Delete(context.Background(), "alice@example.com", doc.ID); err != nil {
		t.Fatalf("blob failure must not fail the delete: %v", err)
	}
	if _, err := f.docs.Get(context.Background(), doc.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("metadata row should be gone")
	}
}

func TestService_DeleteFailsOnMetadataError(t *testing.T) {
	f := newFixture(t)
	doc := f.upload(t, "alice@example.com", "x.pdf")
	f.svc.docs = failingDocs{Repository: f.docs, deleteErr: apperr.ErrStoreUnavailable}

	err := f.svc.Delete(context.Background(), "alice@example.com", doc.ID)
	if !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Fatalf("expected metadata failure, got %v", err)
	}
	if _, _, err := f.blobs.Open(context.Background(), doc.FilePath); !errors.Is(err, blobstore.ErrObjectNotFound) {
		t.Errorf("earlier phases are not rolled back; blob should be gone, got %v", err)
	}
}

func TestService_DeleteOtherOwner(t *testing.T) {
	f := newFixture(t)
	doc := f.upload(t, "alice@example.com", "x.pdf")
	if err := f.svc.Delete(context.Background(), "mallory@example.com", doc.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := f.svc.Delete(context.Background(), "alice@example.com", "not-a-uuid"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_IngestParsedShares(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.IngestParsed(ctx, &ParsedRecord{
		TargetPatientEmail: "Alice@Example.com", UserEmail: "Dr@Clinic.org",
		FilePath: "alice@example.com/prev-upload.pdf", FileName: "prev-upload.pdf",
		Parsed: ParsedContent{Provider: "City Lab", Derived: clinical.Derived{
			LabResults: []clinical.LabResult{{ID: "parser-1", TestName: "LDL", Value: "130", Unit: "mg/dL"}},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Derived != 1 || !res.Document.IsShared || res.Document.OwnerIdentity != "alice@example.com" {
		t.Errorf("unexpected result %+v", res.Document)
	}
	if res.Document.DocumentType != ParsedDocumentType {
		t.Errorf("expected default document type, got %q", res.Document.DocumentType)
	}
	st, _ := f.consents.Get(ctx, res.Document.ID)
	if !st.ConsentGiven || st.LastShared == nil || len(st.SharedWith) != 1 || st.SharedWith[0] != "dr@clinic.org" {
		t.Errorf("unexpected consent %+v", st)
	}
	labs, _ := f.clinical.ListLabResults(ctx, "alice@example.com")
	if len(labs) != 1 || labs[0].SourceRecordID == nil || *labs[0].SourceRecordID != res.Document.ID {
		t.Errorf("derived row not linked to its document: %+v", labs)
	}
	if labs[0].ID == "parser-1" {
		t.Error("row id from the parser should be replaced")
	}
}

func TestService_IngestParsedSelfUploadIsPrivate(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.IngestParsed(context.Background(), &ParsedRecord{
		TargetPatientEmail: "alice@example.com", UserEmail: "ALICE@example.com", FileName: "note.pdf",
	})
	if err != nil {
		t.Fatal(err)
	}
	st, _ := f.consents.Get(context.Background(), res.Document.ID)
	if res.Document.IsShared || st.ConsentGiven || len(st.SharedWith) != 0 {
		t.Errorf("self upload must not be shared: %+v", st)
	}
}

func TestService_IngestParsedRejectsForeignPath(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.IngestParsed(context.Background(), &ParsedRecord{
		TargetPatientEmail: "alice@example.com",
		FilePath:           "bob@example.com/secret.pdf", FileName: "secret.pdf",
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestService_DeleteAll(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "alice@example.com", "a.pdf")
	f.upload(t, "alice@example.com", "b.pdf")
	n, err := f.svc.DeleteAll(context.Background(), "alice@example.com")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 deleted, got %d %v", n, err)
	}
	objs, _ := f.blobs.List(context.Background(), "")
	if len(objs) != 0 {
		t.Errorf("blobs left: %+v", objs)
	}
}
