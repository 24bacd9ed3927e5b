package account

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/phr/phr/internal/domain/clinical"
	"github.com/phr/phr/internal/domain/consent"
	"github.com/phr/phr/internal/domain/documents"
	"github.com/phr/phr/internal/domain/providers"
	"github.com/phr/phr/internal/domain/records"
	"github.com/phr/phr/internal/platform/auth"
	"github.com/phr/phr/internal/platform/blobstore"
)

type fakeIdentity struct {
	deleted []string
	err     error
}

func (f *fakeIdentity) DeleteUser(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type env struct {
	svc       *Service
	docs      *documents.Service
	providers *providers.Service
	records   *records.Service
	clinical  clinical.Repository
	identity  *fakeIdentity
}

func newEnv() *env {
	profiles := providers.NewMemoryProfileRepository()
	e := &env{
		providers: providers.NewService(profiles, providers.NewMemoryLinkRepository(profiles), zerolog.Nop()),
		records:   records.NewService(records.NewMemoryRepository(), zerolog.Nop()),
		clinical:  clinical.NewMemoryRepository(),
		identity:  &fakeIdentity{},
	}
	e.docs = documents.NewService(documents.Deps{
		Documents: documents.NewMemoryRepository(),
		Consents:  consent.NewMemoryRepository(),
		Clinical:  e.clinical,
		Records:   e.records,
		Blobs:     blobstore.NewMemoryStore(),
		Signer:    blobstore.NewURLSigner([]byte("k"), "http://localhost", time.Minute),
		Logger:    zerolog.Nop(),
	})
	e.svc = NewService(Deps{
		Directory:  e.providers,
		Documents:  e.docs,
		Records:    e.records,
		Structured: e.clinical,
		Identity:   e.identity,
		Logger:     zerolog.Nop(),
	})
	return e
}

func TestDelete_RemovesEverything(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	userID := uuid.NewString()
	const email = "hana@example.com"

	if _, err := e.providers.SaveProfile(ctx, &providers.Profile{ID: userID, Email: email, Role: providers.RolePatient}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.docs.Upload(ctx, documents.UploadInput{Owner: email, FileName: "a.pdf", DocumentType: "note"}, strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := e.records.Save(ctx, &records.ClinicalRecord{OwnerIdentity: email, Category: records.CategoryMedication}); err != nil {
		t.Fatal(err)
	}

	if err := e.svc.Delete(ctx, userID, ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if docs, _ := e.docs.List(ctx, email); len(docs) != 0 {
		t.Errorf("documents left: %d", len(docs))
	}
	if rs, _ := e.records.ListAll(ctx, email); len(rs) != 0 {
		t.Errorf("records left: %d", len(rs))
	}
	if _, err := e.providers.Profile(ctx, userID); err == nil {
		t.Error("profile still present")
	}
	if len(e.identity.deleted) != 1 || e.identity.deleted[0] != userID {
		t.Errorf("identity not deleted: %v", e.identity.deleted)
	}
}

func TestDelete_IdentityFailurePropagates(t *testing.T) {
	e := newEnv()
	e.identity.err = errors.New("admin api down")
	if err := e.svc.Delete(context.Background(), uuid.NewString(), "x@example.com"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDelete_InvalidUserID(t *testing.T) {
	e := newEnv()
	if err := e.svc.Delete(context.Background(), "not-a-uuid", ""); err == nil {
		t.Fatal("expected validation error")
	}
}

func postDelete(t *testing.T, h *Handler, body string, id auth.Identity) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/delete-account", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithIdentity(req.Context(), id))
	rec := httptest.NewRecorder()
	if err := h.DeleteAccount(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestHandler_DeleteAccount(t *testing.T) {
	e := newEnv()
	h := NewHandler(e.svc)
	userID := uuid.NewString()

	rec := postDelete(t, h, `{"userId":"`+userID+`"}`, auth.Identity{UserID: userID, Email: "ivy@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"success":true`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_DeleteAccount_OtherUserForbidden(t *testing.T) {
	e := newEnv()
	h := NewHandler(e.svc)

	rec := postDelete(t, h, `{"userId":"`+uuid.NewString()+`"}`, auth.Identity{UserID: uuid.NewString()})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Errorf("expected error body, got %s", rec.Body.String())
	}
	if len(e.identity.deleted) != 0 {
		t.Error("identity deleted despite forbidden caller")
	}
}

func TestHandler_DeleteAccount_AdminMayDeleteOthers(t *testing.T) {
	e := newEnv()
	h := NewHandler(e.svc)
	target := uuid.NewString()

	rec := postDelete(t, h, `{"userId":"`+target+`"}`, auth.Identity{UserID: uuid.NewString(), Roles: []string{auth.RoleAdmin}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_DeleteAccount_MissingUserID(t *testing.T) {
	e := newEnv()
	rec := postDelete(t, NewHandler(e.svc), `{}`, auth.Identity{UserID: uuid.NewString()})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
