package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/phr/phr/internal/platform/apperr"
)

func newTestClient(url string) *AdminClient {
	return NewAdminClient(AdminConfig{
		BaseURL:    url,
		ServiceKey: "service-key",
		Timeout:    time.Second,
		MaxElapsed: 2 * time.Second,
	}, zerolog.Nop())
}

func TestDeleteUser_Success(t *testing.T) {
	var gotPath, gotAuth, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotAuth, gotMethod = r.URL.Path, r.Header.Get("Authorization"), r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).DeleteUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/admin/users/user-1" {
		t.Errorf("unexpected request %s %s", gotMethod, gotPath)
	}
	if gotAuth != "Bearer service-key" {
		t.Errorf("expected service key bearer, got %q", gotAuth)
	}
}

func TestDeleteUser_NotFoundIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).DeleteUser(context.Background(), "gone"); err != nil {
		t.Errorf("expected 404 to be treated as deleted, got %v", err)
	}
}

func TestDeleteUser_RetriesTransient(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).DeleteUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestDeleteUser_PermanentFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"msg":"service key rejected"}`))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).DeleteUser(context.Background(), "user-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected no retry on 403, got %d calls", calls)
	}
	if got := err.Error(); got != "delete identity: status 403: service key rejected" {
		t.Errorf("unexpected error %q", got)
	}
}

func TestDeleteUser_RequiresID(t *testing.T) {
	err := newTestClient("http://unused").DeleteUser(context.Background(), "")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
