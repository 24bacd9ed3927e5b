package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phr/phr/internal/domain/consent"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, Token: "tok", Timeout: 5 * time.Second, MaxElapsed: 2 * time.Second})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PHR_CLIENT_BASE_URL", "https://phr.example")
	t.Setenv("PHR_CLIENT_TIMEOUT", "3s")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://phr.example", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 10*time.Second, cfg.MaxElapsed)
}

func TestListDocuments(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/documents", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{
			"data":  []map[string]any{{"id": "d1", "file_name": "labs.pdf", "is_shared": true}},
			"total": 1,
		})
	}))
	docs, err := c.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "labs.pdf", docs[0].FileName)
	assert.True(t, docs[0].IsShared)
}

func TestLinkProvider_Conflict(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"resourceType": "OperationOutcome",
			"issue":        []map[string]string{{"severity": "error", "code": "conflict", "diagnostics": "provider already linked"}},
		})
	}))
	_, err := c.LinkProvider(context.Background(), "dr@example.com")
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Contains(t, err.Error(), "provider already linked")
}

func TestLinkProvider_NotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	_, err := c.LinkProvider(context.Background(), "dr@example.com")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGet_RetriesTransientFailure(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"record_id": "d1", "consent_given": true, "shared_with": []string{}})
	}))
	st, err := c.Consent(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, st.ConsentGiven)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestPatientDocuments_Unlinked(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/patients/erin@example.com/documents", r.URL.Path)
		writeJSON(w, http.StatusOK, []any{})
	}))
	docs, err := c.PatientDocuments(context.Background(), "erin@example.com")
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestDeleteAccount_ErrorBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/delete-account", r.URL.Path)
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "cannot delete another user's account"})
	}))
	err := c.DeleteAccount(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "another user's account")
}

func TestSharing_CommitAndRollback(t *testing.T) {
	fail := atomic.Bool{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "rejected"})
			return
		}
		var body struct {
			Shared bool `json:"shared"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]any{"record_id": "d1", "consent_given": body.Shared})
	}))
	s := c.NewSharing([]Document{{ID: "d1", IsShared: false}})

	v, err := s.Flip(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, v)
	assert.Equal(t, consent.ToggleCommitted, s.State("d1"))

	fail.Store(true)
	v, err = s.Flip(context.Background(), "d1")
	require.Error(t, err)
	assert.True(t, v, "rolled back to the committed value")
	assert.True(t, s.Value("d1"))
	assert.Equal(t, consent.ToggleRolledBack, s.State("d1"))
}

func TestSharing_PendingRejectsSecondToggle(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		writeJSON(w, http.StatusOK, map[string]any{"record_id": "d1", "consent_given": true})
	}))
	s := c.NewSharing([]Document{{ID: "d1"}})

	done := make(chan error, 1)
	go func() {
		_, err := s.Set(context.Background(), "d1", true)
		done <- err
	}()
	<-started
	assert.True(t, s.Value("d1"), "optimistic value shown while pending")
	_, err := s.Set(context.Background(), "d1", false)
	assert.True(t, errors.Is(err, consent.ErrTogglePending))
	close(release)
	require.NoError(t, <-done)
	assert.True(t, s.Value("d1"))
}
