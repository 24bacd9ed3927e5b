package access

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phr/phr/internal/platform/auth"
)

func TestHandler_ListDocuments(t *testing.T) {
	h := NewHandler(NewGateway(linkSet{{patient, provider}: true}, sampleDocs(), zerolog.Nop()))
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: provider, Roles: []string{auth.RoleProvider}}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("email")
	c.SetParamValues("erin%40example.com")

	require.NoError(t, h.ListDocuments(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var got []VisibleDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].ID)
}

func TestHandler_ListDocuments_UnlinkedIsEmptyArray(t *testing.T) {
	h := NewHandler(NewGateway(linkSet{}, sampleDocs(), zerolog.Nop()))
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: provider, Roles: []string{auth.RoleProvider}}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("email")
	c.SetParamValues(patient)

	require.NoError(t, h.ListDocuments(c))
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandler_ListDocuments_MixedCaseEmail(t *testing.T) {
	h := NewHandler(NewGateway(linkSet{{patient, provider}: true}, sampleDocs(), zerolog.Nop()))
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: provider, Roles: []string{auth.RoleProvider}}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("email")
	c.SetParamValues("%20Erin%40Example.COM")

	require.NoError(t, h.ListDocuments(c))
	var got []VisibleDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].ID)
}
