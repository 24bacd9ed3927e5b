package bundle

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phr/phr/internal/platform/auth"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo) {
	h := newHarness(t)
	asm := NewAssembler(h.records, h.remote, auth.ContextResolver{}, zerolog.Nop())
	return NewHandler(asm), echo.New()
}

func call(t *testing.T, e *echo.Echo, fn echo.HandlerFunc, params ...string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "u1", Email: owner, Roles: []string{auth.RolePatient}}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) == 2 {
		c.SetParamNames(params[0])
		c.SetParamValues(params[1])
	}
	return rec, fn(c)
}

func TestHandler_BundleJSON(t *testing.T) {
	h, e := newTestHandler(t)
	rec, err := call(t, e, h.BundleJSON)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/fhir+json", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "remote-lab-l1")
}

func TestHandler_BundlePDF(t *testing.T) {
	h, e := newTestHandler(t)
	rec, err := call(t, e, h.BundlePDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "health-summary-")
}

func TestHandler_BundleQR(t *testing.T) {
	h, e := newTestHandler(t)
	rec, err := call(t, e, h.BundleQR)
	if he, ok := err.(*echo.HTTPError); ok {
		assert.Equal(t, http.StatusRequestEntityTooLarge, he.Code)
		return
	}
	require.NoError(t, err)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
}

func TestHandler_RecordNotFound(t *testing.T) {
	h, e := newTestHandler(t)
	_, err := call(t, e, h.RecordJSON, "id", "missing")
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Code)
}
