package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithRoles(roles ...string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := WithIdentity(req.Context(), Identity{UserID: "u1", Email: "u1@example.com", Roles: roles})
	return e.NewContext(req.WithContext(ctx), httptest.NewRecorder())
}

func TestRequireRole_Allowed(t *testing.T) {
	c := contextWithRoles(RolePatient)
	if err := RequireRole(RolePatient)(okHandler)(c); err != nil {
		t.Errorf("expected access, got %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c := contextWithRoles(RolePatient)
	err := RequireRole(RoleProvider)(okHandler)(c)
	if err == nil {
		t.Fatal("expected forbidden")
	}
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	c := contextWithRoles(RoleAdmin)
	if err := RequireRole(RoleProvider)(okHandler)(c); err != nil {
		t.Errorf("expected admin to pass, got %v", err)
	}
}

func TestRequireRole_NoIdentity(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if err := RequireRole(RolePatient)(okHandler)(c); err == nil {
		t.Error("expected forbidden without identity")
	}
}

func TestRequireEmail(t *testing.T) {
	if err := RequireEmail()(okHandler)(contextWithRoles(RolePatient)); err != nil {
		t.Errorf("expected pass with email, got %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := WithIdentity(context.Background(), Identity{UserID: "u1"})
	c := e.NewContext(req.WithContext(ctx), httptest.NewRecorder())
	if err := RequireEmail()(okHandler)(c); err == nil {
		t.Error("expected forbidden without email")
	}
}
