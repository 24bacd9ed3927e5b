package consent

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/phr/phr/internal/platform/apperr"
	"github.com/phr/phr/internal/platform/auth"
)

// OwnerLookup resolves which patient owns a document.
type OwnerLookup interface {
	OwnerOf(ctx context.Context, recordID string) (string, error)
}

type Handler struct {
	svc    *Service
	owners OwnerLookup
}

func NewHandler(svc *Service, owners OwnerLookup) *Handler {
	return &Handler{svc: svc, owners: owners}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/consent", auth.RequireRole(auth.RolePatient), auth.RequireEmail())
	g.GET("/:recordId", h.Get)
	g.PUT("/:recordId/shared", h.SetShared)
	g.POST("/:recordId/grantees", h.AddGrantee)
	g.DELETE("/:recordId/grantees/:grantee", h.RemoveGrantee)
}

// authorize hides documents of other patients behind a 404.
func (h *Handler) authorize(c echo.Context) (string, error) {
	ctx := c.Request().Context()
	id := c.Param("recordId")
	if err := checkRecordID(id); err != nil {
		return "", apperr.ToHTTP(err)
	}
	owner, err := h.owners.OwnerOf(ctx, id)
	if err != nil {
		return "", apperr.ToHTTP(err)
	}
	if owner != auth.EmailFromContext(ctx) {
		return "", echo.NewHTTPError(http.StatusNotFound, "record not found")
	}
	return id, nil
}

func (h *Handler) Get(c echo.Context) error {
	id, err := h.authorize(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, st)
}

type sharedRequest struct {
	Shared *bool `json:"shared"`
}

func (h *Handler) SetShared(c echo.Context) error {
	id, err := h.authorize(c)
	if err != nil {
		return err
	}
	var req sharedRequest
	if err := c.Bind(&req); err != nil || req.Shared == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "shared is required")
	}
	st, err := h.svc.SetShared(c.Request().Context(), id, *req.Shared)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, st)
}

type granteeRequest struct {
	Grantee string `json:"grantee"`
}

func (h *Handler) AddGrantee(c echo.Context) error {
	id, err := h.authorize(c)
	if err != nil {
		return err
	}
	var req granteeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	st, err := h.svc.AddGrantee(c.Request().Context(), id, req.Grantee)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) RemoveGrantee(c echo.Context) error {
	id, err := h.authorize(c)
	if err != nil {
		return err
	}
	st, err := h.svc.RemoveGrantee(c.Request().Context(), id, c.Param("grantee"))
	if errors.Is(err, apperr.ErrValidation) {
		return echo.NewHTTPError(http.StatusBadRequest, "grantee is required")
	}
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, st)
}
