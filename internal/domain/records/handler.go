package records

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/phr/phr/internal/platform/apperr"
	"github.com/phr/phr/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/records", auth.RequireRole(auth.RolePatient), auth.RequireEmail())
	g.GET("", h.List)
	g.GET("/stats", h.Stats)
	g.PUT("/:id", h.Save)
	g.DELETE("/:id", h.Delete)
}

type saveRequest struct {
	Category       Category        `json:"category"`
	Payload        json.RawMessage `json:"payload"`
	SourceRecordID *string         `json:"source_record_id,omitempty"`
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.ListAll(ctx, auth.EmailFromContext(ctx))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if cat := Category(c.QueryParam("category")); cat != "" {
		if !cat.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid category")
		}
		items = ByCategory(items)[cat]
		if items == nil {
			items = []*ClinicalRecord{}
		}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Save(c echo.Context) error {
	var req saveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	rec := &ClinicalRecord{
		ID:             c.Param("id"),
		OwnerIdentity:  auth.EmailFromContext(ctx),
		Category:       req.Category,
		Payload:        req.Payload,
		SourceRecordID: req.SourceRecordID,
	}
	saved, err := h.svc.Save(ctx, rec)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.svc.Delete(ctx, auth.EmailFromContext(ctx), c.Param("id")); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, h.svc.GetStats(ctx, auth.EmailFromContext(ctx)))
}
