package access

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/phr/phr/internal/platform/apperr"
	"github.com/phr/phr/internal/platform/auth"
)

type Handler struct {
	gw *Gateway
}

func NewHandler(gw *Gateway) *Handler {
	return &Handler{gw: gw}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patients", auth.RequireRole(auth.RoleProvider))
	g.GET("/:email/documents", h.ListDocuments)
}

func (h *Handler) ListDocuments(c echo.Context) error {
	patient, err := url.PathUnescape(c.Param("email"))
	patient = strings.ToLower(strings.TrimSpace(patient))
	if err != nil || patient == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient email is required")
	}
	ctx := c.Request().Context()
	docs, err := h.gw.ListVisibleDocuments(ctx, auth.UserIDFromContext(ctx), patient)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, docs)
}
