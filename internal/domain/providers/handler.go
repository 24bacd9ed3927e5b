package providers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/phr/phr/internal/platform/apperr"
	"github.com/phr/phr/internal/platform/auth"
	"github.com/phr/phr/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/profile", h.GetProfile)
	api.PUT("/profile", h.SaveProfile, auth.RequireEmail())

	patient := api.Group("/providers", auth.RequireRole(auth.RolePatient), auth.RequireEmail())
	patient.GET("/links", h.ListLinks)
	patient.POST("/links", h.Link)
	patient.DELETE("/links/:providerId", h.Unlink)

	provider := api.Group("/patients", auth.RequireRole(auth.RoleProvider))
	provider.GET("", h.ListPatients)
}

type linkRequest struct {
	ProviderEmail string `json:"providerEmail"`
}

func (h *Handler) Link(c echo.Context) error {
	var req linkRequest
	if err := c.Bind(&req); err != nil || req.ProviderEmail == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "providerEmail is required")
	}
	ctx := c.Request().Context()
	link, err := h.svc.LinkProvider(ctx, auth.EmailFromContext(ctx), req.ProviderEmail)
	switch {
	case errors.Is(err, ErrProviderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "no provider is registered under that email")
	case errors.Is(err, ErrAlreadyLinked):
		return echo.NewHTTPError(http.StatusConflict, "provider is already linked")
	case err != nil:
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, link)
}

func (h *Handler) Unlink(c echo.Context) error {
	ctx := c.Request().Context()
	removed, err := h.svc.UnlinkProvider(ctx, auth.EmailFromContext(ctx), c.Param("providerId"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"removed": removed})
}

func (h *Handler) ListLinks(c echo.Context) error {
	ctx := c.Request().Context()
	links, err := h.svc.ListLinkedProviders(ctx, auth.EmailFromContext(ctx))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, links)
}

func (h *Handler) ListPatients(c echo.Context) error {
	ctx := c.Request().Context()
	links, err := h.svc.ListLinkedPatients(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(links, pagination.FromContext(c)))
}

func (h *Handler) GetProfile(c echo.Context) error {
	p, err := h.svc.Profile(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

type profileRequest struct {
	DisplayName string `json:"display_name"`
	Specialty   string `json:"specialty"`
}

// SaveProfile takes id, email and role from the verified token; the body
// only carries presentation fields.
func (h *Handler) SaveProfile(c echo.Context) error {
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	id := auth.IdentityFromContext(c.Request().Context())
	p := &Profile{
		ID:          id.UserID,
		Email:       id.Email,
		Role:        primaryRole(id),
		DisplayName: req.DisplayName,
		Specialty:   req.Specialty,
	}
	saved, err := h.svc.SaveProfile(c.Request().Context(), p)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, saved)
}

func primaryRole(id auth.Identity) string {
	for _, r := range []string{RoleProvider, RolePatient, RoleAdmin} {
		if id.HasRole(r) {
			return r
		}
	}
	return RolePatient
}
