package documents

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/phr/phr/internal/platform/apperr"
	"github.com/phr/phr/internal/platform/auth"
	"github.com/phr/phr/pkg/pagination"
)

// LinkChecker reports whether a provider may act for a patient.
type LinkChecker interface {
	IsLinked(ctx context.Context, patient, providerID string) (bool, error)
}

type Handler struct {
	svc   *Service
	links LinkChecker
}

// NewHandler builds the document handler. With a nil links checker only
// patients may submit parsed records for themselves.
func NewHandler(svc *Service, links LinkChecker) *Handler {
	return &Handler{svc: svc, links: links}
}

// RegisterRoutes mounts the patient document API on api and the parser
// ingestion endpoint on root.
func (h *Handler) RegisterRoutes(api, root *echo.Group) {
	g := api.Group("/documents", auth.RequireRole(auth.RolePatient), auth.RequireEmail())
	g.POST("", h.Upload)
	g.GET("", h.List)
	g.GET("/:id/url", h.PreviewURL)
	g.DELETE("/:id", h.Delete)

	root.POST("/parse-record", h.ParseRecord, auth.RequireEmail())
}

func (h *Handler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	docType := c.FormValue("document_type")
	if docType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "document_type is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer f.Close()

	ctx := c.Request().Context()
	doc, err := h.svc.Upload(ctx, UploadInput{
		Owner:        auth.EmailFromContext(ctx),
		FileName:     fh.Filename,
		DocumentType: docType,
		ProviderName: c.FormValue("provider_name"),
	}, f)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	docs, err := h.svc.List(ctx, auth.EmailFromContext(ctx))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(docs, pagination.FromContext(c)))
}

func (h *Handler) PreviewURL(c echo.Context) error {
	ctx := c.Request().Context()
	u, err := h.svc.PreviewURL(ctx, auth.EmailFromContext(ctx), c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.svc.Delete(ctx, auth.EmailFromContext(ctx), c.Param("id")); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type errorBody struct {
	Error string `json:"error"`
}

func parseError(c echo.Context, err error) error {
	status := apperr.Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "record parsing failed"
	}
	return c.JSON(status, errorBody{Error: msg})
}

// ParseRecord ingests a parsed document for targetPatientEmail. The caller
// is either that patient or a provider linked to them; a provider may only
// name itself as userEmail.
func (h *Handler) ParseRecord(c echo.Context) error {
	var rec ParsedRecord
	if err := c.Bind(&rec); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}
	target := strings.ToLower(strings.TrimSpace(rec.TargetPatientEmail))
	if target == "" {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "targetPatientEmail is required"})
	}
	rec.TargetPatientEmail = target

	ctx := c.Request().Context()
	caller := auth.IdentityFromContext(ctx)
	if caller.Email != target {
		if !caller.HasRole(auth.RoleProvider) || h.links == nil {
			return c.JSON(http.StatusForbidden, errorBody{Error: "not permitted to upload for this patient"})
		}
		linked, err := h.links.IsLinked(ctx, target, caller.UserID)
		if err != nil {
			return parseError(c, err)
		}
		if !linked {
			return c.JSON(http.StatusForbidden, errorBody{Error: "not permitted to upload for this patient"})
		}
		if u := strings.ToLower(strings.TrimSpace(rec.UserEmail)); u != "" && u != caller.Email {
			return c.JSON(http.StatusForbidden, errorBody{Error: "userEmail must be the uploading provider"})
		}
	}

	if _, err := h.svc.IngestParsed(ctx, &rec); err != nil {
		return parseError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
