package blobstore

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/labstack/echo/v4"
)

// DownloadHandler serves objects to holders of a signed URL. It needs no
// session; the token in the query string is the credential.
type DownloadHandler struct {
	store  Store
	signer *URLSigner
}

func NewDownloadHandler(store Store, signer *URLSigner) *DownloadHandler {
	return &DownloadHandler{store: store, signer: signer}
}

func (h *DownloadHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/storage/object/*", h.handleDownload)
}

func (h *DownloadHandler) handleDownload(c echo.Context) error {
	raw, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid object path")
	}
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}
	if err := h.signer.Verify(token, raw); err != nil {
		switch {
		case errors.Is(err, ErrInvalidPath):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrPathMismatch):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		default:
			return echo.NewHTTPError(http.StatusUnauthorized, ErrInvalidToken.Error())
		}
	}

	rc, info, err := h.store.Open(c.Request().Context(), raw)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read object")
	}
	defer rc.Close()

	c.Response().Header().Set("Cache-Control", "private, no-store")
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename=%q`, path.Base(info.Path)))
	return c.Stream(http.StatusOK, info.ContentType, rc)
}
