package bundle

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/phr/phr/internal/platform/apperr"
	"github.com/phr/phr/internal/platform/auth"
	"github.com/phr/phr/internal/platform/metrics"
)

type Handler struct {
	asm *Assembler
}

func NewHandler(asm *Assembler) *Handler {
	return &Handler{asm: asm}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/export", auth.RequireRole(auth.RolePatient), auth.RequireEmail())
	g.GET("/bundle", h.BundleJSON)
	g.GET("/bundle/qr", h.BundleQR)
	g.GET("/bundle/pdf", h.BundlePDF)
	g.GET("/records/:id", h.RecordJSON)
}

func noStore(c echo.Context) {
	c.Response().Header().Set("Cache-Control", "no-store")
}

func (h *Handler) BundleJSON(c echo.Context) error {
	ctx := c.Request().Context()
	b, err := h.asm.Assemble(ctx, auth.EmailFromContext(ctx))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	body, err := JSON(b)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	metrics.BundlesAssembled.WithLabelValues("json").Inc()
	noStore(c)
	return c.Blob(http.StatusOK, "application/fhir+json", body)
}

func (h *Handler) BundleQR(c echo.Context) error {
	ctx := c.Request().Context()
	b, err := h.asm.Assemble(ctx, auth.EmailFromContext(ctx))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	png, err := QR(b)
	if errors.Is(err, ErrTooLargeForQR) {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "too many records for a QR code; export as PDF or JSON instead")
	}
	if err != nil {
		return apperr.ToHTTP(err)
	}
	metrics.BundlesAssembled.WithLabelValues("qr").Inc()
	noStore(c)
	return c.Blob(http.StatusOK, "image/png", png)
}

func (h *Handler) BundlePDF(c echo.Context) error {
	ctx := c.Request().Context()
	owner := auth.EmailFromContext(ctx)
	b, err := h.asm.Assemble(ctx, owner)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	body, err := PDFBytes(b, owner)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	metrics.BundlesAssembled.WithLabelValues("pdf").Inc()
	noStore(c)
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="health-summary-%s.pdf"`, b.Timestamp.Format("2006-01-02")))
	return c.Blob(http.StatusOK, "application/pdf", body)
}

func (h *Handler) RecordJSON(c echo.Context) error {
	ctx := c.Request().Context()
	res, err := h.asm.Record(ctx, auth.EmailFromContext(ctx), c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	body, err := RecordJSON(res)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	metrics.BundlesAssembled.WithLabelValues("record").Inc()
	noStore(c)
	return c.Blob(http.StatusOK, "application/fhir+json", body)
}
