package account

import (
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

// RegisterRoutes mounts POST /delete-account on a group that already
// requires a bearer token.
func (h *Handler) RegisterRoutes(root *echo.Group) {
	root.POST("/delete-account", h.DeleteAccount)
}

type deleteRequest struct {
	UserID string `json:"userId"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) DeleteAccount(c echo.Context) error {
	var req deleteRequest
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "userId is required"})
	}
	ctx := c.Request().Context()
	caller := auth.IdentityFromContext(ctx)
	if caller.UserID == "" {
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "missing bearer credential"})
	}
	if caller.UserID != req.UserID && !caller.HasRole(auth.RoleAdmin) {
		return c.JSON(http.StatusForbidden, errorBody{Error: "cannot delete another user's account"})
	}

	email := ""
	if caller.UserID == req.UserID {
		email = caller.Email
	}
	if err := h.svc.Delete(ctx, req.UserID, email); err != nil {
		status := apperr.Status(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			msg = "account deletion failed"
		}
		return c.JSON(status, errorBody{Error: msg})
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
