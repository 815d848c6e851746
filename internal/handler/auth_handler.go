package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-portal/internal/middleware"
	"github.com/noah-isme/classroom-portal/internal/models"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
	"github.com/noah-isme/classroom-portal/pkg/response"
)

type authSessions interface {
	Hydrate(ctx context.Context, token string, req models.CreateAuthStateRequest) (*models.AuthSessionView, error)
	Current(ctx context.Context, principal *models.Principal) (*models.AuthSessionView, error)
	UpdateTheme(ctx context.Context, principal *models.Principal, req models.UpdateThemeRequest) (*models.AuthSessionView, error)
	Clear(ctx context.Context, stateID string) error
	ConsumeNotices(ctx context.Context, stateID string) ([]models.AuthNotice, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authSessions
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authSessions) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Hydrate godoc
// @Summary Start a portal session
// @Description Verifies the upstream bearer token and persists the application context.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param payload body models.CreateAuthStateRequest false "Initial theme"
// @Success 201 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/session [post]
func (h *AuthHandler) Hydrate(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok || token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing bearer token"))
		return
	}
	var req models.CreateAuthStateRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req, "invalid session payload") {
		return
	}
	view, err := h.service.Hydrate(c.Request.Context(), token, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Session started", view)
}

// Current godoc
// @Summary Current portal session
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/session [get]
func (h *AuthHandler) Current(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	view, err := h.service.Current(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// UpdateTheme godoc
// @Summary Change the persisted theme
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.UpdateThemeRequest true "Theme"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/session/theme [patch]
func (h *AuthHandler) UpdateTheme(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var req models.UpdateThemeRequest
	if !bindJSON(c, &req, "invalid theme payload") {
		return
	}
	view, err := h.service.UpdateTheme(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Logout godoc
// @Summary End the portal session
// @Tags Authentication
// @Success 204
// @Router /auth/session [delete]
func (h *AuthHandler) Logout(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	if principal.StateID != "" {
		if err := h.service.Clear(c.Request.Context(), principal.StateID); err != nil {
			response.Error(c, err)
			return
		}
	}
	response.NoContent(c)
}

// Notices godoc
// @Summary Consume sign-out notices
// @Description Returns and removes notices queued for a cleared session.
// @Tags Authentication
// @Produce json
// @Param X-Portal-State header string true "Cleared state id"
// @Success 200 {object} response.Envelope
// @Router /auth/notices [get]
func (h *AuthHandler) Notices(c *gin.Context) {
	stateID := c.GetHeader(middleware.StateHeader)
	if stateID == "" {
		response.JSON(c, http.StatusOK, []models.AuthNotice{}, nil)
		return
	}
	notices, err := h.service.ConsumeNotices(c.Request.Context(), stateID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if notices == nil {
		notices = []models.AuthNotice{}
	}
	response.JSON(c, http.StatusOK, notices, nil)
}
