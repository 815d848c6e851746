package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-portal/internal/middleware"
	"github.com/noah-isme/classroom-portal/internal/models"
	"github.com/noah-isme/classroom-portal/pkg/response"
)

type enrollmentSnapshots interface {
	Snapshot(ctx context.Context, principal *models.Principal) (*models.Enrollment, error)
	Invalidate(ctx context.Context, userID string) error
}

// EnrollmentHandler exposes the caller's program enrollment.
type EnrollmentHandler struct {
	enrollments enrollmentSnapshots
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentSnapshots) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Get godoc
// @Summary My enrollment
// @Description Programs, subjects and assigned teachers or students of the caller.
// @Tags Enrollment
// @Produce json
// @Param fresh query bool false "Refetch the snapshot"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /portal/enrollment [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	if middleware.Fresh(c) {
		if err := h.enrollments.Invalidate(c.Request.Context(), principal.UserID); err != nil {
			response.Error(c, err)
			return
		}
	}
	snapshot, err := h.enrollments.Snapshot(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}
