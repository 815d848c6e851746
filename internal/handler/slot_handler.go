package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-portal/internal/middleware"
	"github.com/noah-isme/classroom-portal/internal/models"
	"github.com/noah-isme/classroom-portal/pkg/response"
)

type slotFinder interface {
	Available(ctx context.Context, principal *models.Principal, query models.SlotQuery, fresh bool) (*models.SlotResult, error)
}

type slotListQuery struct {
	ProgramID string `form:"programId"`
	SubjectID string `form:"subjectId"`
	Date      string `form:"date"`
	Duration  int    `form:"duration"`
	Flow      string `form:"flow"`
}

// SlotHandler serves bookable availability.
type SlotHandler struct {
	slots slotFinder
}

// NewSlotHandler constructs the handler.
func NewSlotHandler(slots slotFinder) *SlotHandler {
	return &SlotHandler{slots: slots}
}

// Available godoc
// @Summary List available slots
// @Description Slots of a date that pass the booking rules. An empty list is a normal outcome.
// @Tags Slots
// @Produce json
// @Param programId query string true "Program ID"
// @Param subjectId query string true "Subject ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param duration query int false "Duration in minutes"
// @Param flow query string false "student or teacher"
// @Param fresh query bool false "Bypass the slot cache"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /portal/slots [get]
func (h *SlotHandler) Available(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var query slotListQuery
	if !bindQuery(c, &query, "invalid slot query") {
		return
	}
	flow := models.SlotFlow(query.Flow)
	switch {
	case principal.IsStudent():
		flow = models.SlotFlowStudent
	case flow == "" && principal.IsTeacher():
		flow = models.SlotFlowTeacher
	}
	result, err := h.slots.Available(c.Request.Context(), principal, models.SlotQuery{
		ProgramID:       query.ProgramID,
		SubjectID:       query.SubjectID,
		Date:            query.Date,
		DurationMinutes: query.Duration,
		Flow:            flow,
	}, middleware.Fresh(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}
