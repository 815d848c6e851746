package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-portal/internal/middleware"
	"github.com/noah-isme/classroom-portal/internal/models"
	"github.com/noah-isme/classroom-portal/internal/service"
	"github.com/noah-isme/classroom-portal/pkg/response"
)

type sessionQueries interface {
	List(ctx context.Context, principal *models.Principal, filter models.SessionFilter) (*service.SessionList, error)
	TeacherRequests(ctx context.Context, principal *models.Principal, filter models.SessionFilter) (*service.SessionList, error)
	Get(ctx context.Context, principal *models.Principal, id string, fresh bool) (*models.Session, error)
	View(session models.Session) models.SessionView
}

type sessionSearcher interface {
	Search(ctx context.Context, principal *models.Principal, scope service.SearchScope, filter models.SessionFilter) (*service.SessionList, error)
}

type bookingActions interface {
	Request(ctx context.Context, principal *models.Principal, input service.RequestSessionInput) (*models.Session, error)
	TeacherSchedule(ctx context.Context, principal *models.Principal, input service.TeacherScheduleInput) (*models.Session, error)
	Accept(ctx context.Context, principal *models.Principal, sessionID string, input service.AcceptSessionInput) (*models.Session, error)
	Reject(ctx context.Context, principal *models.Principal, sessionID string, input service.ReasonInput) (*models.Session, error)
	Cancel(ctx context.Context, principal *models.Principal, sessionID string, input service.ReasonInput) (*models.Session, error)
	Reschedule(ctx context.Context, principal *models.Principal, sessionID string, input service.RescheduleInput) (*models.Session, error)
}

type sessionListQuery struct {
	ProgramID string `form:"programId"`
	SubjectID string `form:"subjectId"`
	Date      string `form:"date"`
	StartDate string `form:"startDate"`
	EndDate   string `form:"endDate"`
	Status    string `form:"status"`
	Search    string `form:"search"`
	Page      int    `form:"page"`
	Limit     int    `form:"limit"`
}

func (q sessionListQuery) filter() models.SessionFilter {
	return models.SessionFilter{
		ProgramID: q.ProgramID,
		SubjectID: q.SubjectID,
		Date:      q.Date,
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
		Status:    models.SessionStatus(q.Status),
		Search:    strings.TrimSpace(q.Search),
		Page:      q.Page,
		Limit:     q.Limit,
	}
}

// actionRequest is the body of accept, reject, cancel and reschedule.
type actionRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Reason      string    `json:"reason"`
	Date        string    `json:"date"`
	StartTime   time.Time `json:"startTime"`
}

// SessionHandler exposes session listings and the booking workflow.
type SessionHandler struct {
	queries sessionQueries
	search  sessionSearcher
	booking bookingActions
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(queries sessionQueries, search sessionSearcher, booking bookingActions) *SessionHandler {
	return &SessionHandler{queries: queries, search: search, booking: booking}
}

// List godoc
// @Summary List my sessions
// @Description Sessions of the caller. A non-empty search is debounced per user.
// @Tags Sessions
// @Produce json
// @Param status query string false "Session status"
// @Param programId query string false "Program filter"
// @Param subjectId query string false "Subject filter"
// @Param date query string false "Exact date (YYYY-MM-DD)"
// @Param startDate query string false "Range start (YYYY-MM-DD)"
// @Param endDate query string false "Range end (YYYY-MM-DD)"
// @Param search query string false "Free text search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /portal/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	h.list(c, service.SearchSessions)
}

// TeacherRequests godoc
// @Summary List requests addressed to me
// @Tags Sessions
// @Produce json
// @Param status query string false "Session status"
// @Param search query string false "Free text search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /portal/teacher/requests [get]
func (h *SessionHandler) TeacherRequests(c *gin.Context) {
	h.list(c, service.SearchTeacherRequests)
}

func (h *SessionHandler) list(c *gin.Context, scope service.SearchScope) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var query sessionListQuery
	if !bindQuery(c, &query, "invalid session filter") {
		return
	}
	filter := query.filter()

	var (
		result *service.SessionList
		err    error
	)
	switch {
	case filter.Search != "" && h.search != nil:
		result, err = h.search.Search(c.Request.Context(), principal, scope, filter)
	case scope == service.SearchTeacherRequests:
		result, err = h.queries.TeacherRequests(c.Request.Context(), principal, filter)
	default:
		result, err = h.queries.List(c.Request.Context(), principal, filter)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := result.Pagination
	response.JSON(c, http.StatusOK, result.Sessions, &pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get one session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param fresh query bool false "Bypass the query cache"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /portal/sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	session, err := h.queries.Get(c.Request.Context(), principal, c.Param("id"), middleware.Fresh(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.queries.View(*session), nil, middleware.ExtractMeta(c))
}

// Request godoc
// @Summary Request a session
// @Description Books one of the currently available slots for the calling student.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body service.RequestSessionInput true "Requested slot"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /portal/sessions [post]
func (h *SessionHandler) Request(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var input service.RequestSessionInput
	if !bindJSON(c, &input, "invalid session request") {
		return
	}
	session, err := h.booking.Request(c.Request.Context(), principal, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Session requested", h.queries.View(*session))
}

// TeacherSchedule godoc
// @Summary Schedule a session directly
// @Description Creates a scheduled session; without times it starts now.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body service.TeacherScheduleInput true "Session details"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /portal/teacher/schedule [post]
func (h *SessionHandler) TeacherSchedule(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var input service.TeacherScheduleInput
	if !bindJSON(c, &input, "invalid schedule") {
		return
	}
	session, err := h.booking.TeacherSchedule(c.Request.Context(), principal, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Session scheduled", h.queries.View(*session))
}

// Accept godoc
// @Summary Accept a session request
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body actionRequest true "title and description"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /portal/sessions/{id}/accept [post]
func (h *SessionHandler) Accept(c *gin.Context) {
	h.transition(c, models.SessionActionAccept, "Session accepted")
}

// Reject godoc
// @Summary Reject a session request
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body actionRequest true "reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /portal/sessions/{id}/reject [post]
func (h *SessionHandler) Reject(c *gin.Context) {
	h.transition(c, models.SessionActionReject, "Session rejected")
}

// Cancel godoc
// @Summary Cancel a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body actionRequest true "reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /portal/sessions/{id}/cancel [post]
func (h *SessionHandler) Cancel(c *gin.Context) {
	h.transition(c, models.SessionActionCancel, "Session cancelled")
}

// Reschedule godoc
// @Summary Reschedule a session
// @Description The new slot must appear in freshly fetched availability for the date.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body actionRequest true "date and startTime"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /portal/sessions/{id}/reschedule [post]
func (h *SessionHandler) Reschedule(c *gin.Context) {
	h.transition(c, models.SessionActionReschedule, "Session rescheduled")
}

// transition runs one workflow action through a booking dialog so the
// response carries the dialog state: open with its payload on failure, closed on success.
func (h *SessionHandler) transition(c *gin.Context, action models.SessionAction, message string) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var body actionRequest
	if !bindJSON(c, &body, "invalid "+string(action)+" payload") {
		return
	}
	state, _ := service.DialogStateFor(action)
	dialog := service.NewBookingDialog(h.booking, principal)
	if err := dialog.Open(state, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	if err := dialog.Edit(service.DialogForm{
		Title:       body.Title,
		Description: body.Description,
		Reason:      body.Reason,
		Date:        body.Date,
		StartTime:   body.StartTime,
	}); err != nil {
		response.Error(c, err)
		return
	}

	session, err := dialog.Submit(c.Request.Context())
	middleware.SetMeta(c, "dialog", dialog.Snapshot())
	if err != nil {
		response.ErrorWithMeta(c, err, middleware.ExtractMeta(c))
		return
	}
	response.Message(c, http.StatusOK, message, h.queries.View(*session), nil, middleware.ExtractMeta(c))
}
