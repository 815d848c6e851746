package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-portal/internal/models"
	"github.com/noah-isme/classroom-portal/internal/service"
	"github.com/noah-isme/classroom-portal/pkg/response"
)

type calendarComposer interface {
	View(ctx context.Context, principal *models.Principal, query service.CalendarQuery) (*models.CalendarView, error)
	Day(ctx context.Context, principal *models.Principal, date string) (*models.DayDetail, error)
}

type scheduleExporter interface {
	Export(ctx context.Context, principal *models.Principal, query service.ExportQuery) (*service.ExportFile, error)
}

// CalendarHandler serves calendar screens and schedule exports.
type CalendarHandler struct {
	calendar calendarComposer
	exports  scheduleExporter
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(calendar calendarComposer, exports scheduleExporter) *CalendarHandler {
	return &CalendarHandler{calendar: calendar, exports: exports}
}

// View godoc
// @Summary Calendar screen
// @Description Month, week or day grid around a pivot date.
// @Tags Calendar
// @Produce json
// @Param view query string false "month, week or day"
// @Param date query string false "Pivot date (YYYY-MM-DD)"
// @Param nav query string false "previous, next or today"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /portal/calendar [get]
func (h *CalendarHandler) View(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var query service.CalendarQuery
	if !bindQuery(c, &query, "invalid calendar query") {
		return
	}
	view, err := h.calendar.View(c.Request.Context(), principal, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Day godoc
// @Summary Sessions of one day
// @Tags Calendar
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /portal/calendar/days/{date} [get]
func (h *CalendarHandler) Day(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	detail, err := h.calendar.Day(c.Request.Context(), principal, c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Export godoc
// @Summary Export the visible schedule
// @Tags Calendar
// @Produce text/csv
// @Produce application/pdf
// @Param view query string false "month, week or day"
// @Param date query string false "Pivot date (YYYY-MM-DD)"
// @Param format query string true "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /portal/calendar/export [get]
func (h *CalendarHandler) Export(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var query service.ExportQuery
	if !bindQuery(c, &query, "invalid export query") {
		return
	}
	file, err := h.exports.Export(c.Request.Context(), principal, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Body)
}
