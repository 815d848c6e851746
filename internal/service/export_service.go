package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-portal/internal/models"
	"github.com/noah-isme/classroom-portal/pkg/export"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
)

// ExportFormat selects the rendered document type.
type ExportFormat string

// Supported export formats.
const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportColumns is the fixed column order of schedule exports.
var ExportColumns = []string{"Date", "Start", "End", "Subject", "Teacher", "Student", "Status"}

type tableRenderer interface {
	Render(table export.Table) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportQuery selects the calendar range and the format of an export.
type ExportQuery struct {
	CalendarQuery
	Format string `form:"format"`
}

// ExportFile is a rendered schedule.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders the sessions of a calendar range as a downloadable document.
type ExportService struct {
	calendar  *CalendarService
	renderers map[ExportFormat]tableRenderer
	logger    *zap.Logger
}

// NewExportService wires the calendar resolver with the csv and pdf renderers.
func NewExportService(calendar *CalendarService, csv, pdf tableRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		calendar:  calendar,
		renderers: map[ExportFormat]tableRenderer{ExportCSV: csv, ExportPDF: pdf},
		logger:    logger,
	}
}

// Export renders the visible range of the calendar screen. Month exports cover
// the month itself, not the padded grid.
func (s *ExportService) Export(ctx context.Context, principal *models.Principal, query ExportQuery) (*ExportFile, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	format := ExportFormat(query.Format)
	if format == "" {
		format = ExportCSV
	}
	renderer, ok := s.renderers[format]
	if !ok || renderer == nil {
		return nil, appErrors.Field("format", "format must be csv or pdf")
	}

	mode, pivot, _, err := s.calendar.Resolve(query.CalendarQuery)
	if err != nil {
		return nil, err
	}
	rng := s.calendar.navigator.Range(mode, pivot)
	sessions, err := s.calendar.sessions.ListRange(ctx, principal, rng)
	if err != nil {
		return nil, err
	}

	table := s.Table(mode, rng, sessions)
	body, err := renderer.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Debug("schedule exported",
		zap.String("user_id", principal.UserID),
		zap.String("format", string(format)),
		zap.Int("rows", len(table.Rows)))
	return &ExportFile{
		Filename:    fmt.Sprintf("schedule-%s-%s.%s", mode, rng.Start.Format(models.DateLayout), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

// Table lays the sessions out in start order using the viewer time zone.
func (s *ExportService) Table(mode models.ViewMode, rng models.DateRange, sessions []models.Session) export.Table {
	loc := s.calendar.navigator.loc
	sorted := append([]models.Session(nil), sessions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})
	rows := make([][]string, 0, len(sorted))
	for _, session := range sorted {
		start := session.StartTime.In(loc)
		rows = append(rows, []string{
			start.Format(models.DateLayout),
			start.Format(models.SlotTimeLayout),
			session.EndTime.In(loc).Format(models.SlotTimeLayout),
			refLabel(session.Subject),
			refLabel(session.Teacher),
			refLabel(session.Student),
			string(session.Status),
		})
	}
	return export.Table{
		Title:   "Schedule: " + s.calendar.title(mode, rng),
		Columns: ExportColumns,
		Rows:    rows,
	}
}

func refLabel(ref models.Ref) string {
	if ref.Name != "" {
		return ref.Name
	}
	return ref.ID
}
