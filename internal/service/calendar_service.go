package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-portal/internal/models"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
)

// DefaultMonthInlineLimit is the number of sessions shown inside a month cell.
const DefaultMonthInlineLimit = 3

const hourLabelLayout = "3 PM"

// CalendarNavigator turns a view mode and pivot date into visible ranges.
// It holds no state; the same pivot always yields the same range.
type CalendarNavigator struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendarNavigator constructs a navigator for the viewer time zone.
func NewCalendarNavigator(loc *time.Location) *CalendarNavigator {
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarNavigator{loc: loc, now: time.Now}
}

// Today returns the viewer's current date at midnight.
func (n *CalendarNavigator) Today() time.Time {
	return models.DateOf(n.now(), n.loc)
}

// Navigate moves the pivot according to action.
func (n *CalendarNavigator) Navigate(mode models.ViewMode, pivot time.Time, action models.NavAction) time.Time {
	pivot = models.DateOf(pivot, n.loc)
	step := 1
	switch action {
	case models.NavToday:
		return n.Today()
	case models.NavPrevious:
		step = -1
	case models.NavNext:
	default:
		return pivot
	}
	switch mode {
	case models.ViewWeek:
		return pivot.AddDate(0, 0, 7*step)
	case models.ViewDay:
		return pivot.AddDate(0, 0, step)
	default:
		// Anchor on the first of the month so Jan 31 + 1 month stays in February.
		first := time.Date(pivot.Year(), pivot.Month(), 1, 0, 0, 0, 0, n.loc)
		return first.AddDate(0, step, 0)
	}
}

// Range returns the visible range for the mode around pivot.
func (n *CalendarNavigator) Range(mode models.ViewMode, pivot time.Time) models.DateRange {
	pivot = models.DateOf(pivot, n.loc)
	switch mode {
	case models.ViewWeek:
		start := pivot.AddDate(0, 0, -int(pivot.Weekday()))
		return models.DateRange{Start: start, End: start.AddDate(0, 0, 7)}
	case models.ViewDay:
		return models.DateRange{Start: pivot, End: pivot.AddDate(0, 0, 1)}
	default:
		first := time.Date(pivot.Year(), pivot.Month(), 1, 0, 0, 0, 0, n.loc)
		return models.DateRange{Start: first, End: first.AddDate(0, 1, 0)}
	}
}

// GridRange pads a month range out to whole Sunday-start weeks.
func (n *CalendarNavigator) GridRange(month models.DateRange) models.DateRange {
	start := month.Start.AddDate(0, 0, -int(month.Start.Weekday()))
	last := month.End.AddDate(0, 0, -1)
	end := last.AddDate(0, 0, 7-int(last.Weekday()))
	return models.DateRange{Start: start, End: end}
}

type rangeLister interface {
	ListRange(ctx context.Context, principal *models.Principal, rng models.DateRange) ([]models.Session, error)
}

// CalendarQuery selects a calendar screen.
type CalendarQuery struct {
	View string `form:"view"`
	Date string `form:"date"`
	Nav  string `form:"nav"`
}

// CalendarService composes calendar screens from the caller's sessions.
type CalendarService struct {
	sessions    rangeLister
	navigator   *CalendarNavigator
	inlineLimit int
	logger      *zap.Logger
}

// NewCalendarService constructs the calendar composer.
func NewCalendarService(sessions rangeLister, navigator *CalendarNavigator, inlineLimit int, logger *zap.Logger) *CalendarService {
	if inlineLimit <= 0 {
		inlineLimit = DefaultMonthInlineLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{sessions: sessions, navigator: navigator, inlineLimit: inlineLimit, logger: logger}
}

// Navigator exposes the range arithmetic.
func (s *CalendarService) Navigator() *CalendarNavigator {
	return s.navigator
}

// Resolve parses the query into a mode, pivot and the range to fetch.
func (s *CalendarService) Resolve(query CalendarQuery) (models.ViewMode, time.Time, models.DateRange, error) {
	mode := models.ParseViewMode(query.View)
	pivot := s.navigator.Today()
	if query.Date != "" {
		parsed, err := time.ParseInLocation(models.DateLayout, query.Date, s.navigator.loc)
		if err != nil {
			return "", time.Time{}, models.DateRange{}, appErrors.Field("date", "date must use the YYYY-MM-DD format")
		}
		pivot = parsed
	}
	if query.Nav != "" {
		pivot = s.navigator.Navigate(mode, pivot, models.NavAction(query.Nav))
	}
	rng := s.navigator.Range(mode, pivot)
	if mode == models.ViewMonth {
		rng = s.navigator.GridRange(rng)
	}
	return mode, pivot, rng, nil
}

// View fetches the visible sessions and composes the screen.
func (s *CalendarService) View(ctx context.Context, principal *models.Principal, query CalendarQuery) (*models.CalendarView, error) {
	mode, pivot, rng, err := s.Resolve(query)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListRange(ctx, principal, rng)
	if err != nil {
		return nil, err
	}
	view := s.Compose(mode, pivot, sessions)
	return &view, nil
}

// Day lists every session on one date.
func (s *CalendarService) Day(ctx context.Context, principal *models.Principal, date string) (*models.DayDetail, error) {
	day, err := time.ParseInLocation(models.DateLayout, date, s.navigator.loc)
	if err != nil {
		return nil, appErrors.Field("date", "date must use the YYYY-MM-DD format")
	}
	rng := s.navigator.Range(models.ViewDay, day)
	sessions, err := s.sessions.ListRange(ctx, principal, rng)
	if err != nil {
		return nil, err
	}
	detail := s.ComposeDay(day, sessions)
	return &detail, nil
}

// Compose buckets sessions into the screen for mode around pivot. It is pure.
func (s *CalendarService) Compose(mode models.ViewMode, pivot time.Time, sessions []models.Session) models.CalendarView {
	loc := s.navigator.loc
	pivot = models.DateOf(pivot, loc)
	rng := s.navigator.Range(mode, pivot)
	byDay := s.groupByDay(sessions)

	view := models.CalendarView{
		Mode:  mode,
		Pivot: pivot.Format(models.DateLayout),
		Range: rng,
		Title: s.title(mode, rng),
	}

	if mode == models.ViewMonth {
		grid := s.navigator.GridRange(rng)
		var week []models.DayCell
		for d := grid.Start; d.Before(grid.End); d = d.AddDate(0, 0, 1) {
			cell := s.monthCell(d, byDay[dayKey(d)])
			cell.InMonth = rng.Contains(d)
			if cell.InMonth {
				view.Total += cell.Total
			}
			week = append(week, cell)
			if len(week) == 7 {
				view.Weeks = append(view.Weeks, week)
				week = nil
			}
		}
		return view
	}

	for d := rng.Start; d.Before(rng.End); d = d.AddDate(0, 0, 1) {
		column := s.dayColumn(d, byDay[dayKey(d)])
		view.Total += column.Total
		view.Days = append(view.Days, column)
	}
	return view
}

// ComposeDay builds the full listing behind a "+N more" affordance.
func (s *CalendarService) ComposeDay(day time.Time, sessions []models.Session) models.DayDetail {
	day = models.DateOf(day, s.navigator.loc)
	views := s.groupByDay(sessions)[dayKey(day)]
	if views == nil {
		views = []models.SessionView{}
	}
	return models.DayDetail{Date: day.Format(models.DateLayout), Sessions: views, Count: len(views)}
}

func (s *CalendarService) monthCell(day time.Time, views []models.SessionView) models.DayCell {
	cell := models.DayCell{
		Date:     day.Format(models.DateLayout),
		IsToday:  day.Equal(s.navigator.Today()),
		Sessions: []models.SessionView{},
		Total:    len(views),
	}
	if len(views) > s.inlineLimit {
		cell.Sessions = append(cell.Sessions, views[:s.inlineLimit]...)
		cell.Overflow = len(views) - s.inlineLimit
		cell.MoreLabel = fmt.Sprintf("+%d more", cell.Overflow)
	} else {
		cell.Sessions = append(cell.Sessions, views...)
	}
	return cell
}

func (s *CalendarService) dayColumn(day time.Time, views []models.SessionView) models.DayColumn {
	column := models.DayColumn{
		Date:    day.Format(models.DateLayout),
		IsToday: day.Equal(s.navigator.Today()),
		Hours:   make([]models.HourCell, 24),
		Total:   len(views),
	}
	for h := range column.Hours {
		label := time.Date(2000, 1, 1, h, 0, 0, 0, time.UTC).Format(hourLabelLayout)
		column.Hours[h] = models.HourCell{Hour: h, Label: label, Sessions: []models.SessionView{}}
	}
	for _, v := range views {
		h := v.StartTime.In(s.navigator.loc).Hour()
		column.Hours[h].Sessions = append(column.Hours[h].Sessions, v)
	}
	return column
}

// groupByDay keys sessions by their local start date, each day sorted by start.
func (s *CalendarService) groupByDay(sessions []models.Session) map[string][]models.SessionView {
	now := s.navigator.now()
	loc := s.navigator.loc
	out := make(map[string][]models.SessionView)
	for _, session := range sessions {
		key := dayKey(session.LocalDate(loc))
		out[key] = append(out[key], models.NewSessionView(session, now, loc))
	}
	for _, views := range out {
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].StartTime.Before(views[j].StartTime)
		})
	}
	return out
}

func (s *CalendarService) title(mode models.ViewMode, rng models.DateRange) string {
	switch mode {
	case models.ViewWeek:
		last := rng.End.AddDate(0, 0, -1)
		return fmt.Sprintf("%s - %s", rng.Start.Format("Jan 2"), last.Format("Jan 2, 2006"))
	case models.ViewDay:
		return rng.Start.Format("Monday, January 2, 2006")
	default:
		return rng.Start.Format("January 2006")
	}
}

func dayKey(t time.Time) string {
	return t.Format(models.DateLayout)
}
