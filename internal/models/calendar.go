package models

import "time"

// ViewMode selects the calendar grid granularity.
type ViewMode string

const (
	ViewMonth ViewMode = "month"
	ViewWeek  ViewMode = "week"
	ViewDay   ViewMode = "day"
)

// ParseViewMode defaults unknown values to the month view.
func ParseViewMode(raw string) ViewMode {
	switch ViewMode(raw) {
	case ViewWeek:
		return ViewWeek
	case ViewDay:
		return ViewDay
	default:
		return ViewMonth
	}
}

// NavAction moves the calendar pivot.
type NavAction string

const (
	NavPrevious NavAction = "previous"
	NavNext     NavAction = "next"
	NavToday    NavAction = "today"
)

// DateRange is a half-open interval of whole calendar days [Start, End).
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Days returns the number of calendar days covered.
func (r DateRange) Days() int {
	days := 0
	for d := r.Start; d.Before(r.End); d = d.AddDate(0, 0, 1) {
		days++
	}
	return days
}

// DayCell is one cell of the month grid.
type DayCell struct {
	Date      string        `json:"date"`
	InMonth   bool          `json:"inMonth"`
	IsToday   bool          `json:"isToday"`
	Sessions  []SessionView `json:"sessions"`
	Total     int           `json:"total"`
	Overflow  int           `json:"overflow"`
	MoreLabel string        `json:"moreLabel,omitempty"`
}

// HourCell holds the sessions starting within one hour of a day.
type HourCell struct {
	Hour     int           `json:"hour"`
	Label    string        `json:"label"`
	Sessions []SessionView `json:"sessions"`
}

// DayColumn is one day of a week or day grid.
type DayColumn struct {
	Date    string     `json:"date"`
	IsToday bool       `json:"isToday"`
	Hours   []HourCell `json:"hours"`
	Total   int        `json:"total"`
}

// CalendarView is one composed calendar screen. Month views fill Weeks,
// week and day views fill Days.
type CalendarView struct {
	Mode  ViewMode    `json:"mode"`
	Pivot string      `json:"pivot"`
	Range DateRange   `json:"range"`
	Title string      `json:"title"`
	Weeks [][]DayCell `json:"weeks,omitempty"`
	Days  []DayColumn `json:"days,omitempty"`
	Total int         `json:"total"`
}

// DayDetail lists every session of one day, sorted by start time.
type DayDetail struct {
	Date     string        `json:"date"`
	Sessions []SessionView `json:"sessions"`
	Count    int           `json:"count"`
}
