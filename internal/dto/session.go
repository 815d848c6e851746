package dto

import (
	"fmt"
	"time"

	"github.com/noah-isme/classroom-portal/internal/models"
)

// Session is the upstream wire shape of a session record.
type Session struct {
	ID          string     `json:"id"`
	MongoID     string     `json:"_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     time.Time  `json:"endTime"`
	Status      string     `json:"status"`
	Student     Ref        `json:"student"`
	Teacher     Ref        `json:"teacher"`
	Subject     Ref        `json:"subject"`
	Program     Ref        `json:"program"`
	ProgramType string     `json:"programType"`
	RequestedBy Ref        `json:"requestedBy"`
	RequestedAt *time.Time `json:"requestedAt"`
	AcceptedBy  Ref        `json:"acceptedBy"`
	AcceptedAt  *time.Time `json:"acceptedAt"`
	RejectedBy  Ref        `json:"rejectedBy"`
	RejectedAt  *time.Time `json:"rejectedAt"`
	CancelledBy Ref        `json:"cancelledBy"`
	CancelledAt *time.Time `json:"cancelledAt"`

	RejectionReason    string `json:"rejectionReason"`
	CancellationReason string `json:"cancellationReason"`
	MeetingLink        string `json:"meetingLink"`
	MeetingPlatform    string `json:"meetingPlatform"`
}

// Model normalizes the wire record and enforces session invariants.
func (s Session) Model() (models.Session, error) {
	status, err := models.ParseSessionStatus(s.Status)
	if err != nil {
		return models.Session{}, err
	}
	session := models.Session{
		ID:                 firstNonEmpty(s.ID, s.MongoID),
		Title:              s.Title,
		Description:        s.Description,
		StartTime:          s.StartTime,
		EndTime:            s.EndTime,
		Status:             status,
		Student:            s.Student.Model(),
		Teacher:            s.Teacher.Model(),
		Subject:            s.Subject.Model(),
		Program:            s.Program.Model(),
		ProgramType:        NormalizeProgramType(s.ProgramType),
		RequestedBy:        s.RequestedBy.ID,
		RequestedAt:        s.RequestedAt,
		AcceptedBy:         s.AcceptedBy.ID,
		AcceptedAt:         s.AcceptedAt,
		RejectedBy:         s.RejectedBy.ID,
		RejectedAt:         s.RejectedAt,
		CancelledBy:        s.CancelledBy.ID,
		CancelledAt:        s.CancelledAt,
		MeetingLink:        s.MeetingLink,
		MeetingPlatform:    s.MeetingPlatform,
	}
	// Reasons only travel with the status they explain.
	if status == models.SessionStatusRejected {
		session.RejectionReason = s.RejectionReason
	}
	if status == models.SessionStatusCancelled {
		session.CancellationReason = s.CancellationReason
	}
	if err := session.Validate(); err != nil {
		return models.Session{}, err
	}
	return session, nil
}

// Sessions converts a list of wire records, failing on the first invalid one.
func Sessions(items []Session) ([]models.Session, error) {
	out := make([]models.Session, 0, len(items))
	for i, item := range items {
		session, err := item.Model()
		if err != nil {
			return nil, fmt.Errorf("session[%d]: %w", i, err)
		}
		out = append(out, session)
	}
	return out, nil
}

// SessionList is the data payload of session listings.
type SessionList struct {
	Sessions   []Session  `json:"sessions"`
	Pagination Pagination `json:"pagination"`
}

// Pagination mirrors the upstream pagination envelope.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// Model converts the pagination envelope.
func (p Pagination) Model() models.Pagination {
	return models.Pagination{
		CurrentPage:  p.CurrentPage,
		TotalPages:   p.TotalPages,
		TotalItems:   p.TotalItems,
		ItemsPerPage: p.ItemsPerPage,
	}
}

// Slot is the upstream wire shape of an available slot.
type Slot struct {
	StartTime          time.Time `json:"startTime"`
	EndTime            time.Time `json:"endTime"`
	FormattedStart     string    `json:"formattedStart"`
	FormattedEnd       string    `json:"formattedEnd"`
	FormattedStartTime string    `json:"formattedStartTime"`
	FormattedEndTime   string    `json:"formattedEndTime"`
}

// Model converts the wire slot; display strings are recomputed by the slot service when missing.
func (s Slot) Model() models.AvailableSlot {
	return models.AvailableSlot{
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		FormattedStart: firstNonEmpty(s.FormattedStart, s.FormattedStartTime),
		FormattedEnd:   firstNonEmpty(s.FormattedEnd, s.FormattedEndTime),
	}
}

// SlotList is the data payload of the availability endpoint.
type SlotList struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}

// RequestSessionBody is posted to /sessions/request.
type RequestSessionBody struct {
	ProgramID string    `json:"programId"`
	SubjectID string    `json:"subjectId"`
	TeacherID string    `json:"teacherId,omitempty"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Title     string    `json:"title,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// AcceptSessionBody is posted to /sessions/:id/accept.
type AcceptSessionBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ReasonBody is posted to /sessions/:id/reject and /sessions/:id/cancel.
type ReasonBody struct {
	Reason string `json:"reason"`
}

// RescheduleBody is posted to /sessions/:id/reschedule.
type RescheduleBody struct {
	NewStartTime time.Time `json:"newStartTime"`
	NewEndTime   time.Time `json:"newEndTime"`
}

// TeacherScheduleBody is posted to /sessions/teacher/schedule.
type TeacherScheduleBody struct {
	StudentID   string    `json:"studentId"`
	ProgramID   string    `json:"programId"`
	SubjectID   string    `json:"subjectId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
}

// NormalizeProgramType accepts the spellings used across API versions.
func NormalizeProgramType(raw string) models.ProgramType {
	switch raw {
	case "focus_one", "focusOne", "focus-one", "FocusOne", "FOCUS_ONE":
		return models.ProgramFocusOne
	case "cohort", "Cohort", "COHORT":
		return models.ProgramCohort
	default:
		return ""
	}
}
