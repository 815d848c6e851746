package models

import (
	"fmt"
	"time"
)

// SessionStatus represents the lifecycle state of a teaching session.
type SessionStatus string

// Possible session statuses.
const (
	SessionStatusRequested SessionStatus = "requested"
	SessionStatusAccepted  SessionStatus = "accepted"
	SessionStatusRejected  SessionStatus = "rejected"
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusOngoing   SessionStatus = "ongoing"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// DefaultSessionDuration is the length of a student-requested session.
const DefaultSessionDuration = 75 * time.Minute

// ParseSessionStatus validates a raw status value against the closed set.
func ParseSessionStatus(raw string) (SessionStatus, error) {
	switch status := SessionStatus(raw); status {
	case SessionStatusRequested, SessionStatusAccepted, SessionStatusRejected, SessionStatusScheduled,
		SessionStatusOngoing, SessionStatusCompleted, SessionStatusCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("unknown session status %q", raw)
	}
}

// Terminal reports whether no further transitions are permitted.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusRejected, SessionStatusCancelled:
		return true
	default:
		return false
	}
}

// SessionAction names a workflow operation applied to a session.
type SessionAction string

// Workflow operations.
const (
	SessionActionAccept     SessionAction = "accept"
	SessionActionReject     SessionAction = "reject"
	SessionActionCancel     SessionAction = "cancel"
	SessionActionReschedule SessionAction = "reschedule"
)

// Allows reports whether the action is legal from the status.
func (s SessionStatus) Allows(action SessionAction) bool {
	switch action {
	case SessionActionAccept, SessionActionReject:
		return s == SessionStatusRequested
	case SessionActionCancel, SessionActionReschedule:
		return s == SessionStatusRequested || s == SessionStatusScheduled
	default:
		return false
	}
}

// ProgramType distinguishes the two enrollment kinds.
type ProgramType string

// Enrollment program kinds.
const (
	ProgramFocusOne ProgramType = "focus_one"
	ProgramCohort   ProgramType = "cohort"
)

// Ref points at an entity owned by the upstream service.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Session is a bookable or booked teaching appointment.
type Session struct {
	ID          string        `json:"id"`
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Status      SessionStatus `json:"status"`

	Student     Ref         `json:"student"`
	Teacher     Ref         `json:"teacher"`
	Subject     Ref         `json:"subject"`
	Program     Ref         `json:"program"`
	ProgramType ProgramType `json:"programType,omitempty"`

	RequestedBy        string     `json:"requestedBy,omitempty"`
	RequestedAt        *time.Time `json:"requestedAt,omitempty"`
	AcceptedBy         string     `json:"acceptedBy,omitempty"`
	AcceptedAt         *time.Time `json:"acceptedAt,omitempty"`
	RejectedBy         string     `json:"rejectedBy,omitempty"`
	RejectedAt         *time.Time `json:"rejectedAt,omitempty"`
	RejectionReason    string     `json:"rejectionReason,omitempty"`
	CancelledBy        string     `json:"cancelledBy,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CancellationReason string     `json:"cancellationReason,omitempty"`

	MeetingLink     string `json:"meetingLink,omitempty"`
	MeetingPlatform string `json:"meetingPlatform,omitempty"`
}

// Validate enforces record-level invariants.
func (s Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if !s.EndTime.After(s.StartTime) {
		return fmt.Errorf("session %s: end time %s must be after start time %s", s.ID, s.EndTime.Format(time.RFC3339), s.StartTime.Format(time.RFC3339))
	}
	if _, err := ParseSessionStatus(string(s.Status)); err != nil {
		return err
	}
	return nil
}

// Duration returns the length of the session window.
func (s Session) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// IsParticipant reports whether the user is the requesting student or the assigned teacher.
func (s Session) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return userID == s.Student.ID || userID == s.Teacher.ID
}

// LocalDate returns the calendar date of the session start in loc.
func (s Session) LocalDate(loc *time.Location) time.Time {
	return DateOf(s.StartTime, loc)
}

// IsJoinable reports whether the meeting link may be used right now: the session
// must be scheduled or ongoing and fall on the viewer's current date.
func (s Session) IsJoinable(now time.Time, loc *time.Location) bool {
	if s.MeetingLink == "" {
		return false
	}
	if s.Status != SessionStatusScheduled && s.Status != SessionStatusOngoing {
		return false
	}
	return s.LocalDate(loc).Equal(DateOf(now, loc))
}

// SessionView decorates a session with viewer-dependent flags.
type SessionView struct {
	Session
	Joinable bool `json:"joinable"`
}

// NewSessionView evaluates the viewer-dependent flags for a session.
func NewSessionView(s Session, now time.Time, loc *time.Location) SessionView {
	return SessionView{Session: s, Joinable: s.IsJoinable(now, loc)}
}

// SessionFilter narrows down session listings.
type SessionFilter struct {
	ProgramID string
	SubjectID string
	Date      string
	StartDate string
	EndDate   string
	Status    SessionStatus
	Search    string
	Page      int
	Limit     int
}

// SessionPage is one page of sessions.
type SessionPage struct {
	Sessions   []Session  `json:"sessions"`
	Pagination Pagination `json:"pagination"`
}

// DateOf truncates t to midnight of its calendar date in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	year, month, day := local.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
