package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-portal/internal/dto"
	"github.com/noah-isme/classroom-portal/internal/models"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
)

const actionRequest = "request"
const actionSchedule = "schedule"

type sessionWriter interface {
	Request(ctx context.Context, token string, body dto.RequestSessionBody) (*models.Session, error)
	Accept(ctx context.Context, token, id string, body dto.AcceptSessionBody) (*models.Session, error)
	Reject(ctx context.Context, token, id string, body dto.ReasonBody) (*models.Session, error)
	Cancel(ctx context.Context, token, id string, body dto.ReasonBody) (*models.Session, error)
	Reschedule(ctx context.Context, token, id string, body dto.RescheduleBody) (*models.Session, error)
	Schedule(ctx context.Context, token string, body dto.TeacherScheduleBody) (*models.Session, error)
}

type sessionSnapshots interface {
	Get(ctx context.Context, principal *models.Principal, id string, fresh bool) (*models.Session, error)
}

type slotProvider interface {
	Available(ctx context.Context, principal *models.Principal, query models.SlotQuery, fresh bool) (*models.SlotResult, error)
	Location() *time.Location
	SessionDuration() time.Duration
}

// RequestSessionInput is a student's booking request for one available slot.
type RequestSessionInput struct {
	ProgramID string    `json:"programId" validate:"required"`
	SubjectID string    `json:"subjectId" validate:"required"`
	Date      string    `json:"date" validate:"required"`
	StartTime time.Time `json:"startTime"`
	Title     string    `json:"title" validate:"omitempty,max=200"`
	Notes     string    `json:"notes" validate:"omitempty,max=1000"`
}

// AcceptSessionInput carries the details of an accepted session.
type AcceptSessionInput struct {
	Title       string `json:"title" validate:"omitempty,max=200"`
	Description string `json:"description" validate:"required,min=10,max=1000"`
}

// ReasonInput explains a rejection or cancellation.
type ReasonInput struct {
	Reason string `json:"reason" validate:"required,min=10,max=500"`
}

// RescheduleInput selects a slot from the fresh availability of a new date.
type RescheduleInput struct {
	Date      string    `json:"date" validate:"required"`
	StartTime time.Time `json:"startTime"`
}

// TeacherScheduleInput creates a scheduled session directly.
type TeacherScheduleInput struct {
	StudentID   string     `json:"studentId" validate:"required"`
	ProgramID   string     `json:"programId" validate:"required"`
	SubjectID   string     `json:"subjectId" validate:"required"`
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"omitempty,max=1000"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
}

// inflightGuard rejects a second mutation for a key while one is running.
type inflightGuard struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInflightGuard() *inflightGuard {
	return &inflightGuard{keys: make(map[string]struct{})}
}

func (g *inflightGuard) acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.keys[key]; busy {
		return false
	}
	g.keys[key] = struct{}{}
	return true
}

func (g *inflightGuard) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
}

// BookingService runs the session workflow: local checks first, then exactly
// one upstream mutation, then cache invalidation.
type BookingService struct {
	writer     sessionWriter
	snapshots  sessionSnapshots
	slots      slotProvider
	enrollment enrollmentReader
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	guard      *inflightGuard
	logger     *zap.Logger
	now        func() time.Time
}

// NewBookingService constructs the booking controller.
func NewBookingService(writer sessionWriter, snapshots sessionSnapshots, slots slotProvider, enrollment enrollmentReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = appErrors.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		writer:     writer,
		snapshots:  snapshots,
		slots:      slots,
		enrollment: enrollment,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		guard:      newInflightGuard(),
		logger:     logger,
		now:        time.Now,
	}
}

// Request books one of the currently available slots for the calling student.
func (s *BookingService) Request(ctx context.Context, principal *models.Principal, input RequestSessionInput) (*models.Session, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !principal.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can request sessions")
	}
	input.Title = strings.TrimSpace(input.Title)
	input.Notes = strings.TrimSpace(input.Notes)
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.FromValidation(err, "invalid session request")
	}
	if input.StartTime.IsZero() {
		return nil, appErrors.Field("startTime", "select one of the available time slots")
	}

	query := models.SlotQuery{
		ProgramID:       input.ProgramID,
		SubjectID:       input.SubjectID,
		Date:            input.Date,
		DurationMinutes: int(s.slots.SessionDuration() / time.Minute),
		Flow:            models.SlotFlowStudent,
	}
	available, err := s.slots.Available(ctx, principal, query, false)
	if err != nil {
		return nil, err
	}
	slot, ok := available.Find(input.StartTime)
	if !ok {
		return nil, appErrors.Field("startTime", "the selected time slot is no longer available")
	}

	enrollment, err := s.enrollment.Snapshot(ctx, principal)
	if err != nil {
		return nil, err
	}
	assignment, ok := enrollment.Assignment(input.ProgramID, input.SubjectID)
	if !ok {
		return nil, appErrors.Field("subjectId", "you are not enrolled for this subject")
	}

	body := dto.RequestSessionBody{
		ProgramID: input.ProgramID,
		SubjectID: input.SubjectID,
		TeacherID: assignment.TeacherID,
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
		Title:     input.Title,
		Notes:     input.Notes,
	}
	return s.mutate(ctx, actionRequest, actionRequest+":"+principal.UserID, "", func() (*models.Session, error) {
		return s.writer.Request(ctx, principal.Token, body)
	})
}

// Accept accepts a requested session as its assigned teacher.
func (s *BookingService) Accept(ctx context.Context, principal *models.Principal, sessionID string, input AcceptSessionInput) (*models.Session, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.FromValidation(err, "invalid acceptance")
	}
	session, err := s.precheck(ctx, principal, sessionID, models.SessionActionAccept)
	if err != nil {
		return nil, err
	}
	body := dto.AcceptSessionBody{Title: input.Title, Description: input.Description}
	return s.mutate(ctx, string(models.SessionActionAccept), session.ID, session.ID, func() (*models.Session, error) {
		return s.writer.Accept(ctx, principal.Token, session.ID, body)
	})
}

// Reject rejects a requested session as its assigned teacher.
func (s *BookingService) Reject(ctx context.Context, principal *models.Principal, sessionID string, input ReasonInput) (*models.Session, error) {
	reason, err := s.reason(input)
	if err != nil {
		return nil, err
	}
	session, err := s.precheck(ctx, principal, sessionID, models.SessionActionReject)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, string(models.SessionActionReject), session.ID, session.ID, func() (*models.Session, error) {
		return s.writer.Reject(ctx, principal.Token, session.ID, dto.ReasonBody{Reason: reason})
	})
}

// Cancel cancels a requested or scheduled session as a participant.
func (s *BookingService) Cancel(ctx context.Context, principal *models.Principal, sessionID string, input ReasonInput) (*models.Session, error) {
	reason, err := s.reason(input)
	if err != nil {
		return nil, err
	}
	session, err := s.precheck(ctx, principal, sessionID, models.SessionActionCancel)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, string(models.SessionActionCancel), session.ID, session.ID, func() (*models.Session, error) {
		return s.writer.Cancel(ctx, principal.Token, session.ID, dto.ReasonBody{Reason: reason})
	})
}

// Reschedule moves a session to a slot picked from freshly fetched availability.
func (s *BookingService) Reschedule(ctx context.Context, principal *models.Principal, sessionID string, input RescheduleInput) (*models.Session, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.FromValidation(err, "invalid reschedule")
	}
	if input.StartTime.IsZero() {
		return nil, appErrors.Field("startTime", "select one of the available time slots")
	}
	session, err := s.precheck(ctx, principal, sessionID, models.SessionActionReschedule)
	if err != nil {
		return nil, err
	}

	flow := models.SlotFlowStudent
	if principal.IsTeacher() {
		flow = models.SlotFlowTeacher
	}
	duration := session.Duration()
	if duration <= 0 {
		duration = s.slots.SessionDuration()
	}
	available, err := s.slots.Available(ctx, principal, models.SlotQuery{
		ProgramID:       session.Program.ID,
		SubjectID:       session.Subject.ID,
		Date:            input.Date,
		DurationMinutes: int(duration / time.Minute),
		Flow:            flow,
	}, true)
	if err != nil {
		return nil, err
	}
	slot, ok := available.Find(input.StartTime)
	if !ok {
		return nil, appErrors.Field("startTime", "select one of the available time slots")
	}

	body := dto.RescheduleBody{NewStartTime: slot.StartTime, NewEndTime: slot.EndTime}
	return s.mutate(ctx, string(models.SessionActionReschedule), session.ID, session.ID, func() (*models.Session, error) {
		return s.writer.Reschedule(ctx, principal.Token, session.ID, body)
	})
}

// TeacherSchedule creates an already scheduled session. Without explicit times
// it starts now and lasts the default session duration.
func (s *BookingService) TeacherSchedule(ctx context.Context, principal *models.Principal, input TeacherScheduleInput) (*models.Session, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !principal.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can schedule sessions directly")
	}
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.FromValidation(err, "invalid schedule")
	}

	start := s.now().Truncate(time.Minute)
	if input.StartTime != nil {
		start = *input.StartTime
		if start.In(s.slots.Location()).Weekday() == time.Sunday {
			return nil, appErrors.Field("startTime", SundayMessage)
		}
	}
	end := start.Add(s.slots.SessionDuration())
	if input.EndTime != nil {
		end = *input.EndTime
	}
	if !end.After(start) {
		return nil, appErrors.Field("endTime", "end time must be after start time")
	}

	enrollment, err := s.enrollment.Snapshot(ctx, principal)
	if err != nil {
		return nil, err
	}
	if !enrollment.TeachesStudent(input.ProgramID, input.SubjectID, input.StudentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not teach this student for the selected subject")
	}

	body := dto.TeacherScheduleBody{
		StudentID:   input.StudentID,
		ProgramID:   input.ProgramID,
		SubjectID:   input.SubjectID,
		Title:       input.Title,
		Description: input.Description,
		StartTime:   start,
		EndTime:     end,
	}
	return s.mutate(ctx, actionSchedule, actionSchedule+":"+principal.UserID, "", func() (*models.Session, error) {
		return s.writer.Schedule(ctx, principal.Token, body)
	})
}

// precheck loads the snapshot and enforces status and actor rules locally.
// Input validation runs before it so malformed input never reaches the upstream.
func (s *BookingService) precheck(ctx context.Context, principal *models.Principal, sessionID string, action models.SessionAction) (*models.Session, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	session, err := s.snapshots.Get(ctx, principal, sessionID, false)
	if err != nil {
		return nil, err
	}
	if !session.Status.Allows(action) {
		s.metrics.RecordTransition(string(action), OutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("a %s session cannot be %s", session.Status, pastTense(action)))
	}
	switch action {
	case models.SessionActionAccept, models.SessionActionReject:
		if !principal.IsTeacher() || session.Teacher.ID != principal.UserID {
			s.metrics.RecordTransition(string(action), OutcomeRejected)
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned teacher can review this request")
		}
	default:
		if !session.IsParticipant(principal.UserID) {
			s.metrics.RecordTransition(string(action), OutcomeRejected)
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requesting student or the assigned teacher can change this session")
		}
	}
	return session, nil
}

func (s *BookingService) reason(input ReasonInput) (string, error) {
	input.Reason = strings.TrimSpace(input.Reason)
	if err := s.validator.Struct(input); err != nil {
		return "", appErrors.FromValidation(err, "invalid reason")
	}
	return input.Reason, nil
}

// mutate runs one upstream mutation under the in-flight guard and invalidates
// dependent caches. A 409 only drops the single-session entry.
func (s *BookingService) mutate(ctx context.Context, action, guardKey, sessionID string, call func() (*models.Session, error)) (*models.Session, error) {
	if !s.guard.acquire(guardKey) {
		s.metrics.RecordTransition(action, OutcomeInProgress)
		return nil, appErrors.ErrInProgress
	}
	defer s.guard.release(guardKey)

	// Invalidation still runs when the caller disconnects after the mutation landed.
	bg := context.WithoutCancel(ctx)

	session, err := call()
	if err != nil {
		if errors.Is(err, appErrors.ErrConflict) && sessionID != "" {
			s.metrics.RecordTransition(action, OutcomeConflict)
			_ = s.cache.InvalidateSession(bg, sessionID)
			return nil, err
		}
		s.metrics.RecordTransition(action, OutcomeFailed)
		return nil, err
	}

	if err := s.cache.InvalidateBuckets(bg, BucketSessions, BucketTeacherRequests, BucketSlots); err != nil {
		s.logger.Warn("post-mutation cache invalidation incomplete", zap.String("action", action), zap.Error(err))
	}
	id := session.ID
	if id == "" {
		id = sessionID
	}
	if id != "" {
		_ = s.cache.InvalidateSession(bg, id)
	}

	s.metrics.RecordTransition(action, OutcomeSuccess)
	s.logger.Info("session transition",
		zap.String("action", action),
		zap.String("session_id", id),
		zap.String("status", string(session.Status)))
	return session, nil
}

func pastTense(action models.SessionAction) string {
	switch action {
	case models.SessionActionAccept:
		return "accepted"
	case models.SessionActionReject:
		return "rejected"
	case models.SessionActionCancel:
		return "cancelled"
	case models.SessionActionReschedule:
		return "rescheduled"
	default:
		return string(action)
	}
}
