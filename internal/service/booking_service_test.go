package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-portal/internal/dto"
	"github.com/noah-isme/classroom-portal/internal/models"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
)

type writerCall struct {
	action string
	id     string
	body   interface{}
}

type stubWriter struct {
	mu      sync.Mutex
	calls   []writerCall
	err     error
	result  models.Session
	release chan struct{}
}

func (w *stubWriter) record(action, id string, body interface{}) (*models.Session, error) {
	w.mu.Lock()
	w.calls = append(w.calls, writerCall{action: action, id: id, body: body})
	release := w.release
	w.mu.Unlock()
	if release != nil {
		<-release
	}
	if w.err != nil {
		return nil, w.err
	}
	result := w.result
	if result.ID == "" {
		result.ID = id
	}
	return &result, nil
}

func (w *stubWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

func (w *stubWriter) Request(_ context.Context, _ string, body dto.RequestSessionBody) (*models.Session, error) {
	return w.record("request", "", body)
}

func (w *stubWriter) Accept(_ context.Context, _, id string, body dto.AcceptSessionBody) (*models.Session, error) {
	return w.record("accept", id, body)
}

func (w *stubWriter) Reject(_ context.Context, _, id string, body dto.ReasonBody) (*models.Session, error) {
	return w.record("reject", id, body)
}

func (w *stubWriter) Cancel(_ context.Context, _, id string, body dto.ReasonBody) (*models.Session, error) {
	return w.record("cancel", id, body)
}

func (w *stubWriter) Reschedule(_ context.Context, _, id string, body dto.RescheduleBody) (*models.Session, error) {
	return w.record("reschedule", id, body)
}

func (w *stubWriter) Schedule(_ context.Context, _ string, body dto.TeacherScheduleBody) (*models.Session, error) {
	return w.record("schedule", "", body)
}

type stubSnapshots struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	reads    int
}

func (s *stubSnapshots) Get(_ context.Context, _ *models.Principal, id string, _ bool) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	session, ok := s.sessions[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	return &session, nil
}

type stubSlots struct {
	result  models.SlotResult
	queries []models.SlotQuery
	fresh   []bool
}

func (s *stubSlots) Available(_ context.Context, _ *models.Principal, query models.SlotQuery, fresh bool) (*models.SlotResult, error) {
	s.queries = append(s.queries, query)
	s.fresh = append(s.fresh, fresh)
	result := s.result
	return &result, nil
}

func (s *stubSlots) Location() *time.Location        { return testLoc }
func (s *stubSlots) SessionDuration() time.Duration { return models.DefaultSessionDuration }

type bookingFixture struct {
	svc        *BookingService
	writer     *stubWriter
	snapshots  *stubSnapshots
	slots      *stubSlots
	cacheRepo  *memoryCache
	enrollment *stubEnrollment
}

func newBookingFixture(sessions ...models.Session) *bookingFixture {
	byID := make(map[string]models.Session, len(sessions))
	for _, s := range sessions {
		byID[s.ID] = s
	}
	writer := &stubWriter{}
	slots := &stubSlots{}
	cacheRepo := newMemoryCache()
	enrollment := &stubEnrollment{enrollment: studentEnrollment(nil)}
	snapshots := &stubSnapshots{sessions: byID}
	svc := NewBookingService(writer, snapshots, slots, enrollment, newTestCache(cacheRepo), NewMetricsService(), appErrors.NewValidator(), nil)
	svc.now = clockAt(fixedNow)
	return &bookingFixture{svc: svc, writer: writer, snapshots: snapshots, slots: slots, cacheRepo: cacheRepo, enrollment: enrollment}
}

func TestBookingAcceptSendsTrimmedDetails(t *testing.T) {
	f := newBookingFixture(sessionFixture("s1", models.SessionStatusRequested, at(4, 9, 0)))
	f.writer.result = models.Session{Status: models.SessionStatusScheduled}

	session, err := f.svc.Accept(context.Background(), teacher(), "s1", AcceptSessionInput{
		Title:       " Algebra Review ",
		Description: "Covering quadratic equations in depth",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusScheduled, session.Status)
	require.Len(t, f.writer.calls, 1)
	assert.Equal(t, dto.AcceptSessionBody{Title: "Algebra Review", Description: "Covering quadratic equations in depth"}, f.writer.calls[0].body)
}

func TestBookingRejectSendsReason(t *testing.T) {
	f := newBookingFixture(sessionFixture("s1", models.SessionStatusRequested, at(4, 9, 0)))
	_, err := f.svc.Reject(context.Background(), teacher(), "s1", ReasonInput{Reason: "Not available that day"})
	require.NoError(t, err)
	require.Len(t, f.writer.calls, 1)
	assert.Equal(t, "reject", f.writer.calls[0].action)
	assert.Equal(t, dto.ReasonBody{Reason: "Not available that day"}, f.writer.calls[0].body)
}

func TestBookingRejectsIllegalTransitionWithoutCall(t *testing.T) {
	f := newBookingFixture(sessionFixture("s1", models.SessionStatusScheduled, at(4, 9, 0)))
	_, err := f.svc.Accept(context.Background(), teacher(), "s1", AcceptSessionInput{Description: "Covering quadratic equations in depth"})
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "a scheduled session cannot be accepted")

	_, err = f.svc.Reject(context.Background(), teacher(), "s1", ReasonInput{Reason: "Not available that day"})
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	assert.Zero(t, f.writer.count())
}

func TestBookingEnforcesActors(t *testing.T) {
	f := newBookingFixture(sessionFixture("s1", models.SessionStatusRequested, at(4, 9, 0)))

	_, err := f.svc.Accept(context.Background(), student(), "s1", AcceptSessionInput{Description: "Covering quadratic equations in depth"})
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	other := teacher()
	other.UserID = "tea-2"
	_, err = f.svc.Reject(context.Background(), other, "s1", ReasonInput{Reason: "Not available that day"})
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	stranger := student()
	stranger.UserID = "stu-9"
	_, err = f.svc.Cancel(context.Background(), stranger, "s1", ReasonInput{Reason: "Something came up today"})
	require.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Zero(t, f.writer.count())

	_, err = f.svc.Cancel(context.Background(), student(), "s1", ReasonInput{Reason: "Something came up today"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.writer.count())
}

func TestBookingValidatesReasonLength(t *testing.T) {
	f := newBookingFixture(sessionFixture("s1", models.SessionStatusRequested, at(4, 9, 0)))
	_, err := f.svc.Reject(context.Background(), teacher(), "s1", ReasonInput{Reason: "   busy   "})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, "reason must be at least 10 characters", fieldMessage(err, "reason"))

	_, err = f.svc.Accept(context.Background(), teacher(), "s1", AcceptSessionInput{Description: "short"})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Cancel(context.Background(), student(), "s1", ReasonInput{Reason: "sick"})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Reschedule(context.Background(), student(), "s1", RescheduleInput{Date: "2026-03-05"})
	require.Error(t, err)

	assert.Zero(t, f.writer.count())
	assert.Zero(t, f.snapshots.reads, "invalid input must not load the session")
}

func TestBookingGuardRejectsConcurrentMutation(t *testing.T) {
	f := newBookingFixture(sessionFixture("s1", models.SessionStatusRequested, at(4, 9, 0)))
	f.writer.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Reject(context.Background(), teacher(), "s1", ReasonInput{Reason: "Not available that day"})
		done <- err
	}()
	require.Eventually(t, func() bool { return f.writer.count() == 1 }, time.Second, 5*time.Millisecond)

	_, err := f.svc.Accept(context.Background(), teacher(), "s1", AcceptSessionInput{Description: "Covering quadratic equations in depth"})
	require.ErrorIs(t, err, appErrors.ErrInProgress)

	close(f.writer.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.writer.count())
}

func TestBookingSuccessInvalidatesListingsForAllUsers(t *testing.T) {
	f := newBookingFixture(sessionFixture("s1", models.SessionStatusRequested, at(4, 9, 0)))
	ctx := context.Background()
	cache := f.svc.cache
	require.NoError(t, cache.Set(ctx, SessionsKey("stu-1", models.SessionFilter{}), []int{1}, 0))
	require.NoError(t, cache.Set(ctx, TeacherRequestsKey("tea-1", models.SessionFilter{}), []int{1}, 0))
	require.NoError(t, cache.Set(ctx, SlotsKey("stu-1", slotQuery("2026-03-04")), []int{1}, 0))
	require.NoError(t, cache.Set(ctx, SessionKey("stu-1", "s1"), []int{1}, 0))
	require.NoError(t, cache.Set(ctx, SessionKey("tea-1", "s1"), []int{1}, 0))
	require.NoError(t, cache.Set(ctx, EnrollmentKey("stu-1"), []int{1}, 0))

	_, err := f.svc.Accept(ctx, teacher(), "s1", AcceptSessionInput{Description: "Covering quadratic equations in depth"})
	require.NoError(t, err)
	assert.Equal(t, []string{EnrollmentKey("stu-1")}, f.cacheRepo.keys())
}

func TestBookingConflictDropsOnlySessionEntry(t *testing.T) {
	f := newBookingFixture(sessionFixture("s1", models.SessionStatusRequested, at(4, 9, 0)))
	f.writer.err = appErrors.Clone(appErrors.ErrConflict, "session was already accepted")
	ctx := context.Background()
	listKey := SessionsKey("stu-1", models.SessionFilter{})
	require.NoError(t, f.svc.cache.Set(ctx, listKey, []int{1}, 0))
	require.NoError(t, f.svc.cache.Set(ctx, SessionKey("tea-1", "s1"), []int{1}, 0))

	_, err := f.svc.Accept(ctx, teacher(), "s1", AcceptSessionInput{Description: "Covering quadratic equations in depth"})
	require.ErrorIs(t, err, appErrors.ErrConflict)
	assert.True(t, f.cacheRepo.has(listKey))
	assert.False(t, f.cacheRepo.has(SessionKey("tea-1", "s1")))
}

func TestBookingRequestUsesAvailableSlotAndAssignedTeacher(t *testing.T) {
	f := newBookingFixture()
	chosen := slot(4, 13, 0)
	f.slots.result = models.SlotResult{Date: "2026-03-04", Slots: []models.AvailableSlot{slot(4, 9, 0), chosen}, CanSubmit: true}

	_, err := f.svc.Request(context.Background(), student(), RequestSessionInput{
		ProgramID: "prog-1", SubjectID: "math", Date: "2026-03-04", StartTime: chosen.StartTime, Title: "  Quadratics ",
	})
	require.NoError(t, err)
	require.Len(t, f.writer.calls, 1)
	body := f.writer.calls[0].body.(dto.RequestSessionBody)
	assert.Equal(t, "tea-1", body.TeacherID)
	assert.Equal(t, chosen.EndTime, body.EndTime)
	assert.Equal(t, "Quadratics", body.Title)
	assert.Equal(t, []bool{false}, f.slots.fresh)
	assert.Equal(t, 75, f.slots.queries[0].DurationMinutes)
}

func TestBookingRequestRejectsUnknownSlot(t *testing.T) {
	f := newBookingFixture()
	f.slots.result = models.SlotResult{Slots: []models.AvailableSlot{slot(4, 9, 0)}}
	_, err := f.svc.Request(context.Background(), student(), RequestSessionInput{
		ProgramID: "prog-1", SubjectID: "math", Date: "2026-03-04", StartTime: at(4, 11, 0),
	})
	assert.Equal(t, "the selected time slot is no longer available", fieldMessage(err, "startTime"))
	assert.Zero(t, f.writer.count())

	_, err = f.svc.Request(context.Background(), teacher(), RequestSessionInput{ProgramID: "prog-1", SubjectID: "math", Date: "2026-03-04"})
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestBookingRescheduleUsesFreshSlots(t *testing.T) {
	f := newBookingFixture(sessionFixture("s1", models.SessionStatusScheduled, at(4, 9, 0)))
	target := slot(6, 10, 0)
	f.slots.result = models.SlotResult{Slots: []models.AvailableSlot{target}}

	_, err := f.svc.Reschedule(context.Background(), teacher(), "s1", RescheduleInput{Date: "2026-03-06", StartTime: target.StartTime})
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, f.slots.fresh)
	assert.Equal(t, models.SlotFlowTeacher, f.slots.queries[0].Flow)
	assert.Equal(t, "math", f.slots.queries[0].SubjectID)
	assert.Equal(t, dto.RescheduleBody{NewStartTime: target.StartTime, NewEndTime: target.EndTime}, f.writer.calls[0].body)
}

func TestBookingTeacherScheduleDefaults(t *testing.T) {
	f := newBookingFixture()
	f.enrollment.enrollment = teacherEnrollment()
	f.svc.now = clockAt(fixedNow.Add(37 * time.Second))

	_, err := f.svc.TeacherSchedule(context.Background(), teacher(), TeacherScheduleInput{
		StudentID: "stu-1", ProgramID: "prog-1", SubjectID: "math", Title: "Extra practice",
	})
	require.NoError(t, err)
	body := f.writer.calls[0].body.(dto.TeacherScheduleBody)
	assert.Equal(t, fixedNow, body.StartTime)
	assert.Equal(t, fixedNow.Add(models.DefaultSessionDuration), body.EndTime)

	sunday := at(8, 10, 0)
	_, err = f.svc.TeacherSchedule(context.Background(), teacher(), TeacherScheduleInput{
		StudentID: "stu-1", ProgramID: "prog-1", SubjectID: "math", Title: "Extra practice", StartTime: &sunday,
	})
	assert.Equal(t, SundayMessage, fieldMessage(err, "startTime"))

	_, err = f.svc.TeacherSchedule(context.Background(), teacher(), TeacherScheduleInput{
		StudentID: "stu-7", ProgramID: "prog-1", SubjectID: "math", Title: "Extra practice",
	})
	require.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Equal(t, 1, f.writer.count())
}
