package repository

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/noah-isme/classroom-portal/internal/dto"
	"github.com/noah-isme/classroom-portal/internal/models"
)

// SessionRepository reads and mutates sessions through the upstream API.
type SessionRepository struct {
	client *ClassroomClient
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(client *ClassroomClient) *SessionRepository {
	return &SessionRepository{client: client}
}

// List returns the caller's sessions matching the filter.
func (r *SessionRepository) List(ctx context.Context, token string, filter models.SessionFilter) (*models.SessionPage, error) {
	return r.page(ctx, Call{Path: "/sessions", Route: "/sessions", Token: token, Query: filterQuery(filter)})
}

// ListTeacherRequests returns the session requests addressed to the calling teacher.
func (r *SessionRepository) ListTeacherRequests(ctx context.Context, token string, filter models.SessionFilter) (*models.SessionPage, error) {
	return r.page(ctx, Call{Path: "/sessions/teacher/requests", Route: "/sessions/teacher/requests", Token: token, Query: filterQuery(filter)})
}

// Get returns one session.
func (r *SessionRepository) Get(ctx context.Context, token, id string) (*models.Session, error) {
	var wire dto.Session
	if err := r.client.Get(ctx, Call{Path: "/sessions/" + url.PathEscape(id), Route: "/sessions/:id", Token: token}, &wire); err != nil {
		return nil, err
	}
	return decodeSession(wire)
}

// AvailableSlots asks the upstream for candidate windows on one date.
func (r *SessionRepository) AvailableSlots(ctx context.Context, token string, query models.SlotQuery) ([]models.AvailableSlot, error) {
	params := url.Values{}
	params.Set("programId", query.ProgramID)
	params.Set("subjectId", query.SubjectID)
	params.Set("date", query.Date)
	if query.DurationMinutes > 0 {
		params.Set("duration", strconv.Itoa(query.DurationMinutes))
	}

	var wire dto.SlotList
	if err := r.client.Get(ctx, Call{Path: "/sessions/available-slots", Route: "/sessions/available-slots", Token: token, Query: params}, &wire); err != nil {
		return nil, err
	}
	slots := make([]models.AvailableSlot, 0, len(wire.Slots))
	for _, s := range wire.Slots {
		slots = append(slots, s.Model())
	}
	return slots, nil
}

// Request creates a session request on behalf of the calling student.
func (r *SessionRepository) Request(ctx context.Context, token string, body dto.RequestSessionBody) (*models.Session, error) {
	return r.mutate(ctx, Call{Path: "/sessions/request", Route: "/sessions/request", Token: token, Body: body})
}

// Accept accepts a requested session.
func (r *SessionRepository) Accept(ctx context.Context, token, id string, body dto.AcceptSessionBody) (*models.Session, error) {
	return r.mutate(ctx, actionCall(token, id, "accept", body))
}

// Reject rejects a requested session.
func (r *SessionRepository) Reject(ctx context.Context, token, id string, body dto.ReasonBody) (*models.Session, error) {
	return r.mutate(ctx, actionCall(token, id, "reject", body))
}

// Cancel cancels a requested or scheduled session.
func (r *SessionRepository) Cancel(ctx context.Context, token, id string, body dto.ReasonBody) (*models.Session, error) {
	return r.mutate(ctx, actionCall(token, id, "cancel", body))
}

// Reschedule moves a session to a new window.
func (r *SessionRepository) Reschedule(ctx context.Context, token, id string, body dto.RescheduleBody) (*models.Session, error) {
	return r.mutate(ctx, actionCall(token, id, "reschedule", body))
}

// Schedule creates a scheduled session directly as the calling teacher.
func (r *SessionRepository) Schedule(ctx context.Context, token string, body dto.TeacherScheduleBody) (*models.Session, error) {
	return r.mutate(ctx, Call{Path: "/sessions/teacher/schedule", Route: "/sessions/teacher/schedule", Token: token, Body: body})
}

func (r *SessionRepository) page(ctx context.Context, call Call) (*models.SessionPage, error) {
	var wire dto.SessionList
	if err := r.client.Get(ctx, call, &wire); err != nil {
		return nil, err
	}
	sessions, err := dto.Sessions(wire.Sessions)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", call.Route, err)
	}
	return &models.SessionPage{Sessions: sessions, Pagination: wire.Pagination.Model()}, nil
}

func (r *SessionRepository) mutate(ctx context.Context, call Call) (*models.Session, error) {
	var wire dto.Session
	if err := r.client.Post(ctx, call, &wire); err != nil {
		return nil, err
	}
	return decodeSession(wire)
}

func decodeSession(wire dto.Session) (*models.Session, error) {
	session, err := wire.Model()
	if err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func actionCall(token, id, action string, body interface{}) Call {
	return Call{
		Path:  "/sessions/" + url.PathEscape(id) + "/" + action,
		Route: "/sessions/:id/" + action,
		Token: token,
		Body:  body,
	}
}

func filterQuery(filter models.SessionFilter) url.Values {
	params := url.Values{}
	set := func(key, value string) {
		if value != "" {
			params.Set(key, value)
		}
	}
	set("programId", filter.ProgramID)
	set("subjectId", filter.SubjectID)
	set("date", filter.Date)
	set("startDate", filter.StartDate)
	set("endDate", filter.EndDate)
	set("status", string(filter.Status))
	set("search", filter.Search)
	if filter.Page > 0 {
		params.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		params.Set("limit", strconv.Itoa(filter.Limit))
	}
	return params
}
