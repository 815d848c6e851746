package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-portal/internal/models"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
)

type stubSessionReader struct {
	mu       sync.Mutex
	pages    map[int]*models.SessionPage
	session  *models.Session
	filters  []models.SessionFilter
	requests int
	gets     int
}

func (s *stubSessionReader) List(_ context.Context, _ string, filter models.SessionFilter) (*models.SessionPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, filter)
	if page, ok := s.pages[filter.Page]; ok {
		return page, nil
	}
	return &models.SessionPage{Sessions: []models.Session{}, Pagination: models.Pagination{CurrentPage: filter.Page, TotalPages: 1}}, nil
}

func (s *stubSessionReader) ListTeacherRequests(_ context.Context, _ string, filter models.SessionFilter) (*models.SessionPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	s.filters = append(s.filters, filter)
	return &models.SessionPage{Sessions: []models.Session{}}, nil
}

func (s *stubSessionReader) Get(_ context.Context, _, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.session == nil || s.session.ID != id {
		return nil, appErrors.ErrNotFound
	}
	session := *s.session
	return &session, nil
}

func (s *stubSessionReader) listCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filters)
}

func newQueryServiceForTest(repo *stubSessionReader) *SessionQueryService {
	svc := NewSessionQueryService(repo, newTestCache(newMemoryCache()), time.Minute, testLoc, nil)
	svc.now = clockAt(fixedNow)
	return svc
}

func TestSessionQueryListDecoratesAndCaches(t *testing.T) {
	today := sessionFixture("s1", models.SessionStatusScheduled, at(2, 14, 0))
	today.MeetingLink = "https://meet.example.com/s1"
	later := sessionFixture("s2", models.SessionStatusScheduled, at(3, 14, 0))
	later.MeetingLink = "https://meet.example.com/s2"
	repo := &stubSessionReader{pages: map[int]*models.SessionPage{
		1: {Sessions: []models.Session{today, later}, Pagination: models.Pagination{CurrentPage: 1, TotalPages: 1, TotalItems: 2}},
	}}
	svc := newQueryServiceForTest(repo)

	list, err := svc.List(context.Background(), student(), models.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, list.Sessions, 2)
	assert.True(t, list.Sessions[0].Joinable)
	assert.False(t, list.Sessions[1].Joinable)
	assert.Equal(t, 2, list.Pagination.TotalItems)
	assert.Equal(t, defaultPageLimit, repo.filters[0].Limit)
	assert.Equal(t, 1, repo.filters[0].Page)

	_, err = svc.List(context.Background(), student(), models.SessionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls())
}

func TestSessionQueryValidatesFilter(t *testing.T) {
	repo := &stubSessionReader{}
	svc := newQueryServiceForTest(repo)

	_, err := svc.List(context.Background(), student(), models.SessionFilter{Status: "pending"})
	assert.Equal(t, "status is invalid", fieldMessage(err, "status"))
	_, err = svc.List(context.Background(), student(), models.SessionFilter{StartDate: "2026/03/01"})
	assert.Equal(t, "startDate must use the YYYY-MM-DD format", fieldMessage(err, "startDate"))
	assert.Zero(t, repo.listCalls())

	_, err = svc.List(context.Background(), student(), models.SessionFilter{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageLimit, repo.filters[0].Limit)
}

func TestSessionQueryTeacherRequestsRequiresTeacher(t *testing.T) {
	repo := &stubSessionReader{}
	svc := newQueryServiceForTest(repo)

	_, err := svc.TeacherRequests(context.Background(), student(), models.SessionFilter{})
	require.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Zero(t, repo.requests)

	_, err = svc.TeacherRequests(context.Background(), teacher(), models.SessionFilter{Status: models.SessionStatusRequested})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.requests)
}

func TestSessionQueryGetHonoursFresh(t *testing.T) {
	session := sessionFixture("s1", models.SessionStatusRequested, at(4, 9, 0))
	repo := &stubSessionReader{session: &session}
	svc := newQueryServiceForTest(repo)

	_, err := svc.Get(context.Background(), student(), "s1", false)
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), student(), "s1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gets)

	_, err = svc.Get(context.Background(), student(), "s1", true)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.gets)

	_, err = svc.Get(context.Background(), student(), "", false)
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestSessionQueryListRangeFollowsPages(t *testing.T) {
	repo := &stubSessionReader{pages: map[int]*models.SessionPage{
		1: {Sessions: []models.Session{sessionFixture("s1", models.SessionStatusScheduled, at(2, 9, 0))}, Pagination: models.Pagination{TotalPages: 2}},
		2: {Sessions: []models.Session{
			sessionFixture("s2", models.SessionStatusScheduled, at(6, 9, 0)),
			sessionFixture("outside", models.SessionStatusScheduled, at(9, 9, 0)),
		}, Pagination: models.Pagination{TotalPages: 2}},
	}}
	svc := newQueryServiceForTest(repo)

	sessions, err := svc.ListRange(context.Background(), student(), models.DateRange{Start: at(1, 0, 0), End: at(8, 0, 0)})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s2", sessions[1].ID)
	require.Len(t, repo.filters, 2)
	assert.Equal(t, "2026-03-01", repo.filters[0].StartDate)
	assert.Equal(t, "2026-03-07", repo.filters[0].EndDate)
	assert.Equal(t, maxPageLimit, repo.filters[1].Limit)
}
