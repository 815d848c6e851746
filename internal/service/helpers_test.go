package service

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/classroom-portal/internal/models"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
)

var testLoc = time.UTC

// fixedNow is a Monday.
var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func clockAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// memoryCache is an in-process CacheRepository honouring glob deletes.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func (m *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, pattern)
	for key := range m.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *memoryCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

func (m *memoryCache) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for key := range m.entries {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func newTestCache(repo CacheRepository) *CacheService {
	return NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)
}

func student() *models.Principal {
	return &models.Principal{UserID: "stu-1", Name: "Sari", Role: models.RoleStudent, Token: "student-token"}
}

func teacher() *models.Principal {
	return &models.Principal{UserID: "tea-1", Name: "Budi", Role: models.RoleTeacher, Token: "teacher-token"}
}

// stubEnrollment serves a fixed snapshot.
type stubEnrollment struct {
	enrollment *models.Enrollment
	err        error
	calls      int
}

func (s *stubEnrollment) Snapshot(_ context.Context, _ *models.Principal) (*models.Enrollment, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.enrollment, nil
}

func studentEnrollment(start *time.Time) *models.Enrollment {
	return &models.Enrollment{
		UserID: "stu-1",
		Role:   models.RoleStudent,
		Programs: []models.Program{{
			ID:        "prog-1",
			Name:      "Focus One Math",
			Type:      models.ProgramFocusOne,
			StartDate: start,
			Subjects:  []models.SubjectAssignment{{SubjectID: "math", SubjectName: "Math", TeacherID: "tea-1"}},
		}},
	}
}

func teacherEnrollment() *models.Enrollment {
	return &models.Enrollment{
		UserID: "tea-1",
		Role:   models.RoleTeacher,
		Programs: []models.Program{{
			ID:       "prog-1",
			Type:     models.ProgramFocusOne,
			Subjects: []models.SubjectAssignment{{SubjectID: "math", TeacherID: "tea-1", StudentIDs: []string{"stu-1"}}},
		}},
	}
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 3, day, hour, minute, 0, 0, testLoc)
}

func slot(day, hour, minute int) models.AvailableSlot {
	start := at(day, hour, minute)
	return models.AvailableSlot{StartTime: start, EndTime: start.Add(models.DefaultSessionDuration)}
}

func sessionFixture(id string, status models.SessionStatus, start time.Time) models.Session {
	return models.Session{
		ID:        id,
		Title:     "Algebra",
		StartTime: start,
		EndTime:   start.Add(models.DefaultSessionDuration),
		Status:    status,
		Student:   models.Ref{ID: "stu-1", Name: "Sari"},
		Teacher:   models.Ref{ID: "tea-1", Name: "Budi"},
		Subject:   models.Ref{ID: "math", Name: "Math"},
		Program:   models.Ref{ID: "prog-1"},
	}
}

func fieldMessage(err error, field string) string {
	appErr := appErrors.FromError(err)
	if appErr == nil {
		return ""
	}
	for _, f := range appErr.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}
