package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-portal/internal/models"
)

type stubEnrollmentRepo struct {
	enrollment models.Enrollment
	calls      int
	onGet      func()
}

func (s *stubEnrollmentRepo) Get(_ context.Context, _ string) (*models.Enrollment, error) {
	s.calls++
	if s.onGet != nil {
		s.onGet()
	}
	enrollment := s.enrollment
	return &enrollment, nil
}

func TestEnrollmentSnapshotCachesAndFillsPrincipal(t *testing.T) {
	repo := &stubEnrollmentRepo{enrollment: models.Enrollment{Programs: []models.Program{{ID: "prog-1"}}}}
	cacheRepo := newMemoryCache()
	svc := NewEnrollmentService(repo, newTestCache(cacheRepo), time.Minute, nil)

	snap, err := svc.Snapshot(context.Background(), student())
	require.NoError(t, err)
	assert.Equal(t, "stu-1", snap.UserID)
	assert.Equal(t, models.RoleStudent, snap.Role)

	_, err = svc.Snapshot(context.Background(), student())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)

	require.NoError(t, svc.Invalidate(context.Background(), "stu-1"))
	assert.False(t, cacheRepo.has(EnrollmentKey("stu-1")))
}

func TestEnrollmentSnapshotDiscardsLateResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := &stubEnrollmentRepo{onGet: cancel}
	cacheRepo := newMemoryCache()
	svc := NewEnrollmentService(repo, newTestCache(cacheRepo), time.Minute, nil)

	_, err := svc.Snapshot(ctx, student())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, cacheRepo.keys())
}
