package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-portal/internal/models"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
)

type enrollmentRepository interface {
	Get(ctx context.Context, token string) (*models.Enrollment, error)
}

// EnrollmentService serves the caller's enrollment snapshot for a short page-load window.
type EnrollmentService struct {
	repo   enrollmentRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Snapshot returns the caller's programs. A result that arrives after the caller
// gave up is discarded instead of cached.
func (s *EnrollmentService) Snapshot(ctx context.Context, principal *models.Principal) (*models.Enrollment, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	key := EnrollmentKey(principal.UserID)
	var cached models.Enrollment
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	enrollment, err := s.repo.Get(ctx, principal.Token)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		s.logger.Debug("discarding enrollment fetched for cancelled request", zap.String("user_id", principal.UserID))
		return nil, err
	}
	if enrollment.UserID == "" {
		enrollment.UserID = principal.UserID
	}
	if enrollment.Role == models.RoleUnknown {
		enrollment.Role = principal.Role
	}
	_ = s.cache.Set(ctx, key, enrollment, s.ttl)
	return enrollment, nil
}

// Invalidate drops the cached snapshot of a user.
func (s *EnrollmentService) Invalidate(ctx context.Context, userID string) error {
	return s.cache.Invalidate(ctx, EnrollmentKey(userID))
}
