package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/noah-isme/classroom-portal/internal/models"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
)

// Cache buckets. Keys have the shape portal:<bucket>:<user>:<discriminator>.
const (
	cachePrefix = "portal"

	BucketSessions        = "sessions"
	BucketTeacherRequests = "teacher-requests"
	BucketSlots           = "slots"
	BucketSession         = "session"
	BucketEnrollment      = "enrollment"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService fronts the query cache with metrics and key conventions.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
	onFailure  func(pattern string)
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get loads a cached entry into dest and reports whether it was a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	err := s.repo.Get(ctx, key, dest)
	if err != nil {
		s.metrics.RecordCacheLookup(bucketOf(key), false)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheLookup(bucketOf(key), true)
	return true, nil
}

// Set stores the value; a non-positive ttl uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// OnInvalidateFailure registers a callback for patterns that could not be
// deleted, typically to retry them in the background.
func (s *CacheService) OnInvalidateFailure(fn func(pattern string)) {
	if s == nil {
		return
	}
	s.onFailure = fn
}

// Invalidate removes cached values matching the glob pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	err := s.Purge(ctx, pattern)
	if err != nil && s.onFailure != nil {
		s.onFailure(pattern)
	}
	return err
}

// Purge deletes matching entries without notifying the failure callback.
func (s *CacheService) Purge(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// InvalidateBuckets drops every entry of the buckets for all users.
func (s *CacheService) InvalidateBuckets(ctx context.Context, buckets ...string) error {
	var errs []error
	for _, bucket := range buckets {
		if err := s.Invalidate(ctx, fmt.Sprintf("%s:%s:*", cachePrefix, bucket)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InvalidateSession drops the cached detail of one session for every viewer.
func (s *CacheService) InvalidateSession(ctx context.Context, sessionID string) error {
	return s.Invalidate(ctx, fmt.Sprintf("%s:%s:*:%s", cachePrefix, BucketSession, sessionID))
}

// SessionsKey keys a session listing.
func SessionsKey(userID string, filter models.SessionFilter) string {
	return cacheKey(BucketSessions, userID, digest(filterParts(filter)...))
}

// TeacherRequestsKey keys a teacher request listing.
func TeacherRequestsKey(userID string, filter models.SessionFilter) string {
	return cacheKey(BucketTeacherRequests, userID, digest(filterParts(filter)...))
}

// SlotsKey keys one availability lookup by program, subject, date, duration
// and flow. The flows filter differently and never share an entry.
func SlotsKey(userID string, q models.SlotQuery) string {
	return cacheKey(BucketSlots, userID, digest(q.ProgramID, q.SubjectID, q.Date, fmt.Sprint(q.DurationMinutes), string(q.Flow)))
}

// SessionKey keys the detail of one session.
func SessionKey(userID, sessionID string) string {
	return cacheKey(BucketSession, userID, sessionID)
}

// EnrollmentKey keys the enrollment snapshot of a user.
func EnrollmentKey(userID string) string {
	return cacheKey(BucketEnrollment, userID, "snapshot")
}

func cacheKey(bucket, userID, discriminator string) string {
	return strings.Join([]string{cachePrefix, bucket, userID, discriminator}, ":")
}

func bucketOf(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return "unknown"
	}
	return parts[1]
}

func filterParts(f models.SessionFilter) []string {
	return []string{f.ProgramID, f.SubjectID, f.Date, f.StartDate, f.EndDate, string(f.Status), f.Search, fmt.Sprint(f.Page), fmt.Sprint(f.Limit)}
}

// digest keeps keys short and free of glob characters.
func digest(parts ...string) string {
	sum := blake2b.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:12])
}
