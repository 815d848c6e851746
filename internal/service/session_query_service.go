package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-portal/internal/models"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxRangePages    = 20
)

type sessionReader interface {
	List(ctx context.Context, token string, filter models.SessionFilter) (*models.SessionPage, error)
	ListTeacherRequests(ctx context.Context, token string, filter models.SessionFilter) (*models.SessionPage, error)
	Get(ctx context.Context, token, id string) (*models.Session, error)
}

// SessionList is a page of sessions decorated for the viewer.
type SessionList struct {
	Sessions   []models.SessionView `json:"sessions"`
	Pagination models.Pagination    `json:"pagination"`
}

// SessionQueryService serves cached session reads.
type SessionQueryService struct {
	repo   sessionReader
	cache  *CacheService
	ttl    time.Duration
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewSessionQueryService constructs the query service.
func NewSessionQueryService(repo sessionReader, cache *CacheService, ttl time.Duration, loc *time.Location, logger *zap.Logger) *SessionQueryService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionQueryService{repo: repo, cache: cache, ttl: ttl, loc: loc, logger: logger, now: time.Now}
}

// List returns the caller's sessions.
func (s *SessionQueryService) List(ctx context.Context, principal *models.Principal, filter models.SessionFilter) (*SessionList, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	page, err := s.cachedPage(ctx, SessionsKey(principal.UserID, filter), func() (*models.SessionPage, error) {
		return s.repo.List(ctx, principal.Token, filter)
	})
	if err != nil {
		return nil, err
	}
	return s.decorate(page), nil
}

// TeacherRequests returns requests addressed to the calling teacher.
func (s *SessionQueryService) TeacherRequests(ctx context.Context, principal *models.Principal, filter models.SessionFilter) (*SessionList, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !principal.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can review session requests")
	}
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	page, err := s.cachedPage(ctx, TeacherRequestsKey(principal.UserID, filter), func() (*models.SessionPage, error) {
		return s.repo.ListTeacherRequests(ctx, principal.Token, filter)
	})
	if err != nil {
		return nil, err
	}
	return s.decorate(page), nil
}

// Get returns one session. fresh bypasses the cache.
func (s *SessionQueryService) Get(ctx context.Context, principal *models.Principal, id string, fresh bool) (*models.Session, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if id == "" {
		return nil, appErrors.Field("id", "session id is required")
	}
	key := SessionKey(principal.UserID, id)
	if !fresh {
		var cached models.Session
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}
	session, err := s.repo.Get(ctx, principal.Token, id)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, session, s.ttl)
	return session, nil
}

// View decorates a single session for the viewer.
func (s *SessionQueryService) View(session models.Session) models.SessionView {
	return models.NewSessionView(session, s.now(), s.loc)
}

// ListRange collects every session starting within rng, following pagination.
func (s *SessionQueryService) ListRange(ctx context.Context, principal *models.Principal, rng models.DateRange) ([]models.Session, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.SessionFilter{
		StartDate: rng.Start.In(s.loc).Format(models.DateLayout),
		EndDate:   rng.End.AddDate(0, 0, -1).In(s.loc).Format(models.DateLayout),
		Limit:     maxPageLimit,
	}
	var out []models.Session
	for page := 1; page <= maxRangePages; page++ {
		filter.Page = page
		result, err := s.cachedPage(ctx, SessionsKey(principal.UserID, filter), func() (*models.SessionPage, error) {
			return s.repo.List(ctx, principal.Token, filter)
		})
		if err != nil {
			return nil, err
		}
		for _, session := range result.Sessions {
			if rng.Contains(session.StartTime.In(s.loc)) {
				out = append(out, session)
			}
		}
		if result.Pagination.TotalPages <= page {
			break
		}
	}
	return out, nil
}

func (s *SessionQueryService) cachedPage(ctx context.Context, key string, load func() (*models.SessionPage, error)) (*models.SessionPage, error) {
	var cached models.SessionPage
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}
	page, err := load()
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, page, s.ttl)
	return page, nil
}

func (s *SessionQueryService) decorate(page *models.SessionPage) *SessionList {
	now := s.now()
	views := make([]models.SessionView, 0, len(page.Sessions))
	for _, session := range page.Sessions {
		views = append(views, models.NewSessionView(session, now, s.loc))
	}
	return &SessionList{Sessions: views, Pagination: page.Pagination}
}

func normalizeFilter(filter models.SessionFilter) (models.SessionFilter, error) {
	if filter.Status != "" {
		if _, err := models.ParseSessionStatus(string(filter.Status)); err != nil {
			return filter, appErrors.Field("status", "status is invalid")
		}
	}
	dates := []struct{ field, value string }{
		{"date", filter.Date}, {"startDate", filter.StartDate}, {"endDate", filter.EndDate},
	}
	for _, d := range dates {
		if d.value == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, d.value); err != nil {
			return filter, appErrors.Field(d.field, d.field+" must use the YYYY-MM-DD format")
		}
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}
	return filter, nil
}
