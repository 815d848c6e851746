package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-portal/internal/models"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
)

// SundayMessage is returned for any attempt to book on a Sunday.
const SundayMessage = "Sessions cannot be scheduled on Sundays"

type slotRepository interface {
	AvailableSlots(ctx context.Context, token string, query models.SlotQuery) ([]models.AvailableSlot, error)
}

type enrollmentReader interface {
	Snapshot(ctx context.Context, principal *models.Principal) (*models.Enrollment, error)
}

// SlotRules are the client-side booking constraints.
type SlotRules struct {
	Location        *time.Location
	SessionDuration time.Duration
	WindowStartHour int
	WindowEndHour   int
}

func (r SlotRules) normalized() SlotRules {
	if r.Location == nil {
		r.Location = time.UTC
	}
	if r.SessionDuration <= 0 {
		r.SessionDuration = models.DefaultSessionDuration
	}
	if r.WindowEndHour <= r.WindowStartHour {
		r.WindowStartHour, r.WindowEndHour = 9, 21
	}
	return r
}

// SlotService validates availability queries and presents upstream slots.
type SlotService struct {
	repo       slotRepository
	enrollment enrollmentReader
	cache      *CacheService
	validator  *validator.Validate
	rules      SlotRules
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewSlotService constructs the slot service.
func NewSlotService(repo slotRepository, enrollment enrollmentReader, cache *CacheService, validate *validator.Validate, rules SlotRules, ttl time.Duration, logger *zap.Logger) *SlotService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotService{
		repo:       repo,
		enrollment: enrollment,
		cache:      cache,
		validator:  validate,
		rules:      rules.normalized(),
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
	}
}

// Location returns the viewer time zone used for date arithmetic.
func (s *SlotService) Location() *time.Location {
	return s.rules.Location
}

// SessionDuration returns the default session length.
func (s *SlotService) SessionDuration() time.Duration {
	return s.rules.SessionDuration
}

// Available returns the presentable slots for the query. fresh bypasses the cache.
func (s *SlotService) Available(ctx context.Context, principal *models.Principal, query models.SlotQuery, fresh bool) (*models.SlotResult, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	query = s.withDefaults(query)
	if principal.IsStudent() {
		query.Flow = models.SlotFlowStudent
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.FromValidation(err, "invalid slot query")
	}
	date, err := s.CheckDate(ctx, principal, query)
	if err != nil {
		return nil, err
	}

	key := SlotsKey(principal.UserID, query)
	if !fresh {
		var cached models.SlotResult
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	raw, err := s.repo.AvailableSlots(ctx, principal.Token, query)
	if err != nil {
		return nil, err
	}
	result := s.present(date, query, raw)
	_ = s.cache.Set(ctx, key, result, s.ttl)
	return &result, nil
}

// CheckDate enforces the date rules without any network call other than the
// cached enrollment lookup of the student flow. It returns the parsed date.
func (s *SlotService) CheckDate(ctx context.Context, principal *models.Principal, query models.SlotQuery) (time.Time, error) {
	date, err := time.ParseInLocation(models.DateLayout, query.Date, s.rules.Location)
	if err != nil {
		return time.Time{}, appErrors.Field("date", "date must use the YYYY-MM-DD format")
	}
	if date.Weekday() == time.Sunday {
		return time.Time{}, appErrors.Field("date", SundayMessage)
	}
	if query.Flow != models.SlotFlowStudent {
		return date, nil
	}

	earliest := models.DateOf(s.now(), s.rules.Location).AddDate(0, 0, 1)
	if s.enrollment != nil {
		enrollment, err := s.enrollment.Snapshot(ctx, principal)
		if err != nil {
			return time.Time{}, err
		}
		program, ok := enrollment.Program(query.ProgramID)
		if !ok {
			return time.Time{}, appErrors.Field("programId", "you are not enrolled in this program")
		}
		if program.StartDate != nil {
			afterStart := models.DateOf(*program.StartDate, s.rules.Location).AddDate(0, 0, 1)
			if afterStart.After(earliest) {
				earliest = afterStart
			}
		}
	}
	if date.Before(earliest) {
		return time.Time{}, appErrors.Field("date", fmt.Sprintf("the earliest bookable date is %s", earliest.Format(models.DateLayout)))
	}
	return date, nil
}

func (s *SlotService) withDefaults(query models.SlotQuery) models.SlotQuery {
	if query.Flow == "" {
		query.Flow = models.SlotFlowStudent
	}
	if query.DurationMinutes == 0 {
		query.DurationMinutes = int(s.rules.SessionDuration / time.Minute)
	}
	return query
}

// present keeps slots starting and ending on the requested date, inside the student window, sorted
// and free of overlaps, and fills missing display strings.
func (s *SlotService) present(date time.Time, query models.SlotQuery, raw []models.AvailableSlot) models.SlotResult {
	loc := s.rules.Location
	candidates := make([]models.AvailableSlot, 0, len(raw))
	for _, slot := range raw {
		if !slot.EndTime.After(slot.StartTime) {
			continue
		}
		if !models.DateOf(slot.StartTime, loc).Equal(date) || slot.EndTime.After(date.AddDate(0, 0, 1)) {
			continue
		}
		if query.Flow == models.SlotFlowStudent && !s.withinWindow(date, slot) {
			continue
		}
		candidates = append(candidates, slot)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].StartTime.Before(candidates[j].StartTime)
	})

	slots := make([]models.AvailableSlot, 0, len(candidates))
	for _, slot := range candidates {
		if len(slots) > 0 && slots[len(slots)-1].Overlaps(slot) {
			s.logger.Debug("dropping overlapping slot", zap.Time("start", slot.StartTime))
			continue
		}
		if slot.FormattedStart == "" {
			slot.FormattedStart = slot.StartTime.In(loc).Format(models.SlotTimeLayout)
		}
		if slot.FormattedEnd == "" {
			slot.FormattedEnd = slot.EndTime.In(loc).Format(models.SlotTimeLayout)
		}
		slots = append(slots, slot)
	}

	result := models.SlotResult{
		Date:      query.Date,
		Slots:     slots,
		Empty:     len(slots) == 0,
		CanSubmit: len(slots) > 0,
	}
	if result.Empty {
		result.Message = models.NoSlotsMessage
	}
	return result
}

func (s *SlotService) withinWindow(date time.Time, slot models.AvailableSlot) bool {
	y, m, d := date.Date()
	open := time.Date(y, m, d, s.rules.WindowStartHour, 0, 0, 0, s.rules.Location)
	closing := time.Date(y, m, d, s.rules.WindowEndHour, 0, 0, 0, s.rules.Location)
	return !slot.StartTime.Before(open) && !slot.EndTime.After(closing)
}
