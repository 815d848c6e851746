package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/noah-isme/classroom-portal/internal/dto"
	"github.com/noah-isme/classroom-portal/internal/models"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
)

const nonceSize = 24

type authStateRepository interface {
	Save(ctx context.Context, state *models.AuthState) error
	FindByID(ctx context.Context, id string) (*models.AuthState, error)
	UpdateTheme(ctx context.Context, id string, theme models.Theme, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type authNoticeRepository interface {
	Create(ctx context.Context, notice *models.AuthNotice) error
	Consume(ctx context.Context, stateID string) ([]models.AuthNotice, error)
}

// AuthConfig defines how upstream tokens are checked and stored.
type AuthConfig struct {
	// JWTSecret verifies HS256 upstream tokens; when empty claims are read unverified
	// and the upstream remains the authority.
	JWTSecret             string
	Audience              string
	StateSecret           string
	RevokedNoticeCooldown time.Duration
}

type upstreamClaims struct {
	UserID   string      `json:"userId"`
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	FullName string      `json:"fullName"`
	Email    string      `json:"email"`
	Role     interface{} `json:"role"`
	jwt.RegisteredClaims
}

// AuthService is the application context: it hydrates, persists and clears the
// signed-in state of a browser and turns upstream 401s into notices.
type AuthService struct {
	states    authStateRepository
	notices   authNoticeRepository
	timer     *SessionTimer
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	key       [32]byte
	now       func() time.Time

	mu          sync.Mutex
	lastRevoked map[string]time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(states authStateRepository, notices authNoticeRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = appErrors.NewValidator()
	}
	if config.RevokedNoticeCooldown <= 0 {
		config.RevokedNoticeCooldown = 10 * time.Second
	}
	s := &AuthService{
		states:      states,
		notices:     notices,
		validator:   validate,
		logger:      logger,
		config:      config,
		key:         blake2b.Sum256([]byte(config.StateSecret)),
		now:         time.Now,
		lastRevoked: make(map[string]time.Time),
	}
	s.timer = NewSessionTimer(func(stateID string) {
		if err := s.states.Delete(context.Background(), stateID); err != nil {
			s.logger.Warn("failed to clear expired auth state", zap.String("state_id", stateID), zap.Error(err))
			return
		}
		s.logger.Info("auth state expired", zap.String("state_id", stateID))
	})
	return s
}

// Timer exposes the expiry scheduler.
func (s *AuthService) Timer() *SessionTimer {
	return s.timer
}

// ParseToken reads the principal out of an upstream bearer token.
func (s *AuthService) ParseToken(token string) (*models.Principal, error) {
	if token == "" {
		return nil, appErrors.ErrUnauthorized
	}
	claims := &upstreamClaims{}
	if s.config.JWTSecret != "" {
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(s.config.JWTSecret), nil
		}, jwt.WithTimeFunc(s.now))
		if err != nil || !parsed.Valid {
			return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
		}
	}

	if claims.ExpiresAt == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has no expiry")
	}
	if !claims.ExpiresAt.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token expired")
	}
	if s.config.Audience != "" && len(claims.Audience) > 0 && !containsString(claims.Audience, s.config.Audience) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token was issued for another client")
	}

	userID := firstNonEmptyString(claims.UserID, claims.ID, claims.Subject)
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has no subject")
	}
	role := dto.NormalizeRole(claims.Role)
	if role == models.RoleUnknown {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unsupported role")
	}
	return &models.Principal{
		UserID:    userID,
		Name:      firstNonEmptyString(claims.Name, claims.FullName),
		Email:     claims.Email,
		Role:      role,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Authenticate resolves the caller from a bearer token or, failing that, a persisted state id.
// With a bearer token the state id is only bound when that state belongs to the
// token's user; a missing or foreign state leaves the principal without one.
func (s *AuthService) Authenticate(ctx context.Context, bearer, stateID string) (*models.Principal, error) {
	if bearer != "" {
		principal, err := s.ParseToken(bearer)
		if err != nil {
			return nil, err
		}
		if stateID == "" {
			return principal, nil
		}
		state, err := s.states.FindByID(ctx, stateID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
		case state.UserID != principal.UserID:
			s.logger.Warn("ignoring auth state of another user",
				zap.String("state_id", stateID),
				zap.String("user_id", principal.UserID))
		default:
			principal.StateID = state.ID
		}
		return principal, nil
	}
	if stateID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	return s.Resolve(ctx, stateID)
}

// Hydrate persists the application context for a freshly issued token.
func (s *AuthService) Hydrate(ctx context.Context, token string, req models.CreateAuthStateRequest) (*models.AuthSessionView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid session payload")
	}
	principal, err := s.ParseToken(token)
	if err != nil {
		return nil, err
	}
	sealed, err := s.seal(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store session")
	}

	theme := req.Theme
	if theme == "" {
		theme = models.ThemeSystem
	}
	now := s.now().UTC()
	state := &models.AuthState{
		ID:             uuid.NewString(),
		UserID:         principal.UserID,
		Role:           principal.Role,
		DisplayName:    principal.Name,
		Email:          principal.Email,
		TokenSealed:    sealed,
		TokenExpiresAt: principal.ExpiresAt.UTC(),
		Theme:          theme,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.states.Save(ctx, state); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store session")
	}
	s.timer.Schedule(state.ID, state.TokenExpiresAt)
	s.logger.Info("auth state hydrated", zap.String("state_id", state.ID), zap.String("user_id", state.UserID), zap.String("role", string(state.Role)))
	return s.view(state), nil
}

// Resolve loads a persisted state and re-validates its token.
func (s *AuthService) Resolve(ctx context.Context, stateID string) (*models.Principal, error) {
	state, err := s.load(ctx, stateID)
	if err != nil {
		return nil, err
	}
	token, err := s.open(state.TokenSealed)
	if err != nil {
		_ = s.Clear(ctx, stateID)
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
	}
	principal, err := s.ParseToken(token)
	if err != nil {
		_ = s.Clear(ctx, stateID)
		return nil, err
	}
	if !s.timer.Scheduled(stateID) {
		s.timer.Schedule(stateID, state.TokenExpiresAt)
	}
	principal.StateID = state.ID
	if principal.Name == "" {
		principal.Name = state.DisplayName
	}
	return principal, nil
}

// Current returns the persisted context of the caller.
func (s *AuthService) Current(ctx context.Context, principal *models.Principal) (*models.AuthSessionView, error) {
	if principal == nil || principal.StateID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "no persisted session")
	}
	state, err := s.load(ctx, principal.StateID)
	if err != nil {
		return nil, err
	}
	return s.view(state), nil
}

// UpdateTheme persists the theme preference of the caller.
func (s *AuthService) UpdateTheme(ctx context.Context, principal *models.Principal, req models.UpdateThemeRequest) (*models.AuthSessionView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid theme")
	}
	if principal == nil || principal.StateID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "no persisted session")
	}
	if err := s.states.UpdateTheme(ctx, principal.StateID, req.Theme, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update theme")
	}
	return s.Current(ctx, principal)
}

// Clear deletes a persisted state and disarms its timer.
func (s *AuthService) Clear(ctx context.Context, stateID string) error {
	if stateID == "" {
		return nil
	}
	s.timer.Cancel(stateID)
	if err := s.states.Delete(ctx, stateID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear session")
	}
	return nil
}

// HandleUnauthorized reacts to an upstream 401: the caller's state is cleared
// and a revoked session additionally queues a notice, at most once per cooldown.
func (s *AuthService) HandleUnauthorized(ctx context.Context, upstreamErr *appErrors.Error) {
	principal, ok := models.PrincipalFromContext(ctx)
	if !ok {
		return
	}
	bg := context.WithoutCancel(ctx)
	if err := s.Clear(bg, principal.StateID); err != nil {
		s.logger.Warn("failed to clear auth state after 401", zap.String("state_id", principal.StateID), zap.Error(err))
	}
	if upstreamErr == nil || upstreamErr.Code != appErrors.ErrSessionRevoked.Code {
		return
	}
	if !s.allowRevokedNotice(principal.UserID) {
		return
	}
	if principal.StateID == "" {
		s.logger.Debug("revoked session without persisted state", zap.String("user_id", principal.UserID))
		return
	}
	notice := &models.AuthNotice{
		ID:        uuid.NewString(),
		StateID:   principal.StateID,
		UserID:    principal.UserID,
		Code:      appErrors.ErrSessionRevoked.Code,
		Message:   models.RevokedSessionMessage,
		CreatedAt: s.now().UTC(),
	}
	if err := s.notices.Create(bg, notice); err != nil {
		s.logger.Warn("failed to record revoked session notice", zap.String("user_id", principal.UserID), zap.Error(err))
		return
	}
	s.logger.Info("session revoked upstream", zap.String("user_id", principal.UserID))
}

// ConsumeNotices returns and deletes the notices queued for a cleared state.
func (s *AuthService) ConsumeNotices(ctx context.Context, stateID string) ([]models.AuthNotice, error) {
	if stateID == "" {
		return []models.AuthNotice{}, nil
	}
	notices, err := s.notices.Consume(ctx, stateID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notices")
	}
	if notices == nil {
		notices = []models.AuthNotice{}
	}
	return notices, nil
}

// PurgeExpired deletes states whose token already expired.
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.states.DeleteExpired(ctx, s.now().UTC())
}

func (s *AuthService) allowRevokedNotice(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if last, ok := s.lastRevoked[userID]; ok && now.Sub(last) < s.config.RevokedNoticeCooldown {
		return false
	}
	s.lastRevoked[userID] = now
	for id, at := range s.lastRevoked {
		if now.Sub(at) >= s.config.RevokedNoticeCooldown {
			delete(s.lastRevoked, id)
		}
	}
	return true
}

func (s *AuthService) load(ctx context.Context, stateID string) (*models.AuthState, error) {
	state, err := s.states.FindByID(ctx, stateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if !state.TokenExpiresAt.After(s.now()) {
		_ = s.Clear(ctx, stateID)
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
	}
	return state, nil
}

func (s *AuthService) view(state *models.AuthState) *models.AuthSessionView {
	return &models.AuthSessionView{
		StateID:          state.ID,
		UserID:           state.UserID,
		DisplayName:      state.DisplayName,
		Email:            state.Email,
		Role:             state.Role,
		Theme:            state.Theme,
		ExpiresInSeconds: s.timer.Remaining(state.TokenExpiresAt),
	}
}

func (s *AuthService) seal(token string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(token), &nonce, &s.key), nil
}

func (s *AuthService) open(sealed []byte) (string, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return "", errors.New("sealed token too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errors.New("sealed token failed authentication")
	}
	return string(plain), nil
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func firstNonEmptyString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
