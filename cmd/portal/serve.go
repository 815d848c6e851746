package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-portal/internal/migrations"
	"github.com/noah-isme/classroom-portal/internal/repository"
	"github.com/noah-isme/classroom-portal/internal/service"
	"github.com/noah-isme/classroom-portal/pkg/cache"
	"github.com/noah-isme/classroom-portal/pkg/config"
	"github.com/noah-isme/classroom-portal/pkg/database"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
	"github.com/noah-isme/classroom-portal/pkg/export"
	"github.com/noah-isme/classroom-portal/pkg/jobs"
	"github.com/noah-isme/classroom-portal/pkg/logger"
)

const (
	taskPurgeAuthStates = "purge-auth-states"
	taskCacheInvalidate = "cache-invalidate"
)

// services is the wired application graph.
type services struct {
	metrics    *service.MetricsService
	cache      *service.CacheService
	enrollment *service.EnrollmentService
	slots      *service.SlotService
	queries    *service.SessionQueryService
	search     *service.SessionSearch
	booking    *service.BookingService
	calendar   *service.CalendarService
	exports    *service.ExportService
	auth       *service.AuthService
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	svc := buildServices(cfg, db, redisClient, logr)
	defer svc.auth.Timer().Stop()

	queue := jobs.New("maintenance", maintenanceHandler(svc, logr), jobs.Config{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	svc.cache.OnInvalidateFailure(func(pattern string) {
		task := jobs.Task{Kind: taskCacheInvalidate, Key: taskCacheInvalidate + ":" + pattern, Payload: pattern}
		if err := queue.Submit(task); err != nil {
			logr.Warn("cache invalidation retry dropped", zap.String("pattern", pattern), zap.Error(err))
		}
	})
	queue.Every(ctx, cfg.Auth.PurgeInterval, jobs.Task{Kind: taskPurgeAuthStates, Key: taskPurgeAuthStates})

	router := newRouter(cfg, svc, db, redisClient, logr)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildServices(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) *services {
	loc := cfg.Scheduling.Location()
	validate := appErrors.NewValidator()
	metrics := service.NewMetricsService()

	client := repository.NewClassroomClient(repository.ClientConfig{
		BaseURL:     cfg.Upstream.BaseURL,
		Timeout:     cfg.Upstream.Timeout,
		ReadRetries: cfg.Upstream.ReadRetries,
	}, nil, metrics, logr)
	sessionRepo := repository.NewSessionRepository(client)
	enrollmentRepo := repository.NewEnrollmentRepository(client)

	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Cache.SessionTTL, logr, cfg.Cache.Enabled)
	enrollment := service.NewEnrollmentService(enrollmentRepo, cacheSvc, cfg.Cache.EnrollmentTTL, logr)
	slots := service.NewSlotService(sessionRepo, enrollment, cacheSvc, validate, service.SlotRules{
		Location:        loc,
		SessionDuration: cfg.Scheduling.SessionDuration,
		WindowStartHour: cfg.Scheduling.StudentWindowStart,
		WindowEndHour:   cfg.Scheduling.StudentWindowEnd,
	}, cfg.Cache.SlotTTL, logr)
	queries := service.NewSessionQueryService(sessionRepo, cacheSvc, cfg.Cache.SessionTTL, loc, logr)
	calendar := service.NewCalendarService(queries, service.NewCalendarNavigator(loc), cfg.Scheduling.MonthInlineLimit, logr)

	auth := service.NewAuthService(
		repository.NewAuthStateRepository(db),
		repository.NewAuthNoticeRepository(db),
		validate,
		logr,
		service.AuthConfig{
			JWTSecret:             cfg.Upstream.JWTSecret,
			Audience:              cfg.Upstream.OAuthClientID,
			StateSecret:           cfg.Auth.StateSecret,
			RevokedNoticeCooldown: cfg.Auth.RevokedNoticeCooldown,
		},
	)
	client.OnUnauthorized(auth.HandleUnauthorized)

	return &services{
		metrics:    metrics,
		cache:      cacheSvc,
		enrollment: enrollment,
		slots:      slots,
		queries:    queries,
		search:     service.NewSessionSearch(queries, cfg.Scheduling.SearchDebounce),
		booking:    service.NewBookingService(sessionRepo, queries, slots, enrollment, cacheSvc, metrics, validate, logr),
		calendar:   calendar,
		exports:    service.NewExportService(calendar, export.NewCSV(), export.NewPDF(), logr),
		auth:       auth,
	}
}

func maintenanceHandler(svc *services, logr *zap.Logger) jobs.Handler {
	return func(ctx context.Context, task jobs.Task) error {
		switch task.Kind {
		case taskPurgeAuthStates:
			removed, err := svc.auth.PurgeExpired(ctx)
			if err != nil {
				return err
			}
			if removed > 0 {
				logr.Info("expired auth states purged", zap.Int64("count", removed))
			}
			return nil
		case taskCacheInvalidate:
			return svc.cache.Purge(ctx, task.Payload)
		default:
			return fmt.Errorf("unknown task kind %q", task.Kind)
		}
	}
}

func migrate(parent context.Context, direction string, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(parent, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	migrator, err := migrations.NewMigrator(db.DB, logr)
	if err != nil {
		return err
	}
	switch direction {
	case "up":
		return migrator.Up(parent)
	case "down":
		return migrator.Down(parent)
	default:
		version, err := migrator.Version(parent)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "schema version %d\n", version)
		return nil
	}
}
