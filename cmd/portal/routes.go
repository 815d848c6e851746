package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/classroom-portal/api/swagger"
	"github.com/noah-isme/classroom-portal/internal/handler"
	"github.com/noah-isme/classroom-portal/internal/middleware"
	"github.com/noah-isme/classroom-portal/internal/models"
	"github.com/noah-isme/classroom-portal/pkg/config"
	"github.com/noah-isme/classroom-portal/pkg/logger"
	corsmiddleware "github.com/noah-isme/classroom-portal/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/classroom-portal/pkg/middleware/requestid"
	"github.com/noah-isme/classroom-portal/pkg/response"
)

func newRouter(cfg *config.Config, svc *services, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowHeaders:   []string{reqidmiddleware.Header, middleware.StateHeader},
		ExposeHeaders:  []string{reqidmiddleware.Header, response.RedirectHeader},
	}))
	r.Use(middleware.Metrics(svc.metrics, "/health", "/ready", "/metrics"))

	metricsHandler := handler.NewMetricsHandler(svc.metrics, map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(svc.auth)
	sessionHandler := handler.NewSessionHandler(svc.queries, svc.search, svc.booking)
	slotHandler := handler.NewSlotHandler(svc.slots)
	calendarHandler := handler.NewCalendarHandler(svc.calendar, svc.exports)
	enrollmentHandler := handler.NewEnrollmentHandler(svc.enrollment)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/session", authHandler.Hydrate)
	api.GET("/auth/notices", authHandler.Notices)

	authed := api.Group("")
	authed.Use(middleware.Auth(svc.auth), middleware.WithResponseMeta())
	authed.GET("/auth/session", authHandler.Current)
	authed.PATCH("/auth/session/theme", authHandler.UpdateTheme)
	authed.DELETE("/auth/session", authHandler.Logout)

	portal := authed.Group("/portal")
	portal.GET("/enrollment", enrollmentHandler.Get)
	portal.GET("/slots", slotHandler.Available)
	portal.GET("/calendar", calendarHandler.View)
	portal.GET("/calendar/days/:date", calendarHandler.Day)
	portal.GET("/calendar/export", calendarHandler.Export)

	portal.GET("/sessions", sessionHandler.List)
	portal.GET("/sessions/:id", sessionHandler.Get)
	portal.POST("/sessions", middleware.RequireRoles(models.RoleStudent), sessionHandler.Request)
	portal.POST("/sessions/:id/cancel", sessionHandler.Cancel)
	portal.POST("/sessions/:id/reschedule", sessionHandler.Reschedule)

	teacherOnly := middleware.RequireRoles(models.RoleTeacher)
	portal.POST("/sessions/:id/accept", teacherOnly, sessionHandler.Accept)
	portal.POST("/sessions/:id/reject", teacherOnly, sessionHandler.Reject)
	portal.GET("/teacher/requests", teacherOnly, sessionHandler.TeacherRequests)
	portal.POST("/teacher/schedule", teacherOnly, sessionHandler.TeacherSchedule)

	return r
}
