package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/kenny1934/tutoring-management-system-sub000/api/swagger"
	"github.com/kenny1934/tutoring-management-system-sub000/internal/handler"
	"github.com/kenny1934/tutoring-management-system-sub000/internal/middleware"
	"github.com/kenny1934/tutoring-management-system-sub000/internal/repository"
	"github.com/kenny1934/tutoring-management-system-sub000/internal/service"
	"github.com/kenny1934/tutoring-management-system-sub000/pkg/cache"
	"github.com/kenny1934/tutoring-management-system-sub000/pkg/config"
	"github.com/kenny1934/tutoring-management-system-sub000/pkg/database"
	"github.com/kenny1934/tutoring-management-system-sub000/pkg/jobs"
	"github.com/kenny1934/tutoring-management-system-sub000/pkg/logger"
	corsmiddleware "github.com/kenny1934/tutoring-management-system-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/kenny1934/tutoring-management-system-sub000/pkg/middleware/requestid"
)

// @title Tutoring Session API
// @version 1.0.0
// @description Session lifecycle, make-up scheduling and deadline management
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()

	sessionRepo := repository.NewSessionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	holidayRepo := repository.NewHolidayRepository(db)
	proposalRepo := repository.NewMakeupProposalRepository(db)
	extensionRepo := repository.NewExtensionRequestRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	notificationSvc := service.NewNotificationService(jobs.QueueConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		MaxRetries: cfg.Notifications.WorkerRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr)
	if cfg.Notifications.Enabled {
		notificationSvc.Start(ctx)
		defer notificationSvc.Stop()
	}

	holidaySvc := service.NewHolidayService(holidayRepo, cacheRepo, cfg.Scheduling.HolidayCacheTTL, validate, logr)
	deadlineSvc := service.NewDeadlineService(enrollmentRepo, holidaySvc, logr)
	bookingValidator := service.NewBookingValidator(sessionRepo, enrollmentRepo, extensionRepo, holidaySvc, cfg.Scheduling.MakeupWindowDays, metricsSvc, logr)
	sessionSvc := service.NewSessionService(sessionRepo, bookingValidator, notificationSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, sessionRepo, holidaySvc, validate, logr)
	proposalSvc := service.NewMakeupProposalService(proposalRepo, sessionRepo, extensionRepo, bookingValidator, notificationSvc, metricsSvc, cfg.Scheduling.MaxProposalSlots, validate, logr)
	extensionSvc := service.NewExtensionRequestService(extensionRepo, sessionRepo, enrollmentRepo, notificationSvc, validate, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     "tutoring-session-api",
	})

	authHandler := handler.NewAuthHandler(authSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, deadlineSvc)
	bookingHandler := handler.NewBookingHandler(bookingValidator)
	proposalHandler := handler.NewMakeupProposalHandler(proposalSvc)
	extensionHandler := handler.NewExtensionRequestHandler(extensionSvc)
	holidayHandler := handler.NewHolidayHandler(holidaySvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/sessions", sessionHandler.List)
	authed.POST("/sessions", sessionHandler.Create)
	authed.GET("/sessions/:id", sessionHandler.Get)
	authed.PUT("/sessions/:id/attendance", sessionHandler.MarkAttendance)
	authed.PUT("/sessions/:id/miss", sessionHandler.DeclareMiss)
	authed.PUT("/sessions/:id/cancel", sessionHandler.Cancel)
	authed.GET("/sessions/:id/root-original", sessionHandler.RootOriginal)

	authed.GET("/enrollments", enrollmentHandler.List)
	authed.POST("/enrollments", enrollmentHandler.Create)
	authed.GET("/enrollments/:id", enrollmentHandler.Get)
	authed.DELETE("/enrollments/:id", middleware.RequireAdmin(), enrollmentHandler.Cancel)
	authed.GET("/enrollments/:id/effective-end-date", enrollmentHandler.EffectiveEndDate)
	authed.GET("/students/:studentId/deadline", enrollmentHandler.StudentDeadline)

	authed.POST("/bookings/validate", bookingHandler.Validate)

	authed.GET("/makeup-proposals", proposalHandler.List)
	authed.POST("/makeup-proposals", proposalHandler.Create)
	authed.GET("/makeup-proposals/:id", proposalHandler.Get)
	authed.POST("/makeup-proposals/:id/slots/:slotId/approve", proposalHandler.ApproveSlot)
	authed.POST("/makeup-proposals/:id/slots/:slotId/reject", proposalHandler.RejectSlot)
	authed.POST("/makeup-proposals/:id/reject", proposalHandler.Reject)
	authed.DELETE("/makeup-proposals/:id", proposalHandler.Cancel)

	authed.GET("/extension-requests", extensionHandler.List)
	authed.POST("/extension-requests", extensionHandler.Create)
	authed.GET("/extension-requests/:id", extensionHandler.Get)
	authed.POST("/extension-requests/:id/approve", middleware.RequireAdmin(), extensionHandler.Approve)
	authed.POST("/extension-requests/:id/reject", middleware.RequireAdmin(), extensionHandler.Reject)
	authed.POST("/extension-requests/:id/mark-rescheduled", middleware.RequireAdmin(), extensionHandler.MarkRescheduled)

	authed.GET("/holidays", holidayHandler.List)
	authed.POST("/holidays", middleware.RequireAdmin(), holidayHandler.Create)
	authed.DELETE("/holidays/:id", middleware.RequireAdmin(), holidayHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		<-ctx.Done()
		logr.Sugar().Infow("shutting down server")
		_ = server.Shutdown(context.Background())
	}()

	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
