package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campushub/events-api/api/swagger"
	"github.com/campushub/events-api/internal/handler"
	"github.com/campushub/events-api/internal/middleware"
	"github.com/campushub/events-api/internal/models"
	"github.com/campushub/events-api/internal/repository"
	"github.com/campushub/events-api/internal/service"
	"github.com/campushub/events-api/pkg/cache"
	"github.com/campushub/events-api/pkg/config"
	"github.com/campushub/events-api/pkg/database"
	"github.com/campushub/events-api/pkg/jobs"
	"github.com/campushub/events-api/pkg/logger"
	corsmiddleware "github.com/campushub/events-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushub/events-api/pkg/middleware/requestid"
	"github.com/campushub/events-api/pkg/storage"
)

// @title Campus Events API
// @version 1.0.0
// @description Event registration and attendance lifecycle service
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Stats caching degrades to direct reads without Redis.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	blobStore, err := storage.NewLocalStorage(cfg.Storage.BaseDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init blob storage", "error", err)
	}

	eventRepo := repository.NewEventRepository(db)
	regRepo := repository.NewRegistrationRepository(db)
	logRepo := repository.NewAttendanceLogRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier := service.NewNotificationService(logr)
	queue := jobs.NewQueue("notifications", notifier.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()
	notifier.Bind(queue)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	eventSvc := service.NewEventService(eventRepo, validate, logr)
	lifecycleSvc := service.NewLifecycleService(eventRepo, logr, nil)
	lifecycleSvc.BindMetrics(metricsSvc)
	regSvc := service.NewRegistrationService(regRepo, eventRepo, userRepo, notifier, logr, nil)
	attendanceSvc := service.NewAttendanceService(regRepo, eventRepo, logRepo, cacheRepo, logr, nil, cfg.Attendance.StatsCacheTTL)

	go lifecycleSvc.Run(ctx, cfg.Lifecycle.SweepInterval)

	authH := handler.NewAuthHandler(authSvc)
	userH := handler.NewUserHandler(userSvc)
	eventH := handler.NewEventHandler(eventSvc, lifecycleSvc)
	regH := handler.NewRegistrationHandler(regSvc)
	attendanceH := handler.NewAttendanceHandler(attendanceSvc, metricsSvc)
	proofSigner := storage.NewProofLinkSigner(cfg.JWT.Secret, cfg.Storage.ProofLinkTTL)
	uploadH := handler.NewUploadHandler(blobStore, proofSigner)
	metricsH := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsH.Health)
	r.GET("/ready", metricsH.Health)
	r.GET("/metrics", metricsH.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), authSvc, authH, userH, eventH, regH, attendanceH, uploadH)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func registerRoutes(
	api *gin.RouterGroup,
	authSvc *service.AuthService,
	authH *handler.AuthHandler,
	userH *handler.UserHandler,
	eventH *handler.EventHandler,
	regH *handler.RegistrationHandler,
	attendanceH *handler.AttendanceHandler,
	uploadH *handler.UploadHandler,
) {
	authed := middleware.JWT(authSvc)
	staff := middleware.RequireRoles(models.RoleOrganizer, models.RoleAdmin)
	participant := middleware.RequireRoles(models.RoleParticipant)
	admin := middleware.RequireRoles(models.RoleAdmin)

	api.POST("/auth/login", authH.Login)
	api.POST("/auth/signup", userH.Signup)
	api.GET("/auth/me", authed, authH.Me)

	events := api.Group("/events")
	{
		// Optional auth so organizers see their own drafts in listings.
		events.GET("", middleware.OptionalJWT(authSvc), eventH.List)
		events.GET("/:id", middleware.OptionalJWT(authSvc), eventH.Get)

		events.POST("", authed, staff, eventH.Create)
		events.PATCH("/:id", authed, staff, eventH.Update)
		events.POST("/:id/publish", authed, staff, eventH.Publish)
		events.POST("/:id/status", authed, staff, eventH.SetStatus)

		events.GET("/:id/attendance", authed, staff, attendanceH.List)
		events.GET("/:id/attendance/logs", authed, staff, attendanceH.Logs)
		events.GET("/:id/attendance/export", authed, staff, attendanceH.Export)
	}

	registrations := api.Group("/registrations", authed)
	{
		registrations.POST("", participant, regH.Create)
		registrations.GET("", participant, regH.ListMine)
		registrations.GET("/:id/ticket", participant, regH.Ticket)
		registrations.POST("/:id/cancel", participant, regH.Cancel)

		registrations.POST("/:id/review", staff, regH.Review)
		registrations.POST("/:id/attendance", staff, attendanceH.Override)
	}

	api.POST("/attendance/scan", authed, staff, attendanceH.Scan)

	uploads := api.Group("/uploads", authed)
	{
		uploads.POST("/payment-proofs", participant, uploadH.UploadProof)
		uploads.GET("/payment-proofs", staff, uploadH.GetProof)
	}

	users := api.Group("/users", authed, admin)
	{
		users.GET("", userH.List)
		users.POST("/organizers", userH.CreateOrganizer)
		users.GET("/:id", userH.Get)
		users.POST("/:id/active", userH.SetActive)
	}
}
