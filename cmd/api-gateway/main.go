package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/grievance-api/api/swagger"
	"github.com/noah-isme/grievance-api/internal/handler"
	"github.com/noah-isme/grievance-api/internal/middleware"
	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/internal/repository"
	"github.com/noah-isme/grievance-api/internal/service"
	"github.com/noah-isme/grievance-api/pkg/config"
	"github.com/noah-isme/grievance-api/pkg/database"
	"github.com/noah-isme/grievance-api/pkg/export"
	"github.com/noah-isme/grievance-api/pkg/jobs"
	"github.com/noah-isme/grievance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/grievance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/grievance-api/pkg/middleware/requestid"
	"github.com/noah-isme/grievance-api/pkg/pubsub"
	"github.com/noah-isme/grievance-api/pkg/storage"
)

// @title Grievance API
// @version 1.0.0
// @description Grievance submission, administrator lifecycle and reporting.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pubsub.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, lifecycle events will not be published", zap.Error(err))
			redisClient = nil
		}
	}

	attachments, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare attachment storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL)

	grievanceRepo := repository.NewGrievanceRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	metricsSvc := service.NewMetricsService()

	var notifier *service.NotificationService
	if cfg.Notifications.Enabled {
		publisher := repository.NewEventPublisher(redisClient, cfg.Notifications.Channel, logr)
		defer publisher.Close() //nolint:errcheck
		notifier = service.NewNotificationService(publisher, metricsSvc, logr)
		queue := jobs.NewQueue("grievance-events", notifier.Handle, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()
		notifier.Attach(queue)
	}

	validate := validator.New()
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})
	deps := service.GrievanceServiceDeps{
		Grievances: grievanceRepo,
		Comments:   commentRepo,
		Users:      userRepo,
		Storage:    attachments,
		Signer:     signer,
		Audit:      auditRepo,
		Metrics:    metricsSvc,
	}
	if notifier != nil {
		deps.Notifier = notifier
	}
	grievanceSvc := service.NewGrievanceService(deps, validate, logr, service.GrievanceServiceConfig{
		MaxAttachments:           cfg.Attachments.MaxCount,
		MaxFileSize:              cfg.Attachments.MaxFileSizeBytes,
		AllowedMIMEs:             cfg.Attachments.AllowedMIMEs,
		APIPrefix:                cfg.APIPrefix,
		CommentsParticipantsOnly: cfg.Grievances.CommentsParticipantsOnly,
	})
	statsSvc := service.NewGrievanceStatsService(grievanceRepo, validate, logr, cfg.Grievances.RecentLimit)
	exportSvc := service.NewExportService(statsSvc, logr, export.NewCSVExporter(), export.NewPDFExporter())

	grievanceHandler := handler.NewGrievanceHandler(grievanceSvc, statsSvc)
	adminHandler := handler.NewAdminGrievanceHandler(grievanceSvc, statsSvc, exportSvc)
	authHandler := handler.NewAuthHandler(userRepo)
	checks := map[string]handler.Pinger{"database": db}
	if redisClient != nil {
		checks["redis"] = handler.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.AuditOrigin())
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/grievances/:id/attachments/:index/download", middleware.OptionalJWT(authSvc), grievanceHandler.DownloadAttachment)

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))
	secured.GET("/me", authHandler.Me)

	grievances := secured.Group("/grievances")
	grievances.POST("", grievanceHandler.Submit)
	grievances.GET("", grievanceHandler.List)
	grievances.GET("/recent", grievanceHandler.Recent)
	grievances.GET("/stats", grievanceHandler.Stats)
	grievances.GET("/dashboard", grievanceHandler.Dashboard)
	grievances.GET("/:id", grievanceHandler.Get)
	grievances.POST("/:id/comments", grievanceHandler.AddComment)
	grievances.GET("/:id/attachments/:index/url", grievanceHandler.AttachmentURL)

	admin := secured.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/grievances", grievanceHandler.List)
	admin.GET("/grievances/export", adminHandler.Export)
	admin.PUT("/grievances/:id", adminHandler.Transition)
	admin.DELETE("/grievances/:id", adminHandler.Delete)
	admin.GET("/stats", grievanceHandler.Stats)
	admin.GET("/users-with-grievances", adminHandler.UsersWithGrievances)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
