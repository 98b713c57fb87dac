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

	_ "github.com/tatamihq/academy-api/api/swagger"
	"github.com/tatamihq/academy-api/internal/handler"
	"github.com/tatamihq/academy-api/internal/middleware"
	"github.com/tatamihq/academy-api/internal/models"
	"github.com/tatamihq/academy-api/internal/repository"
	"github.com/tatamihq/academy-api/internal/service"
	"github.com/tatamihq/academy-api/pkg/cache"
	"github.com/tatamihq/academy-api/pkg/clock"
	"github.com/tatamihq/academy-api/pkg/config"
	"github.com/tatamihq/academy-api/pkg/database"
	"github.com/tatamihq/academy-api/pkg/jobs"
	"github.com/tatamihq/academy-api/pkg/logger"
	corsmiddleware "github.com/tatamihq/academy-api/pkg/middleware/cors"
	reqidmiddleware "github.com/tatamihq/academy-api/pkg/middleware/requestid"
)

// @title Academy API
// @version 1.0.0
// @description Schedule, attendance and promotion tracking for martial-arts academies
// @BasePath /api/v1
// @schemes http
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, calendar responses will not be cached", "error", err)
		redisClient = nil
	}

	sysClock := clock.System{}
	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	rankRepo := repository.NewRankRepository(db)
	seriesRepo := repository.NewSeriesRepository(db)
	eventRepo := repository.NewEventRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, sysClock, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     "academy-api",
	})
	calendarSvc := service.NewCalendarService(seriesRepo, eventRepo, cacheRepo, sysClock, service.CalendarConfig{
		PastMonths:   cfg.Calendar.PastMonths,
		FutureMonths: cfg.Calendar.FutureMonths,
		CacheTTL:     cfg.Calendar.CacheTTL,
	}, logr).WithMetrics(metricsSvc)

	refreshQueue := jobs.NewQueue("calendar-refresh", func(ctx context.Context, job jobs.Job) error {
		return calendarSvc.Refresh(ctx)
	}, jobs.QueueConfig{
		Workers:    cfg.Jobs.WorkerConcurrency,
		MaxRetries: cfg.Jobs.WorkerRetries,
		Logger:     logr,
	})
	refreshQueue.Start(ctx)
	defer refreshQueue.Stop()

	seriesSvc := service.NewSeriesService(seriesRepo, calendarSvc, refreshQueue, validate, logr)
	eventSvc := service.NewEventService(eventRepo, memberRepo, calendarSvc, refreshQueue, validate, logr)
	memberSvc := service.NewMemberService(memberRepo, userRepo, validate, sysClock, logr)
	rankSvc := service.NewRankService(rankRepo, validate, logr)
	promotionSvc := service.NewPromotionService(memberRepo, memberRepo, rankRepo, sysClock, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, memberRepo, seriesRepo, rankRepo, validate, sysClock, logr)
	exportSvc := service.NewExportService(attendanceRepo, seriesRepo, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	memberHandler := handler.NewMemberHandler(memberSvc, promotionSvc)
	rankHandler := handler.NewRankHandler(rankSvc)
	seriesHandler := handler.NewSeriesHandler(seriesSvc)
	eventHandler := handler.NewEventHandler(eventSvc)
	calendarHandler := handler.NewCalendarHandler(calendarSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, exportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.GET("/auth/me", authHandler.Me)

	master := string(models.RoleMaster)

	authed.GET("/members", middleware.RBAC(master), memberHandler.List)
	authed.POST("/members", middleware.RBAC(master), memberHandler.Create)
	authed.GET("/members/:id", middleware.RBAC(master, "SELF"), memberHandler.Get)
	authed.PUT("/members/:id", middleware.RBAC(master, "SELF"), memberHandler.Update)
	authed.DELETE("/members/:id", middleware.RBAC(master), memberHandler.Delete)
	authed.POST("/members/:id/promote", middleware.RBAC(master), memberHandler.Promote)
	authed.GET("/members/:id/promotions", middleware.RBAC(master, "SELF"), memberHandler.PromotionHistory)
	authed.GET("/members/:id/attendance", middleware.RBAC(master, "SELF"), attendanceHandler.History)

	authed.GET("/ranks", rankHandler.List)
	authed.POST("/ranks", middleware.RBAC(master), rankHandler.Create)
	authed.PUT("/ranks/:id", middleware.RBAC(master), rankHandler.Update)
	authed.DELETE("/ranks/:id", middleware.RBAC(master), rankHandler.Delete)

	authed.GET("/series", seriesHandler.List)
	authed.POST("/series", middleware.RBAC(master), seriesHandler.Create)
	authed.GET("/series/:id", seriesHandler.Get)
	authed.PUT("/series/:id", middleware.RBAC(master), seriesHandler.Update)
	authed.DELETE("/series/:id", middleware.RBAC(master), seriesHandler.Delete)
	authed.PUT("/series/:id/exceptions", middleware.RBAC(master), seriesHandler.UpsertException)
	authed.DELETE("/series/:id/exceptions/:date", middleware.RBAC(master), seriesHandler.DeleteException)
	authed.GET("/series/:id/report", middleware.RBAC(master), attendanceHandler.ClassReport)
	authed.GET("/series/:id/report/csv", middleware.RBAC(master), attendanceHandler.ExportCSV)
	authed.GET("/series/:id/report/pdf", middleware.RBAC(master), attendanceHandler.ExportPDF)

	authed.GET("/events", eventHandler.List)
	authed.POST("/events", middleware.RBAC(master), eventHandler.Create)
	authed.GET("/events/:id", eventHandler.Get)
	authed.PUT("/events/:id", middleware.RBAC(master), eventHandler.Update)
	authed.DELETE("/events/:id", middleware.RBAC(master), eventHandler.Delete)
	authed.PUT("/events/:id/registrants/:memberId", middleware.RBAC(master), eventHandler.Register)
	authed.DELETE("/events/:id/registrants/:memberId", middleware.RBAC(master), eventHandler.Unregister)

	authed.GET("/calendar", calendarHandler.Instances)

	authed.POST("/attendance/mark", middleware.RBAC(master), attendanceHandler.Mark)
	authed.POST("/attendance/unmark", middleware.RBAC(master), attendanceHandler.Unmark)
	authed.POST("/attendance/bulk-mark", middleware.RBAC(master), attendanceHandler.BulkMarkPresent)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logr.Sugar().Errorw("shutdown error", "error", err)
	}
}
