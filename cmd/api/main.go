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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/edstack/academia-api/api/swagger"
	"github.com/edstack/academia-api/internal/handler"
	"github.com/edstack/academia-api/internal/middleware"
	"github.com/edstack/academia-api/internal/models"
	"github.com/edstack/academia-api/internal/repository"
	"github.com/edstack/academia-api/internal/service"
	"github.com/edstack/academia-api/pkg/cache"
	"github.com/edstack/academia-api/pkg/config"
	"github.com/edstack/academia-api/pkg/database"
	"github.com/edstack/academia-api/pkg/logger"
	corsmiddleware "github.com/edstack/academia-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edstack/academia-api/pkg/middleware/requestid"
	"github.com/edstack/academia-api/pkg/storage"
)

// @title Academia Timetable API
// @version 1.0.0
// @description Multi-tenant academic timetable scheduling service
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

	db, err := database.NewPostgres(cfg.Database, cfg.Allocator.LockTimeout)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TimetableTTL, logr, true)
	}

	// Repositories.
	tenantRepo := repository.NewTenantRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	periodRepo := repository.NewPeriodTemplateRepository(db)
	slotRepo := repository.NewTimetableSlotRepository(db)

	// Services.
	tenantSvc := service.NewTenantService(tenantRepo, nil, logr)
	batchSvc := service.NewBatchService(batchRepo, slotRepo, cacheSvc, nil, logr)
	classroomSvc := service.NewClassroomService(classroomRepo, nil, logr)
	facultySvc := service.NewFacultyService(facultyRepo, nil, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, nil, logr)
	periodSvc := service.NewPeriodTemplateService(periodRepo, nil, logr)
	timetableSvc := service.NewTimetableService(
		slotRepo, periodSvc, facultyRepo, batchRepo, classroomRepo, subjectRepo,
		cacheSvc, metricsSvc, nil, logr, cfg.Allocator,
	)
	generatorSvc := service.NewGeneratorService(timetableSvc, slotRepo, periodSvc, batchRepo, classroomRepo, nil, logr)
	workloadSvc := service.NewWorkloadService(facultyRepo, slotRepo, nil, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportRepo := repository.NewExportJobRepository(db)
		exportSvc = service.NewExportService(
			exportRepo, slotRepo, batchRepo, subjectRepo, facultyRepo, periodSvc,
			store, signer, nil, logr,
			service.ExportConfig{
				Workers:    cfg.Exports.WorkerConcurrency,
				Retries:    cfg.Exports.WorkerRetries,
				RetentionD: cfg.Exports.SignedURLTTL,
			},
		)
		exportSvc.Start(rootCtx)
		defer exportSvc.Stop()
	}

	// Handlers.
	tenantHandler := handler.NewTenantHandler(tenantSvc)
	batchHandler := handler.NewBatchHandler(batchSvc)
	classroomHandler := handler.NewClassroomHandler(classroomSvc)
	facultyHandler := handler.NewFacultyHandler(facultySvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	periodHandler := handler.NewPeriodTemplateHandler(periodSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc, generatorSvc)
	workloadHandler := handler.NewWorkloadHandler(workloadSvc)
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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	admin := []models.UserRole{models.RoleAdmin}
	staff := []models.UserRole{models.RoleAdmin, models.RoleHOD, models.RoleFaculty}
	everyone := []models.UserRole{models.RoleAdmin, models.RoleHOD, models.RoleFaculty, models.RoleStudent}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Auth(cfg.Auth))

	api.GET("/system/metrics", middleware.RequireRoles(admin...), metricsHandler.Snapshot)

	api.GET("/tenants", middleware.RequireRoles(admin...), tenantHandler.List)
	api.GET("/tenants/:id", middleware.RequireRoles(admin...), tenantHandler.Get)
	api.POST("/tenants", middleware.RequireRoles(admin...), tenantHandler.Create)
	api.DELETE("/tenants/:id", middleware.RequireRoles(admin...), tenantHandler.Delete)

	api.GET("/period-templates", middleware.RequireRoles(staff...), periodHandler.List)
	api.PUT("/period-templates", middleware.RequireRoles(admin...), periodHandler.Define)

	api.POST("/timetable/slots", middleware.RequireRoles(admin...), timetableHandler.Allocate)
	api.PUT("/timetable/slots/:id", middleware.RequireRoles(admin...), timetableHandler.Reschedule)
	api.POST("/timetable/slots/:id/retire", middleware.RequireRoles(admin...), timetableHandler.Retire)
	api.DELETE("/timetable/slots/:id", middleware.RequireRoles(admin...), timetableHandler.Delete)
	api.GET("/timetable/batch/:id", middleware.RequireRoles(everyone...), timetableHandler.BatchTimetable)
	api.GET("/timetable/faculty/:id", middleware.RequireRoles(staff...), timetableHandler.FacultyTimetable)
	api.POST("/timetable/generate", middleware.RequireRoles(admin...), timetableHandler.Generate)

	api.GET("/faculty-workload", middleware.RequireRoles(staff...), workloadHandler.List)
	api.GET("/faculty-workload/:id", middleware.RequireRoles(staff...), workloadHandler.Get)
	api.PATCH("/faculty-workload/:id", middleware.RequireRoles(admin...), workloadHandler.UpdateLimit)

	api.GET("/batches", middleware.RequireRoles(staff...), batchHandler.List)
	api.GET("/batches/:id", middleware.RequireRoles(staff...), batchHandler.Get)
	api.POST("/batches", middleware.RequireRoles(admin...), batchHandler.Create)
	api.PUT("/batches/:id", middleware.RequireRoles(admin...), batchHandler.Update)
	api.DELETE("/batches/:id", middleware.RequireRoles(admin...), batchHandler.Delete)

	api.GET("/classrooms", middleware.RequireRoles(staff...), classroomHandler.List)
	api.GET("/classrooms/:id", middleware.RequireRoles(staff...), classroomHandler.Get)
	api.POST("/classrooms", middleware.RequireRoles(admin...), classroomHandler.Create)
	api.PUT("/classrooms/:id", middleware.RequireRoles(admin...), classroomHandler.Update)
	api.DELETE("/classrooms/:id", middleware.RequireRoles(admin...), classroomHandler.Delete)

	api.GET("/subjects", middleware.RequireRoles(staff...), subjectHandler.List)
	api.GET("/subjects/program/:programCode/semester/:semester", middleware.RequireRoles(staff...), subjectHandler.ListBySemester)
	api.GET("/subjects/:id", middleware.RequireRoles(staff...), subjectHandler.Get)
	api.POST("/subjects", middleware.RequireRoles(admin...), subjectHandler.Create)
	api.PUT("/subjects/:id", middleware.RequireRoles(admin...), subjectHandler.Update)
	api.DELETE("/subjects/:id", middleware.RequireRoles(admin...), subjectHandler.Delete)

	api.GET("/faculty", middleware.RequireRoles(staff...), facultyHandler.List)
	api.GET("/faculty/:id", middleware.RequireRoles(staff...), facultyHandler.Get)
	api.POST("/faculty", middleware.RequireRoles(admin...), facultyHandler.Create)
	api.PUT("/faculty/:id", middleware.RequireRoles(admin...), facultyHandler.Update)
	api.DELETE("/faculty/:id", middleware.RequireRoles(admin...), facultyHandler.Deactivate)

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		api.POST("/exports/timetable", middleware.RequireRoles(models.RoleAdmin, models.RoleHOD), exportHandler.Create)
		api.GET("/exports/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleHOD), exportHandler.Get)
		// Download authorizes via the signed token, not the JWT.
		r.GET(cfg.APIPrefix+"/exports/download/:token", exportHandler.Download)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
