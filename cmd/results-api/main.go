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

	_ "github.com/Emino08/school-results-api/api/swagger"
	"github.com/Emino08/school-results-api/internal/handler"
	"github.com/Emino08/school-results-api/internal/middleware"
	"github.com/Emino08/school-results-api/internal/models"
	"github.com/Emino08/school-results-api/internal/repository"
	"github.com/Emino08/school-results-api/internal/service"
	"github.com/Emino08/school-results-api/pkg/cache"
	"github.com/Emino08/school-results-api/pkg/config"
	"github.com/Emino08/school-results-api/pkg/database"
	"github.com/Emino08/school-results-api/pkg/jobs"
	"github.com/Emino08/school-results-api/pkg/logger"
	corsmiddleware "github.com/Emino08/school-results-api/pkg/middleware/cors"
	reqidmiddleware "github.com/Emino08/school-results-api/pkg/middleware/requestid"
	"github.com/Emino08/school-results-api/pkg/storage"
)

// @title School Results API
// @version 1.0.0
// @description Exam results core: marks, approval, grading, rankings, publication and pin-gated lookups
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, gate caching disabled", "error", err)
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	resultRepo := repository.NewResultRepository(db)
	gradingRepo := repository.NewGradingRepository(db)
	subjectRankingRepo := repository.NewSubjectRankingRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)
	publicationRepo := repository.NewPublicationRepository(db)
	pinRepo := repository.NewPinRepository(db)
	correctionRepo := repository.NewCorrectionRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      "school-results-api",
	})
	gradingSvc := service.NewGradingService(gradingRepo, validate, logr)
	resultSvc := service.NewResultService(resultRepo, validate, logr)
	rankingSvc := service.NewRankingService(resultRepo, subjectRankingRepo, summaryRepo, metricsSvc, logr)
	summarySvc := service.NewSummaryService(resultRepo, summaryRepo, subjectRankingRepo, gradingSvc, metricsSvc, validate, logr)
	publicationSvc := service.NewPublicationService(publicationRepo, resultRepo, cacheRepo, cfg.Publication.GateCacheTTL, validate, logr)
	pinSvc := service.NewPinService(pinRepo, studentRepo, nil, metricsSvc,
		cfg.Pins.CodeLength, cfg.Pins.DefaultMaxChecks, cfg.Pins.DefaultExpiryDays, validate, logr)
	correctionSvc := service.NewCorrectionService(correctionRepo, resultRepo, rankingSvc, summarySvc, validate, logr)
	lookupSvc := service.NewLookupService(publicationSvc, pinSvc, summaryRepo, resultRepo, gradingSvc, validate, logr)
	exportSvc := service.NewExportService(summaryRepo, resultRepo, studentRepo, gradingSvc, store, signer, cfg.SchoolName, logr)

	// School-wide pin issuance fans out one job per class.
	pinQueue := jobs.NewQueue("pin-batch", pinSvc.HandleBatchJob, jobs.QueueConfig{
		Workers: cfg.Pins.BatchWorkers,
		Logger:  logr,
	})
	pinQueue.Start(ctx)
	defer pinQueue.Stop()
	pinSvc.SetQueue(pinQueue)

	// Rendered exports are pruned on a timer once their retention lapses.
	go func() {
		ticker := time.NewTicker(cfg.Exports.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				exportSvc.SweepExpired(cfg.Exports.RetentionTTL)
			}
		}
	}()

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	resultHandler := handler.NewResultHandler(resultSvc)
	gradingHandler := handler.NewGradingHandler(gradingSvc)
	rankingHandler := handler.NewRankingHandler(rankingSvc)
	summaryHandler := handler.NewSummaryHandler(summarySvc)
	publicationHandler := handler.NewPublicationHandler(publicationSvc)
	pinHandler := handler.NewPinHandler(pinSvc)
	correctionHandler := handler.NewCorrectionHandler(correctionSvc)
	lookupHandler := handler.NewLookupHandler(lookupSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
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
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Public surface: login and the anonymous pin-gated lookup.
	api.POST("/auth/login", authHandler.Login)
	api.POST("/lookup", lookupHandler.Check)
	api.POST("/pins/status", pinHandler.Status)
	api.GET("/exports/download", exportHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleExamOfficer, models.RoleHeadOfExams)
	officers := middleware.RequireRoles(models.RoleAdmin, models.RoleExamOfficer, models.RoleHeadOfExams)
	examsHead := middleware.RequireRoles(models.RoleAdmin, models.RoleHeadOfExams)

	authed.POST("/results", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), resultHandler.Submit)
	authed.GET("/results", staff, resultHandler.List)
	authed.GET("/results/:id", staff, resultHandler.Get)
	authed.POST("/results/:id/approve", officers, resultHandler.Approve)
	authed.POST("/results/:id/reject", officers, resultHandler.Reject)

	authed.GET("/grading/ranges", staff, gradingHandler.List)
	authed.POST("/grading/ranges", examsHead, gradingHandler.Create)
	authed.PUT("/grading/ranges/:id", examsHead, gradingHandler.Update)
	authed.DELETE("/grading/ranges/:id", examsHead, gradingHandler.Deactivate)
	authed.GET("/grading/resolve", staff, gradingHandler.Resolve)

	authed.POST("/rankings/subject", officers, rankingHandler.RankSubject)
	authed.POST("/rankings/class", officers, rankingHandler.RankClass)
	authed.GET("/rankings/subject", staff, rankingHandler.SubjectRankings)

	authed.POST("/summaries/build", officers, summaryHandler.Build)
	authed.GET("/summaries/standings", staff, summaryHandler.ClassStandings)
	authed.GET("/summaries/:examId/:studentId", staff, summaryHandler.Get)
	authed.POST("/summaries/:examId/publish", examsHead, summaryHandler.Publish)

	authed.POST("/publications", examsHead, publicationHandler.Create)
	authed.GET("/publications/:examId", staff, publicationHandler.Get)
	authed.POST("/publications/:examId/show", examsHead, publicationHandler.Show)
	authed.POST("/publications/:examId/hide", examsHead, publicationHandler.Hide)
	authed.POST("/publications/:examId/reschedule", examsHead, publicationHandler.Reschedule)
	authed.POST("/publications/:examId/refresh", officers, publicationHandler.RefreshCounters)

	authed.POST("/pins", officers, pinHandler.Issue)
	authed.POST("/pins/batch", officers, pinHandler.Batch)
	authed.DELETE("/pins/:id", officers, pinHandler.Deactivate)
	authed.GET("/pins/student/:studentId", officers, pinHandler.ListByStudent)

	authed.POST("/corrections", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), correctionHandler.Request)
	authed.GET("/corrections/pending", officers, correctionHandler.ListPending)
	authed.GET("/corrections/result/:resultId", staff, correctionHandler.ListByResult)
	authed.GET("/corrections/:id", staff, correctionHandler.Get)
	authed.POST("/corrections/:id/approve", examsHead, correctionHandler.Approve)
	authed.POST("/corrections/:id/reject", examsHead, correctionHandler.Reject)

	authed.POST("/exports/class-sheet", staff, exportHandler.ClassSheet)
	authed.POST("/exports/student-slip", staff, exportHandler.StudentSlip)

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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown error", "error", err)
	}
}
