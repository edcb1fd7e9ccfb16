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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/placement-cell/internship-portal-api/api/swagger"
	"github.com/placement-cell/internship-portal-api/internal/handler"
	"github.com/placement-cell/internship-portal-api/internal/middleware"
	"github.com/placement-cell/internship-portal-api/internal/models"
	"github.com/placement-cell/internship-portal-api/internal/repository"
	"github.com/placement-cell/internship-portal-api/internal/service"
	"github.com/placement-cell/internship-portal-api/pkg/cache"
	"github.com/placement-cell/internship-portal-api/pkg/config"
	"github.com/placement-cell/internship-portal-api/pkg/database"
	"github.com/placement-cell/internship-portal-api/pkg/export"
	"github.com/placement-cell/internship-portal-api/pkg/jobs"
	"github.com/placement-cell/internship-portal-api/pkg/logger"
	corsmiddleware "github.com/placement-cell/internship-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/placement-cell/internship-portal-api/pkg/middleware/requestid"
	"github.com/placement-cell/internship-portal-api/pkg/storage"
)

// @title Internship Portal API
// @version 1.0.0
// @description Internship application workflow for a polytechnic college placement cell
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
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	appRepo := repository.NewApplicationRepository(db)
	letterRepo := repository.NewLetterRepository(db)

	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "internship-portal-api",
	})
	applicationSvc := service.NewApplicationService(appRepo, validate, logr)
	reviewSvc := service.NewReviewService(appRepo, logr)

	var dashboardSvc *service.DashboardService
	if cfg.Dashboard.Enabled {
		dashCfg := service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL}
		if cacheRepo != nil {
			dashboardSvc = service.NewDashboardService(appRepo, cacheRepo, metricsSvc, logr, dashCfg)
		} else {
			dashboardSvc = service.NewDashboardService(appRepo, nil, metricsSvc, logr, dashCfg)
		}
	}

	var letterSvc *service.LetterService
	var letterQueue *jobs.Queue[service.LetterTask]
	if cfg.Letters.Enabled {
		letterStore, err := storage.NewLocalStorage(cfg.Letters.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init letter storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Letters.SignedURLSecret, cfg.Letters.SignedURLTTL)
		renderer := export.NewLetterRenderer(export.Letterhead{
			CollegeName: cfg.College.Name,
			Address:     cfg.College.Address,
			Phone:       cfg.College.Phone,
			Email:       cfg.College.Email,
			Signoff:     cfg.College.Signoff,
		})

		letterQueue = jobs.NewQueue("letters", func(ctx context.Context, task service.LetterTask) error {
			return letterSvc.ProcessJob(ctx, task)
		}, jobs.QueueConfig{
			Workers:    cfg.Letters.WorkerConcurrency,
			MaxRetries: cfg.Letters.WorkerRetries,
			Logger:     logr,
		})

		letterSvc = service.NewLetterService(letterRepo, appRepo, letterQueue, letterStore, signer, renderer, logr, service.LetterServiceConfig{
			BaseURL:         cfg.BaseURL,
			ResultTTL:       cfg.Letters.SignedURLTTL,
			CleanupInterval: cfg.Letters.CleanupInterval,
		})

		letterQueue.Start(ctx)
		defer letterQueue.Stop()
		letterSvc.RecoverQueued(ctx)
		letterSvc.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	applicationHandler := handler.NewApplicationHandler(applicationSvc, dashboardSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc, metricsSvc, dashboardSvc)
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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	applications := api.Group("/applications", middleware.JWT(authSvc))
	applications.POST("",
		middleware.RequireRoles(models.RoleStudent),
		middleware.Audit(userRepo, models.AuditActionApplicationCreate, "application"),
		applicationHandler.Submit)
	applications.GET("", middleware.RequireRoles(models.RoleAdmin), applicationHandler.List)
	applications.GET("/mine", middleware.RequireRoles(models.RoleStudent), applicationHandler.GetMine)
	applications.GET("/:id", applicationHandler.Get)
	applications.DELETE("/:id",
		middleware.RequireRoles(models.RoleAdmin, models.RolePrincipal),
		middleware.Audit(userRepo, models.AuditActionApplicationDelete, "application"),
		applicationHandler.Delete)

	reviews := api.Group("/reviews", middleware.JWT(authSvc), middleware.RequireReviewers())
	reviews.GET("/queue", reviewHandler.Queue)
	reviews.POST("/:id",
		middleware.Audit(userRepo, models.AuditActionReviewSubmit, "application"),
		reviewHandler.Submit)

	if letterSvc != nil {
		letterHandler := handler.NewLetterHandler(letterSvc)
		applications.POST("/:id/letter",
			middleware.Audit(userRepo, models.AuditActionLetterRequest, "letter"),
			letterHandler.Request)
		letters := api.Group("/letters")
		letters.GET("/:id/status", middleware.JWT(authSvc), letterHandler.Status)
		letters.GET("/download", letterHandler.Download)
	}

	if dashboardSvc != nil {
		dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
		dashboard := api.Group("/dashboard", middleware.JWT(authSvc))
		dashboard.GET("/summary",
			middleware.RequireRoles(append(models.ReviewerRoles(), models.RoleAdmin)...),
			dashboardHandler.Summary)
		dashboard.GET("/summary/export",
			middleware.RequireRoles(models.RoleAdmin, models.RolePrincipal),
			dashboardHandler.Export)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	srv := &http.Server{Addr: addr, Handler: r}
	if err := serve(ctx, srv); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}

// serve runs the HTTP server until it fails or ctx is cancelled, then shuts
// down gracefully with a deadline for in-flight requests.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
