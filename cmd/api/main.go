package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/klinikgo/clinic-rota-api/api/swagger"
	"github.com/klinikgo/clinic-rota-api/internal/handler"
	"github.com/klinikgo/clinic-rota-api/internal/middleware"
	"github.com/klinikgo/clinic-rota-api/internal/models"
	"github.com/klinikgo/clinic-rota-api/internal/repository"
	"github.com/klinikgo/clinic-rota-api/internal/service"
	"github.com/klinikgo/clinic-rota-api/pkg/cache"
	"github.com/klinikgo/clinic-rota-api/pkg/config"
	"github.com/klinikgo/clinic-rota-api/pkg/database"
	"github.com/klinikgo/clinic-rota-api/pkg/logger"
	corsmiddleware "github.com/klinikgo/clinic-rota-api/pkg/middleware/cors"
	reqidmiddleware "github.com/klinikgo/clinic-rota-api/pkg/middleware/requestid"
)

// @title Clinic Rota API
// @version 1.0.0
// @description Weekly shift scheduling for clinic doctors
// @BasePath /
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

	var cacheRepo *repository.CacheRepository
	if cfg.Rota.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}

	doctorRepo := repository.NewDoctorRepository(db)
	scheduleRepo := repository.NewScheduleEntryRepository(db)

	metricsSvc := service.NewMetricsService()
	tokenSvc := service.NewTokenService(cfg.JWT)
	doctorSvc := service.NewDoctorService(doctorRepo)
	rotaSvc := service.NewRotaService(doctorRepo, scheduleRepo, cacheRepo, metricsSvc, db, nil, logr, service.RotaConfig{
		MaxDoctorsPerShift: cfg.Rota.MaxDoctorsPerShift,
		RemainingCacheTTL:  cfg.Rota.RemainingCacheTTL,
	})

	doctorHandler := handler.NewDoctorHandler(doctorSvc)
	rotaHandler := handler.NewRotaHandler(rotaSvc)

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
		if err := db.Ping(); err != nil {
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
	api.Use(middleware.JWT(tokenSvc))

	doctors := api.Group("/doctors")
	doctors.GET("", doctorHandler.List)
	doctors.GET("/:id", doctorHandler.Get)

	rota := api.Group("/rota")
	rota.GET("/remaining", rotaHandler.Remaining)
	rota.GET("/export", rotaHandler.Export)

	scheduling := rota.Group("")
	scheduling.Use(middleware.RBAC(models.RoleAdmin, models.RoleScheduler))
	scheduling.POST("/generate", rotaHandler.Generate)
	scheduling.POST("/assignments", rotaHandler.Assign)
	scheduling.POST("/swaps", rotaHandler.Swap)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
