package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/kuliahku/kuliahku-api/api/swagger"
	"github.com/kuliahku/kuliahku-api/internal/handler"
	"github.com/kuliahku/kuliahku-api/internal/middleware"
	"github.com/kuliahku/kuliahku-api/internal/repository"
	"github.com/kuliahku/kuliahku-api/internal/service"
	"github.com/kuliahku/kuliahku-api/pkg/cache"
	"github.com/kuliahku/kuliahku-api/pkg/config"
	"github.com/kuliahku/kuliahku-api/pkg/database"
	"github.com/kuliahku/kuliahku-api/pkg/logger"
	corsmiddleware "github.com/kuliahku/kuliahku-api/pkg/middleware/cors"
	reqidmiddleware "github.com/kuliahku/kuliahku-api/pkg/middleware/requestid"
)

// @title KuliahKu API
// @version 1.0.0
// @description Schedule and attendance backend for students
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Redis only backs the summary cache; the API works without it.
		logr.Sugar().Warnw("redis unavailable, summary caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	services := handler.Services{
		Auth:       service.NewAuthService(userRepo, validate, logr, cfg.Auth),
		Users:      service.NewUserService(userRepo, validate, logr),
		Subjects:   service.NewSubjectService(subjectRepo, validate, logr),
		Attendance: service.NewAttendanceService(attendanceRepo, subjectRepo, cacheRepo, validate, logr, cfg.Attendance),
		Metrics:    service.NewMetricsService(),
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(services.Metrics))

	handler.RegisterRoutes(r, cfg, services, logr)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}
