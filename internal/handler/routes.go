package handler

import (
	"os"

	"github.com/callvista/cdr-analytics-service/internal/cache"
	"github.com/callvista/cdr-analytics-service/internal/config"
	"github.com/callvista/cdr-analytics-service/internal/repository"
	"github.com/callvista/cdr-analytics-service/internal/services/calllog"
	"github.com/callvista/cdr-analytics-service/internal/services/stats"
	"github.com/callvista/cdr-analytics-service/pkg/logger"
	"github.com/callvista/cdr-analytics-service/pkg/metrics"
	"github.com/callvista/cdr-analytics-service/pkg/redis"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandlerManager manages all handlers and their initialization
type HandlerManager struct {
	config      config.Config
	authCfg     config.AuthConfig
	repoManager repository.RepositoryManager
	calllogSvc  *calllog.Service
	statsSvc    *stats.Service
	metrics     *metrics.Metrics
}

// NewHandlerManager creates and initializes all services behind the handlers
func NewHandlerManager(cfg config.Config, authCfg config.AuthConfig) (*HandlerManager, error) {
	// Initialize database connection
	repoManager, err := repository.NewRepositoryManager()
	if err != nil {
		logger.Base().Error("failed to connect to database", zap.Error(err))
		return nil, err
	}

	// Initialize Redis for stats and chain caching; the service runs fine
	// without it, every request just hits PostgreSQL.
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost"
	}
	redisPort := os.Getenv("REDIS_PORT")
	if redisPort == "" {
		redisPort = "6379"
	}

	redisConfig := &redis.RedisConfig{
		Host:     redisHost,
		Port:     redisPort,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	}
	var redisIface redis.RedisServiceInterface
	if redisSvc, err := redis.NewRedisService(redisConfig); err != nil {
		logger.Base().Warn("failed to initialize redis service, running without cache", zap.Error(err))
	} else {
		redisIface = redisSvc
	}

	m := metrics.New()
	cacheCfg := config.LoadCacheConfig()

	var statsCache *cache.StatsCache
	var chainRedis redis.RedisServiceInterface
	if cacheCfg.Enabled {
		statsCache = cache.NewStatsCache(redisIface, cacheCfg.StatsTTL)
		chainRedis = redisIface
	}

	calllogSvc := calllog.NewService(repoManager, chainRedis, cacheCfg.ChainTTL, m)
	statsSvc := stats.NewService(repoManager, statsCache, m)

	return &HandlerManager{
		config:      cfg,
		authCfg:     authCfg,
		repoManager: repoManager,
		calllogSvc:  calllogSvc,
		statsSvc:    statsSvc,
		metrics:     m,
	}, nil
}

// SetupAllRoutes sets up all routes with middleware
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	// Apply global middleware
	router.Use(CORSMiddleware(hm.config.AllowedOrigins))
	router.Use(GlobalLoggingMiddleware)
	router.Use(MetricsMiddleware(hm.metrics))

	// Unauthenticated operational endpoints
	healthHandler := NewHealthHandler(hm.repoManager)
	router.HandleFunc("/healthz", healthHandler.Healthz).Methods("GET")
	router.Handle("/metrics", hm.metrics.Handler()).Methods("GET")

	hm.SetupAPIRoutes(router)

	logger.Base().Info("all application routes registered")
}

// SetupAPIRoutes sets up all API routes and middleware
func (hm *HandlerManager) SetupAPIRoutes(router *mux.Router) {
	// Create API subrouter with middleware
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(LoggingMiddleware)
	apiRouter.Use(ValidationMiddleware)

	// Login stays outside the auth middleware
	authHandler := NewAuthHandler(hm.repoManager.User(), hm.authCfg, hm.metrics)
	authHandler.SetupAuthRoutes(apiRouter)

	// Everything below requires a valid token
	protected := apiRouter.NewRoute().Subrouter()
	protected.Use(AuthMiddleware(hm.authCfg, hm.metrics))

	authHandler.SetupSessionRoutes(protected)

	adminRouter := protected.NewRoute().Subrouter()
	adminRouter.Use(RequireAdminRole)
	authHandler.SetupAdminRoutes(adminRouter)

	callLogHandler := NewCallLogHandler(hm.calllogSvc)
	callLogHandler.SetupCallLogRoutes(protected)

	exportHandler := NewExportHandler(hm.calllogSvc, hm.config, hm.metrics)
	exportHandler.SetupExportRoutes(protected)

	// Statistics are restricted to admin and manager roles
	statsRouter := protected.NewRoute().Subrouter()
	statsRouter.Use(RequireStatsRole)
	statsHandler := NewStatsHandler(hm.statsSvc)
	statsHandler.SetupStatsRoutes(statsRouter)

	logger.Base().Info("api routes registered")
}

// GetRepoManager returns the repository manager
func (hm *HandlerManager) GetRepoManager() repository.RepositoryManager {
	return hm.repoManager
}

// GetMetrics returns the metrics registry wrapper
func (hm *HandlerManager) GetMetrics() *metrics.Metrics {
	return hm.metrics
}
