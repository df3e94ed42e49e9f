package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	gormlog "gorm.io/gorm/logger"

	"github.com/go-jsonapi/server/pkg/cache"
	"github.com/go-jsonapi/server/pkg/common"
	"github.com/go-jsonapi/server/pkg/common/adapters/database"
	"github.com/go-jsonapi/server/pkg/config"
	"github.com/go-jsonapi/server/pkg/dbmanager"
	"github.com/go-jsonapi/server/pkg/errortracking"
	"github.com/go-jsonapi/server/pkg/jsonapi"
	"github.com/go-jsonapi/server/pkg/logger"
	"github.com/go-jsonapi/server/pkg/metrics"
	"github.com/go-jsonapi/server/pkg/middleware"
	"github.com/go-jsonapi/server/pkg/planner"
	"github.com/go-jsonapi/server/pkg/schema"
	"github.com/go-jsonapi/server/pkg/server"
	"github.com/go-jsonapi/server/pkg/tracing"
)

func main() {
	cfgMgr := config.NewManager()
	if err := cfgMgr.Load(); err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	cfg, err := cfgMgr.GetConfig()
	if err != nil {
		log.Fatalf("failed to get configuration: %v", err)
	}

	logger.Init(cfg.Logger.Dev)
	if cfg.Logger.Path != "" {
		logger.UpdateLoggerPath(cfg.Logger.Path, cfg.Logger.Dev)
	}
	logger.Info("jsonapi server starting")
	logger.Info("configuration loaded - server will listen on: %s", cfg.Server.Addr)

	tracker, err := errortracking.NewProviderFromConfig(cfg.ErrorTracking)
	if err != nil {
		logger.Error("failed to init error tracking: %v", err)
		os.Exit(1)
	}

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Endpoint:       cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Error("failed to init tracing: %v", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	metricsProvider := metrics.NewPrometheusProvider(metrics.DefaultConfig())
	metrics.SetProvider(metricsProvider)

	ctx := context.Background()
	dbMgr, db, err := initDB(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize database: %+v", err)
		os.Exit(1)
	}
	defer dbMgr.Close()

	if err := registerModels(); err != nil {
		logger.Error("failed to register models: %v", err)
		os.Exit(1)
	}

	registry := schema.NewRegistry()
	if err := registry.Install(resourceDefinitions()...); err != nil {
		logger.Error("failed to install resource definitions: %v", err)
		os.Exit(1)
	}

	if cfg.Schema.AutoMigrate {
		for _, desc := range registry.All() {
			if err := schema.EnsureTable(ctx, db, desc); err != nil {
				logger.Error("failed to ensure table for %s: %v", desc.Type, err)
				os.Exit(1)
			}
		}
	}

	totalCache, err := newTotalCountCache(cfg.Cache)
	if err != nil {
		logger.Error("failed to init cache: %v", err)
		os.Exit(1)
	}

	handler := jsonapi.NewHandler(db, registry, planner.Config{
		QueryDefaultLimit:      20,
		QueryMaxLimit:          200,
		EnablePaginationCounts: true,
	}).
		WithErrorTracking(tracker).
		WithTotalCountCache(totalCache, 30*time.Second)

	r := mux.NewRouter()
	jsonapi.SetupMuxRoutes(r, handler, nil)

	sanitizer := middleware.DefaultSanitizer()
	limiter := middleware.NewRequestSizeLimiter(cfg.Middleware.MaxRequestSize)
	rateLimiter := middleware.NewRateLimiter(cfg.Middleware.RateLimitRPS, cfg.Middleware.RateLimitBurst)

	var rootHandler http.Handler = r
	rootHandler = middleware.PanicRecovery(rootHandler)
	rootHandler = sanitizer.Middleware(rootHandler)
	rootHandler = limiter.Middleware(rootHandler)
	rootHandler = rateLimiter.Middleware(rootHandler)
	rootHandler = metricsProvider.Middleware(rootHandler)
	rootHandler = tracing.Middleware(rootHandler)

	mgr := server.NewManager()

	host, port, err := parseAddr(cfg.Server.Addr)
	if err != nil {
		logger.Error("invalid server address: %v", err)
		os.Exit(1)
	}

	if _, err := mgr.Add(server.Config{
		Name:            "api",
		Host:            host,
		Port:            port,
		Handler:         rootHandler,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		DrainTimeout:    cfg.Server.DrainTimeout,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
	}); err != nil {
		logger.Error("failed to add server: %v", err)
		os.Exit(1)
	}

	logger.Info("starting server on %s", cfg.Server.Addr)
	if err := mgr.ServeWithGracefulShutdown(); err != nil {
		logger.Error("server failed: %v", err)
		os.Exit(1)
	}
}

func newTotalCountCache(cfg config.CacheConfig) (*cache.Cache, error) {
	switch cfg.Provider {
	case "redis":
		provider, err := cache.NewRedisProvider(&cache.RedisConfig{
			Host: cfg.Redis.Host, Port: cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis cache provider: %w", err)
		}
		return cache.NewCache(provider), nil
	case "memcache":
		provider, err := cache.NewMemcacheProvider(&cache.MemcacheConfig{
			Servers: cfg.Memcache.Servers, MaxIdleConns: cfg.Memcache.MaxIdleConns, Timeout: cfg.Memcache.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("memcache cache provider: %w", err)
		}
		return cache.NewCache(provider), nil
	default:
		return cache.NewCache(cache.NewMemoryProvider(&cache.Options{DefaultTTL: 30 * time.Second})), nil
	}
}

func parseAddr(addr string) (host string, port int, err error) {
	port = 8080
	if addr == "" {
		return "", port, nil
	}
	if addr[0] == ':' {
		_, err = fmt.Sscanf(addr, ":%d", &port)
		return "", port, err
	}
	_, err = fmt.Sscanf(addr, "%[^:]:%d", &host, &port)
	return host, port, err
}

func initDB(ctx context.Context, cfg *config.Config) (dbmanager.Manager, common.Database, error) {
	logLevel := gormlog.Info
	if !cfg.Logger.Dev {
		logLevel = gormlog.Warn
	}

	newLogger := gormlog.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlog.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  cfg.Logger.Dev,
		},
	)

	mgr, err := dbmanager.NewManager(dbmanager.FromConfig(cfg.DBManager))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database manager: %w", err)
	}

	if err := mgr.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to connect databases: %w", err)
	}

	conn, err := mgr.GetDefault()
	if err != nil {
		mgr.Close()
		return nil, nil, fmt.Errorf("failed to get default connection: %w", err)
	}

	gormDB, err := conn.GORM()
	if err != nil {
		mgr.Close()
		return nil, nil, fmt.Errorf("failed to get GORM database: %w", err)
	}
	gormDB.Logger = newLogger

	if err := gormDB.AutoMigrate(&Author{}, &Book{}, &Tag{}); err != nil {
		mgr.Close()
		return nil, nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return mgr, database.NewGormAdapter(gormDB), nil
}
