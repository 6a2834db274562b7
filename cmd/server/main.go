package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "seest/internal/domain/auth"
	_ "seest/internal/domain/common"
	_ "seest/internal/domain/event"
	_ "seest/internal/domain/message"
	_ "seest/internal/domain/notification"
	_ "seest/internal/domain/post"
	_ "seest/internal/domain/user"
	"seest/internal/pkg/config"
	"seest/internal/pkg/middleware"
	"seest/internal/pkg/push"
	"seest/internal/pkg/realtime"
	"seest/internal/pkg/registry"
	"seest/internal/pkg/worker"
	"seest/pkg/cache"
	"seest/pkg/database"
	"seest/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	config.LoadConfig()
	cfg := &config.GlobalConfig

	if err := logger.Init(cfg.App.Env, cfg.App.Debug); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDatabase(cfg.Database, cfg.App.Debug)
	if err != nil {
		logger.Log.Fatal("Failed to connect database", zap.Error(err))
	}
	sqlDB, err := database.NewSQLX(db)
	if err != nil {
		logger.Log.Fatal("Failed to build sqlx handle", zap.Error(err))
	}

	// Redis 可选：未连上时缓存退回内存，realtime 不能使用 redis 驱动
	var rdb *redis.Client
	var cacheSvc cache.CacheService
	if rdb, err = database.InitRedis(cfg.Redis); err != nil {
		if cfg.Realtime.Driver == "redis" {
			logger.Log.Fatal("Redis is required by the realtime driver", zap.Error(err))
		}
		logger.Log.Warn("Redis unavailable, falling back to in-memory cache", zap.Error(err))
		rdb = nil
		cacheSvc = cache.NewMemoryCache()
	} else {
		cacheSvc = cache.NewRedisCache(rdb, "seest:")
	}

	feed, changes := setupRealtime(ctx, cfg, rdb)

	pool := worker.NewWorkerPool(cfg.Worker.Num, cfg.Worker.BufferSize, cfg.Worker.MaxRetry)
	pool.Start()
	defer pool.Stop()

	var pusher push.Pusher
	if cfg.Push.Enabled() {
		svc, err := push.NewAliyunPushService(cfg.Push)
		if err != nil {
			logger.Log.Warn("Mobile push disabled", zap.Error(err))
		} else {
			pusher = svc
		}
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RateLimitMiddleware(middleware.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst)))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if err := registry.InitModules(&registry.ModuleContext{
		Config:  cfg,
		DB:      db,
		SQL:     sqlDB,
		Redis:   rdb,
		Router:  r,
		Cache:   cacheSvc,
		Feed:    feed,
		Changes: changes,
		Pool:    pool,
		Pusher:  pusher,
	}); err != nil {
		logger.Log.Fatal("Failed to init modules", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Log.Info("Server started", zap.String("port", cfg.Server.Port), zap.String("realtime", cfg.Realtime.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server shutdown failed", zap.Error(err))
	}
}

// setupRealtime 按驱动选择变更的发布方和订阅方。
// postgres 驱动下变更由数据库触发器产生，服务端写入后不再重复发布。
func setupRealtime(ctx context.Context, cfg *config.Config, rdb *redis.Client) (realtime.Publisher, realtime.Source) {
	rc := cfg.Realtime
	switch rc.Driver {
	case "redis":
		f := realtime.NewRedisFeed(rdb, rc.Channel)
		return f, f
	case "postgres":
		hub := realtime.NewHub(rc.BufferSize)
		listener := realtime.NewPGListener(cfg.Database.DSN(), rc.Channel, hub, realtime.NewBackoff(rc.BackoffInitial, rc.BackoffMax))
		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Log.Error("Postgres listener stopped", zap.Error(err))
			}
		}()
		return realtime.Discard{}, hub
	default:
		hub := realtime.NewHub(rc.BufferSize)
		return hub, hub
	}
}
