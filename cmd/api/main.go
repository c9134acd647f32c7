package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-reservation/internal/api"
	"github.com/sanosuguru/go-seat-reservation/internal/api/handler"
	"github.com/sanosuguru/go-seat-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-seat-reservation/internal/application"
	"github.com/sanosuguru/go-seat-reservation/internal/config"
	"github.com/sanosuguru/go-seat-reservation/internal/domain/identity"
	"github.com/sanosuguru/go-seat-reservation/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-seat-reservation/internal/infrastructure/rabbitmq"
	"github.com/sanosuguru/go-seat-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-seat-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-seat-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-seat-reservation/internal/worker"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	logger.Set(logger.NewLogger(cfg.Env))
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("設定が不正です", zap.Error(err))
	}

	m := metrics.Init()

	// データベース
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続に失敗", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
		logger.Fatal("マイグレーションに失敗", zap.Error(err))
	}

	// Redis（識別子キャッシュとスイープのロック）。使えなければなしで起動する
	var (
		resolver identity.Resolver = postgres.NewUserDirectory(db)
		locker   worker.Locker
	)
	redisClient := redis.NewClient(&cfg.Redis)
	defer redisClient.Close()
	if err := pingRedis(redisClient); err != nil {
		logger.Warn("Redis に接続できないためキャッシュと分散ロックを無効化", zap.Error(err))
	} else {
		resolver = redis.NewCachingResolver(redisClient, resolver, cfg.Redis.IdentityCacheTTL, m)
		locker = redis.NewLockManager(redisClient, m)
	}

	engineOpts := []application.EngineOption{
		application.WithMetrics(m),
		application.WithSweepBatchSize(cfg.Reservation.SweepBatchSize),
	}
	if cfg.AMQP.URL != "" {
		engineOpts = append(engineOpts, application.WithNotifier(rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.DelegationQueue)))
	} else {
		logger.Info("AMQP_URL が未設定のため代理予約の通知を無効化")
	}

	engine := application.NewReservationEngine(
		postgres.NewTxManager(db, cfg.Database.LockTimeout),
		postgres.NewSeatRepository(db),
		resolver,
		cfg.Reservation.HoldWindow,
		engineOpts...,
	)

	// スイーパー
	sweeperOpts := []worker.SweeperOption{worker.WithSweepMetrics(m)}
	if locker != nil {
		sweeperOpts = append(sweeperOpts, worker.WithLocker(locker, cfg.Reservation.SweepLockTTL))
	}
	sweeper := worker.NewExpirySweeper(engine, cfg.Reservation.SweepInterval, sweeperOpts...)
	go sweeper.Start(context.Background())

	// HTTP サーバー
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	middleware.SetupMiddleware(e, m)
	handler.RegisterRoutes(e,
		handler.NewSeatHandler(engine),
		handler.NewHealthHandler(postgres.NewPinger(db)),
		middleware.CallerIdentity(cfg.Auth.JWTSecret),
	)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(cfg.Metrics))

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT_SECRET が未設定のため X-User-ID ヘッダーを信頼します")
	}

	go func() {
		logger.Info("サーバー起動",
			zap.String("port", cfg.Server.Port),
			zap.String("env", cfg.Env),
			zap.Duration("hold_window", engine.HoldWindow()),
		)
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
	}
	sweeper.Stop()

	logger.Info("サーバーが正常にシャットダウンしました")
}

func pingRedis(client *goredis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return redis.Ping(ctx, client)
}
