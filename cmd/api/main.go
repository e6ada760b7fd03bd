package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"studiodesk/internal/config"
	"studiodesk/internal/database"
	"studiodesk/internal/events"
	"studiodesk/internal/lock"
	"studiodesk/internal/logging"
	"studiodesk/internal/metrics"
	"studiodesk/internal/modules/ledger"
	"studiodesk/internal/realtime"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.GetLogger().WithError(err).Fatal("config load failed")
	}
	log := logging.Configure(os.Stdout, cfg.LogLevel)
	if config.IsProdLike(cfg.AppEnv) {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("db migrate failed")
	}
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub()
	var locker lock.Locker = lock.NewLocalLocker()
	if rdb := connectRedis(ctx, cfg, log); rdb != nil {
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, cfg.LockTTL)
		relay := realtime.NewRedisRelay(rdb, cfg.FeedChannel)
		hub.SetRelay(relay)
		go func() {
			if err := relay.Run(ctx, hub); err != nil && !errors.Is(err, context.Canceled) {
				logging.LogError(log, "main", "relay.Run", "change feed relay stopped", cfg.FeedChannel, err)
			}
		}()
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			logging.LogError(log, "main", "NewAMQPPublisher", "broker unavailable, events disabled", nil, err)
		} else {
			defer amqpPub.Close()
			publisher = amqpPub
		}
	}

	a := newApp(cfg, db, locker, publisher, hub)

	reconcileStop := a.ledger.ScheduleReconcile(ctx, ledger.ReconcileConfig{
		Enabled:  cfg.ReconcileEnabled,
		Interval: cfg.ReconcileInterval,
	})
	if reconcileStop != nil {
		defer close(reconcileStop)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "env": cfg.AppEnv}).Info("studiodesk api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.LogError(log, "main", "Shutdown", "graceful shutdown failed", nil, err)
	}
}

// connectRedis returns nil when Redis is not configured or not reachable. The
// API then runs single-instance with in-process locks and change delivery.
func connectRedis(ctx context.Context, cfg *config.AppConfig, log *logrus.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set, using in-process locks")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logging.LogError(log, "main", "connectRedis", "redis unreachable, using in-process locks", cfg.RedisAddr, err)
		_ = rdb.Close()
		return nil
	}
	log.WithFields(logrus.Fields{"addr": cfg.RedisAddr}).Info("redis connected")
	return rdb
}
