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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"lifelink/internal/broker"
	"lifelink/internal/config"
	"lifelink/internal/handler"
	"lifelink/internal/hub"
	"lifelink/internal/repository"
	"lifelink/internal/service"
	"lifelink/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.NewWithOptions(logger.Options{
		Level:   cfg.Log.Level,
		Pretty:  cfg.Log.Pretty,
		Service: "lifelink-chat",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			appLogger.Fatal("Failed to connect to Redis", "error", err)
		}
		appLogger.Info("Redis connection established", "addr", cfg.Redis.Addr)
	}

	repos, err := openRepositories(ctx, cfg, rdb, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to open storage", "error", err, "driver", cfg.Database.Driver)
	}
	defer func() {
		if err := repos.Close(); err != nil {
			appLogger.Error("Failed to close storage", "error", err)
		}
	}()

	chatHub := hub.NewHub(appLogger)
	var relayBroker broker.Broker = broker.NewLocalBroker(chatHub)
	if rdb != nil {
		relayBroker = broker.NewRedisBroker(rdb, chatHub, appLogger)
	}
	// Live delivery depends on the subscription, so it must be confirmed before serving.
	if err := relayBroker.Subscribe(ctx); err != nil {
		appLogger.Fatal("Failed to subscribe relay broker", "error", err)
	}
	defer relayBroker.Close()
	go func() {
		if err := relayBroker.Run(ctx); err != nil {
			appLogger.Fatal("Relay broker stopped", "error", err)
		}
	}()

	services := service.NewServices(repos, chatHub, relayBroker, cfg, appLogger)
	handlers := handler.NewHandlers(services, chatHub, cfg, appLogger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handlers, services, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func openRepositories(ctx context.Context, cfg *config.Config, rdb *redis.Client, log logger.Logger) (*repository.Repositories, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse dsn: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
		poolCfg.MaxConnIdleTime = cfg.Database.MaxIdleTime
		poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping: %w", err)
		}
		if err := repository.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("Database connection established")
		return repository.NewPostgresRepositories(pool, rdb, log), nil

	case config.DriverSQLite:
		db, err := repository.OpenSQLite(cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		return repository.NewSQLiteRepositories(db, rdb, log), nil

	case config.DriverBadger:
		db, err := repository.OpenBadger(cfg.Database.BadgerPath, cfg.Database.BadgerInMemory)
		if err != nil {
			return nil, err
		}
		repos, err := repository.NewBadgerRepositories(db, rdb, log)
		if err != nil {
			db.Close()
			return nil, err
		}
		return repos, nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}
