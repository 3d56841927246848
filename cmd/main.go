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

	"roomies/backend/internal/api/handler"
	"roomies/backend/internal/blocking"
	"roomies/backend/internal/chathub"
	"roomies/backend/internal/config"
	"roomies/backend/internal/events"
	"roomies/backend/internal/localization"
	"roomies/backend/internal/logger"
	"roomies/backend/internal/matching"
	"roomies/backend/internal/meeting"
	"roomies/backend/internal/report"
	"roomies/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupStorage(ctx context.Context, cfg *config.Config) (storage.Storage, func(), error) {
	if cfg.Storage == "memory" {
		zap.L().Warn("using in-memory storage, data is lost on restart")
		return storage.NewMemory(), func() {}, nil
	}

	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, nil, err
	}
	if err := storage.Migrate(db); err != nil {
		return nil, nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, nil, err
	}

	zap.L().Info("database and redis connections established, migrations complete")
	cleanup := func() {
		_ = rdb.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return storage.NewStorageService(db, rdb), cleanup, nil
}

func main() {
	defaultPath, err := config.PathFromEnv("config.toml")
	if err != nil {
		log.Println("Warning: no .env file loaded")
	}
	configPath := pflag.StringP("config", "c", defaultPath, "path to the TOML config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.Log, cfg.Server.Mode); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zap.L().Sync()
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := setupStorage(ctx, cfg)
	if err != nil {
		zap.L().Fatal("failed to set up storage", zap.String("backend", cfg.Storage), zap.Error(err))
	}
	defer cleanup()

	pub := events.New(cfg.Kafka)
	defer pub.Close()

	blocks := blocking.NewRegistry(store, pub)
	matcher := matching.NewService(store, blocks, pub, cfg.Matching)
	scheduler := meeting.NewScheduler(store, pub)
	reports := report.NewService(store, blocks, matcher, pub)
	hub := chathub.NewManagerService(store, blocks, pub, cfg.Gateway)

	messages, err := localization.Default()
	if err != nil {
		zap.L().Fatal("failed to load translations", zap.Error(err))
	}

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		if err := hub.Run(ctx); err != nil {
			zap.L().Error("chat hub stopped", zap.Error(err))
			stop()
		}
	}()

	h := handler.NewHandler(handler.Services{
		Hub:      hub,
		Matching: matcher,
		Blocks:   blocks,
		Meetings: scheduler,
		Reports:  reports,
		Messages: messages,
	}, handler.NewAuthenticator(cfg.Auth), cfg.Server)
	server := &http.Server{
		Addr:           cfg.Server.Addr,
		Handler:        handler.NewRouter(h, cfg.Server),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zap.L().Info("starting roomies backend", zap.String("addr", cfg.Server.Addr), zap.String("storage", cfg.Storage))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zap.L().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("graceful shutdown failed", zap.Error(err))
	}
	<-hubDone
}
