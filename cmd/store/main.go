package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/AndrewYakovlev/aso-store/internal/app"
	"github.com/AndrewYakovlev/aso-store/internal/config"
	"github.com/AndrewYakovlev/aso-store/internal/db"
	"github.com/AndrewYakovlev/aso-store/internal/worker"
	"github.com/AndrewYakovlev/aso-store/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключаем БД
	dbConn, err := db.ConnectPostgres(cfg.Database, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.Migrate(dbConn, zlog); err != nil {
		zlog.Fatal("Failed to migrate database", zap.Error(err))
	}

	redisClient, err := db.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		zlog.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	tasks := worker.NewDispatcher(worker.Options{
		Workers:     cfg.Telemetry.Workers,
		QueueSize:   cfg.Telemetry.QueueSize,
		TaskTimeout: cfg.Telemetry.TaskTimeout,
	}, zlog)

	server := app.NewServer(app.Dependencies{
		Config: cfg,
		DB:     dbConn,
		Redis:  redisClient,
		Tasks:  tasks,
		Logger: zlog,
	})

	zlog.Info("aso-store is starting",
		zap.String("environment", cfg.Server.Environment),
		zap.Int("port", cfg.Server.Port),
		zap.Int("grpc_port", cfg.Server.GRPCPort),
	)

	if err := server.Run(ctx); err != nil {
		zlog.Error("Server stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Failed to shutdown server", zap.Error(err))
	}
	// после остановки HTTP новые задачи не появятся
	if err := tasks.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Failed to drain background tasks", zap.Error(err), zap.Uint64("dropped", tasks.Dropped()))
	}
	if sqlDB, err := dbConn.DB(); err == nil {
		_ = sqlDB.Close()
	}

	zlog.Info("aso-store stopped")
}
