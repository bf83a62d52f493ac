package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"

	checkTimeout = 5 * time.Second
)

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Services  map[string]Status `json:"services"`
}

// Status представляет статус отдельного сервиса
type Status struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Healthy все зависимости доступны
func (s *HealthStatus) Healthy() bool {
	return s.Status == statusHealthy
}

// droppedCounter очередь фоновых задач, которая считает отброшенные задачи
type droppedCounter interface {
	Dropped() uint64
}

// HealthChecker проверяет Postgres и Redis
type HealthChecker struct {
	db     *gorm.DB
	redis  *redis.Client
	tasks  droppedCounter
	logger *zap.Logger
	start  time.Time
}

// NewHealthChecker создает новый экземпляр HealthChecker
func NewHealthChecker(db *gorm.DB, redis *redis.Client, tasks droppedCounter, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		db:     db,
		redis:  redis,
		tasks:  tasks,
		logger: logger,
		start:  time.Now(),
	}
}

// CheckHealth проверяет общее здоровье сервиса
func (h *HealthChecker) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC(),
		Uptime:    h.getUptime(),
		Services:  make(map[string]Status),
	}

	dbStatus := h.checkDatabase(ctx)
	status.Services["database"] = dbStatus

	redisStatus := h.checkRedis(ctx)
	status.Services["redis"] = redisStatus

	if dbStatus.Status == statusUnhealthy || redisStatus.Status == statusUnhealthy {
		status.Status = statusUnhealthy
	}

	return status
}

func (h *HealthChecker) checkDatabase(ctx context.Context) Status {
	start := time.Now()

	sqlDB, err := h.db.DB()
	if err != nil {
		return Status{
			Status:  statusUnhealthy,
			Message: fmt.Sprintf("Failed to get DB instance: %v", err),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return Status{
			Status:  statusUnhealthy,
			Message: fmt.Sprintf("Database ping failed: %v", err),
		}
	}

	stats := sqlDB.Stats()
	return Status{
		Status:  statusHealthy,
		Message: fmt.Sprintf("Connected. Open connections: %d, InUse: %d", stats.OpenConnections, stats.InUse),
		Latency: time.Since(start).String(),
	}
}

func (h *HealthChecker) checkRedis(ctx context.Context) Status {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := h.redis.Ping(ctx).Err(); err != nil {
		return Status{
			Status:  statusUnhealthy,
			Message: fmt.Sprintf("Redis ping failed: %v", err),
		}
	}

	return Status{
		Status:  statusHealthy,
		Message: "Connected and operational",
		Latency: time.Since(start).String(),
	}
}

// getUptime возвращает время работы сервиса
func (h *HealthChecker) getUptime() string {
	uptime := time.Since(h.start)

	switch {
	case uptime < time.Minute:
		return fmt.Sprintf("%.0fs", uptime.Seconds())
	case uptime < time.Hour:
		return fmt.Sprintf("%.0fm", uptime.Minutes())
	case uptime < 24*time.Hour:
		return fmt.Sprintf("%.0fh", uptime.Hours())
	default:
		return fmt.Sprintf("%dd", int(uptime.Hours()/24))
	}
}

// GetDetailedStats возвращает детальную статистику пула соединений и очереди задач
func (h *HealthChecker) GetDetailedStats() map[string]interface{} {
	stats := make(map[string]interface{})

	if sqlDB, err := h.db.DB(); err == nil {
		dbStats := sqlDB.Stats()
		stats["database"] = map[string]interface{}{
			"max_open_connections": dbStats.MaxOpenConnections,
			"open_connections":     dbStats.OpenConnections,
			"in_use":               dbStats.InUse,
			"idle":                 dbStats.Idle,
			"wait_count":           dbStats.WaitCount,
			"wait_duration":        dbStats.WaitDuration.String(),
		}
	}

	poolStats := h.redis.PoolStats()
	stats["redis"] = map[string]interface{}{
		"total_conns": poolStats.TotalConns,
		"idle_conns":  poolStats.IdleConns,
		"timeouts":    poolStats.Timeouts,
	}

	if h.tasks != nil {
		stats["tasks_dropped"] = h.tasks.Dropped()
	}
	stats["uptime"] = h.getUptime()
	stats["start_time"] = h.start

	return stats
}

// Handler HTTP-эндпоинт /health: 200 если все зависимости доступны, иначе 503
func (h *HealthChecker) Handler(c *fiber.Ctx) error {
	status := h.CheckHealth(c.UserContext())
	code := fiber.StatusOK
	if !status.Healthy() {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(status)
}

// StatsHandler подробная статистика для панели
func (h *HealthChecker) StatsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.GetDetailedStats(),
	})
}

// UpdateServingStatus переносит результат проверки в gRPC health server
func (h *HealthChecker) UpdateServingStatus(ctx context.Context, server *health.Server) *HealthStatus {
	status := h.CheckHealth(ctx)
	serving := healthpb.HealthCheckResponse_SERVING
	if !status.Healthy() {
		serving = healthpb.HealthCheckResponse_NOT_SERVING
		h.logger.Warn("Service unhealthy", zap.Any("services", status.Services))
	}
	server.SetServingStatus("", serving)
	return status
}

// Watch периодически обновляет gRPC статус до отмены контекста
func (h *HealthChecker) Watch(ctx context.Context, server *health.Server, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.UpdateServingStatus(ctx, server)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.UpdateServingStatus(ctx, server)
		}
	}
}
