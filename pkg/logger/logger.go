package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "aso-store"

// New собирает zap-логгер: json для продакшена, цветной консольный вывод для разработки
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("unknown log level %q: %w", level, err)
	}

	var config zap.Config
	switch format {
	case "json":
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	return config.Build(zap.Fields(zap.String("service", serviceName)))
}

// AuditEvent событие безопасности: вход, неудачный код, слияние сессий, смена роли
type AuditEvent struct {
	UserID   string
	Action   string
	Resource string
	Success  bool
	Metadata map[string]interface{}
}

// AuditLog пишет событие аудита отдельным сообщением "audit_log"
func AuditLog(logger *zap.Logger, event AuditEvent) {
	result := "failure"
	if event.Success {
		result = "success"
	}

	fields := []zap.Field{
		zap.String("user_id", event.UserID),
		zap.String("action", event.Action),
		zap.String("resource", event.Resource),
		zap.String("result", result),
	}
	for k, v := range event.Metadata {
		fields = append(fields, zap.Any(k, v))
	}

	logger.Info("audit_log", fields...)
}
