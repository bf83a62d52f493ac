package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/AndrewYakovlev/aso-store/internal/services"
)

// AuditRecorder получатель записей аудита (services.AuditService)
type AuditRecorder interface {
	Record(entry services.AuditEntry)
}

// AuditConfig конфигурация для аудита
type AuditConfig struct {
	ExcludePaths []string
	// Запросы с этими префиксами дополнительно пишутся в журнал аудита
	PersistPrefixes []string
}

// AuditMiddleware логирует каждый запрос и сохраняет действия в админке
type AuditMiddleware struct {
	config   AuditConfig
	logger   *zap.Logger
	recorder AuditRecorder
}

// NewAuditMiddleware создает новый экземпляр AuditMiddleware
func NewAuditMiddleware(config AuditConfig, logger *zap.Logger, recorder AuditRecorder) *AuditMiddleware {
	return &AuditMiddleware{
		config:   config,
		logger:   logger,
		recorder: recorder,
	}
}

func (am *AuditMiddleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if matchesAny(path, am.config.ExcludePaths) {
			return c.Next()
		}

		startTime := time.Now()
		err := c.Next()
		if err != nil {
			// ответ формирует ErrorHandler приложения, в журнал попадает итоговый статус
			if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		duration := time.Since(startTime)

		status := c.Response().StatusCode()

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("ip_address", c.IP()),
			zap.String("user_agent", c.Get(fiber.HeaderUserAgent)),
		}

		id, authenticated := CurrentIdentity(c)
		if authenticated {
			fields = append(fields, zap.String("user_id", id.UserID.String()))
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		am.logger.Info("request", fields...)

		if am.recorder != nil && am.persisted(path) && c.Method() != fiber.MethodGet {
			entry := services.AuditEntry{
				Action:  fmt.Sprintf("%s %s", c.Method(), path),
				Details: fmt.Sprintf("status=%d", status),
				Success: status < fiber.StatusBadRequest,
				Meta: services.RequestMeta{
					IPAddress: fiberutils.CopyString(c.IP()),
					UserAgent: fiberutils.CopyString(c.Get(fiber.HeaderUserAgent)),
				},
			}
			if authenticated {
				userID := id.UserID
				entry.UserID = &userID
			}
			am.recorder.Record(entry)
		}

		return nil
	}
}

func (am *AuditMiddleware) persisted(path string) bool {
	for _, p := range am.config.PersistPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
