package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/AndrewYakovlev/aso-store/internal/models"
	"github.com/AndrewYakovlev/aso-store/pkg/logger"
)

// Действия, попадающие в журнал аудита
const (
	AuditOTPSent      = "otp_sent"
	AuditOTPVerified  = "otp_verified"
	AuditOTPFailed    = "otp_failed"
	AuditMerge        = "anonymous_merge"
	AuditTokenRefresh = "token_refresh"
	AuditRoleChanged  = "role_changed"
	AuditRateLimited  = "rate_limited"
	AuditSMSFailed    = "sms_failed"
	auditTaskName     = "audit_log"
)

type AuditEntry struct {
	UserID  *uuid.UUID
	Action  string
	Details string
	Success bool
	Meta    RequestMeta
}

// AuditService пишет событие в zap сразу, а в БД через очередь фоновых задач
type AuditService struct {
	db     *gorm.DB
	tasks  TaskSubmitter
	logger *zap.Logger
	now    func() time.Time
}

func NewAuditService(db *gorm.DB, tasks TaskSubmitter, logger *zap.Logger) *AuditService {
	return &AuditService{
		db:     db,
		tasks:  tasks,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuditService) Record(entry AuditEntry) {
	userID := ""
	if entry.UserID != nil {
		userID = entry.UserID.String()
	}

	logger.AuditLog(s.logger, logger.AuditEvent{
		UserID:   userID,
		Action:   entry.Action,
		Resource: "user",
		Success:  entry.Success,
		Metadata: map[string]interface{}{
			"details":    entry.Details,
			"ip_address": entry.Meta.IPAddress,
		},
	})

	now := s.now()
	row := &models.UserAuditLog{
		BaseModel: models.BaseModel{CreatedAt: now, UpdatedAt: now},
		UserID:    entry.UserID,
		Action:    entry.Action,
		Details:   entry.Details,
		IPAddress: entry.Meta.IPAddress,
		UserAgent: entry.Meta.UserAgent,
		Success:   entry.Success,
	}

	s.tasks.Submit(auditTaskName, func(ctx context.Context) error {
		if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
			return fmt.Errorf("failed to save audit log: %w", err)
		}
		return nil
	})
}
