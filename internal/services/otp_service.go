package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AndrewYakovlev/aso-store/internal/config"
	"github.com/AndrewYakovlev/aso-store/internal/models"
	"github.com/AndrewYakovlev/aso-store/pkg/utils"
)

// OTPService выпускает и проверяет одноразовые коды.
// Состояния кода: выпущен -> подтвержден | истек | исчерпан.
type OTPService struct {
	db     *gorm.DB
	config config.SecurityConfig
	now    func() time.Time
}

func NewOTPService(db *gorm.DB, cfg config.SecurityConfig) *OTPService {
	return &OTPService{
		db:     db,
		config: cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue выпускает новый код. Просроченные коды пользователя удаляются,
// действующие остаются.
func (s *OTPService) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	now := s.now()
	db := s.db.WithContext(ctx)

	if err := db.Where("user_id = ? AND expires_at < ?", userID, now).
		Delete(&models.OTPCode{}).Error; err != nil {
		return "", fmt.Errorf("failed to purge expired codes: %w", err)
	}

	code, err := utils.GenerateNumericCode(s.config.CodeLength)
	if err != nil {
		return "", err
	}

	hash, err := utils.HashCode(code, s.config.BCryptCost)
	if err != nil {
		return "", err
	}

	record := &models.OTPCode{
		BaseModel: models.BaseModel{CreatedAt: now, UpdatedAt: now},
		UserID:    userID,
		CodeHash:  hash,
		ExpiresAt: now.Add(s.config.CodeTTL),
	}
	if err := db.Create(record).Error; err != nil {
		return "", fmt.Errorf("failed to save code: %w", err)
	}

	return code, nil
}

// Validate проверяет код. При успехе удаляются все коды пользователя,
// при неудаче увеличивается счетчик попыток всех действующих кодов.
func (s *OTPService) Validate(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	now := s.now()
	db := s.db.WithContext(ctx)

	var candidates []models.OTPCode
	if err := db.Where("user_id = ? AND expires_at > ? AND attempts < ?", userID, now, s.config.MaxCodeAttempts).
		Order("created_at DESC").
		Find(&candidates).Error; err != nil {
		return false, fmt.Errorf("failed to load codes: %w", err)
	}

	for _, candidate := range candidates {
		if !utils.CheckCode(candidate.CodeHash, code) {
			continue
		}

		res := db.Where("user_id = ?", userID).Delete(&models.OTPCode{})
		if res.Error != nil {
			return false, fmt.Errorf("failed to consume code: %w", res.Error)
		}
		// параллельная проверка уже использовала код
		if res.RowsAffected == 0 {
			return false, nil
		}
		return true, nil
	}

	if err := db.Model(&models.OTPCode{}).
		Where("user_id = ? AND expires_at > ?", userID, now).
		UpdateColumn("attempts", gorm.Expr("attempts + ?", 1)).Error; err != nil {
		return false, fmt.Errorf("failed to count attempt: %w", err)
	}

	return false, nil
}
