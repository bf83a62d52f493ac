package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/AndrewYakovlev/aso-store/internal/models"
	"github.com/AndrewYakovlev/aso-store/pkg/utils"
)

const (
	anonymousTokenBytes = 32 // 256 бит
	sessionIDBytes      = 16 // 128 бит
)

type AnonymousService struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewAnonymousService(db *gorm.DB, logger *zap.Logger) *AnonymousService {
	return &AnonymousService{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreate возвращает анонимную личность по токену из cookie или создает новую.
// Уже слитая с аккаунтом личность считается недействительной.
func (s *AnonymousService) GetOrCreate(ctx context.Context, token string, meta RequestMeta) (*models.AnonymousUser, error) {
	if token != "" {
		anon, err := s.touch(ctx, token)
		if err != nil {
			return nil, err
		}
		if anon != nil {
			return anon, nil
		}
	}

	return s.create(ctx, meta)
}

// FindByToken ищет действующую анонимную личность, nil если не найдена
func (s *AnonymousService) FindByToken(ctx context.Context, token string) (*models.AnonymousUser, error) {
	var anon models.AnonymousUser
	err := s.db.WithContext(ctx).
		Where("token = ? AND linked_user_id IS NULL", token).
		First(&anon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find anonymous user: %w", err)
	}
	return &anon, nil
}

func (s *AnonymousService) touch(ctx context.Context, token string) (*models.AnonymousUser, error) {
	anon, err := s.FindByToken(ctx, token)
	if err != nil || anon == nil {
		return nil, err
	}

	// lastActivity строго возрастает
	activity := s.now()
	if !activity.After(anon.LastActivity) {
		activity = anon.LastActivity.Add(time.Microsecond)
	}

	if err := s.db.WithContext(ctx).Model(anon).
		Update("last_activity", activity).Error; err != nil {
		return nil, fmt.Errorf("failed to refresh anonymous activity: %w", err)
	}
	anon.LastActivity = activity

	return anon, nil
}

func (s *AnonymousService) create(ctx context.Context, meta RequestMeta) (*models.AnonymousUser, error) {
	token, err := utils.GenerateSecureToken(anonymousTokenBytes)
	if err != nil {
		return nil, err
	}
	sessionID, err := utils.GenerateSecureToken(sessionIDBytes)
	if err != nil {
		return nil, err
	}

	now := s.now()
	anon := &models.AnonymousUser{
		BaseModel:    models.BaseModel{CreatedAt: now, UpdatedAt: now},
		Token:        token,
		SessionID:    sessionID,
		LastActivity: now,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	}
	if err := s.db.WithContext(ctx).Create(anon).Error; err != nil {
		return nil, fmt.Errorf("failed to create anonymous user: %w", err)
	}

	s.logger.Debug("Anonymous user created", zap.String("anonymous_id", anon.ID.String()))
	return anon, nil
}
