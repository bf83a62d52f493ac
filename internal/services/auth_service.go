// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/AndrewYakovlev/aso-store/internal/config"
	"github.com/AndrewYakovlev/aso-store/internal/models"
	"github.com/AndrewYakovlev/aso-store/pkg/utils"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrInvalidCode            = errors.New("invalid or expired code")
	ErrTooManyAttempts        = errors.New("too many attempts")
	ErrSMSDelivery            = errors.New("failed to send SMS")
	ErrAnonymousNotFound      = errors.New("anonymous user not found")
	ErrAnonymousAlreadyLinked = errors.New("anonymous user already linked")
	ErrInvalidRole            = errors.New("invalid role")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidPhone           = errors.New("invalid phone")
)

type AuthService struct {
	db     *gorm.DB
	redis  *redis.Client
	config *config.Config
	otp    *OTPService
	merge  *MergeService
	sms    SMSSender
	tokens *utils.TokenCodec
	audit  *AuditService
	logger *zap.Logger
	now    func() time.Time
}

func NewAuthService(
	db *gorm.DB,
	redis *redis.Client,
	config *config.Config,
	otp *OTPService,
	merge *MergeService,
	sms SMSSender,
	tokens *utils.TokenCodec,
	audit *AuditService,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		db:     db,
		redis:  redis,
		config: config,
		otp:    otp,
		merge:  merge,
		sms:    sms,
		tokens: tokens,
		audit:  audit,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SendOTP находит или создает пользователя по телефону и отправляет ему код
func (s *AuthService) SendOTP(ctx context.Context, req SendOTPRequest) (*SendOTPResponse, error) {
	if !utils.IsValidPhone(req.Phone) {
		return nil, ErrInvalidPhone
	}

	// Проверка rate limiting
	if err := s.checkRateLimit(ctx, "send_otp", req.Phone); err != nil {
		if errors.Is(err, ErrTooManyAttempts) {
			s.audit.Record(AuditEntry{Action: AuditRateLimited, Details: utils.MaskPhone(req.Phone), Meta: req.Meta})
		}
		return nil, err
	}

	user, err := s.findOrCreateUser(ctx, req.Phone)
	if err != nil {
		return nil, err
	}

	code, err := s.otp.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.sms.SendOTP(ctx, req.Phone, code); err != nil {
		s.logger.Error("Failed to send OTP",
			zap.String("user_id", user.ID.String()),
			zap.String("phone", utils.MaskPhone(req.Phone)),
			zap.Error(err),
		)
		s.audit.Record(AuditEntry{UserID: &user.ID, Action: AuditSMSFailed, Details: err.Error(), Meta: req.Meta})
		return nil, fmt.Errorf("%w: %v", ErrSMSDelivery, err)
	}

	s.audit.Record(AuditEntry{UserID: &user.ID, Action: AuditOTPSent, Success: true, Meta: req.Meta})

	return &SendOTPResponse{
		UserID:    user.ID,
		IsNewUser: !user.PhoneVerified,
	}, nil
}

// VerifyOTP проверяет код, отмечает вход и, если передан anonymousId,
// переносит данные анонимной сессии
func (s *AuthService) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*VerifyOTPResponse, error) {
	ok, err := s.otp.Validate(ctx, req.UserID, req.Code)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.audit.Record(AuditEntry{UserID: &req.UserID, Action: AuditOTPFailed, Meta: req.Meta})
		return nil, ErrInvalidCode
	}

	user, err := s.findUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"phone_verified":   true,
		"last_login_at":    now,
		"last_activity_at": now,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	resp := &VerifyOTPResponse{User: NewPublicUser(user)}

	anonymousID := ""
	if req.AnonymousID != nil {
		anonymousID = req.AnonymousID.String()
		merge, err := s.mergeAnonymous(ctx, *req.AnonymousID, user.ID, req.Meta)
		if err != nil {
			return nil, err
		}
		resp.Merge = merge
	}

	token, err := s.tokens.Sign(utils.SessionPayload{
		UserID:      user.ID.String(),
		Role:        string(user.Role),
		AnonymousID: anonymousID,
	})
	if err != nil {
		return nil, err
	}
	resp.Token = token

	s.audit.Record(AuditEntry{UserID: &user.ID, Action: AuditOTPVerified, Success: true, Meta: req.Meta})

	return resp, nil
}

// mergeAnonymous переносит данные анонимной сессии в одной транзакции.
// Уже привязанная или неизвестная сессия пропускается, вход продолжается.
// Любая другая ошибка откатывает транзакцию (сессия остается непривязанной,
// повтор безопасен) и возвращается вызывающему.
func (s *AuthService) mergeAnonymous(ctx context.Context, anonymousID, userID uuid.UUID, meta RequestMeta) (*MergeResult, error) {
	result, err := s.merge.Merge(ctx, anonymousID, userID)
	if err == nil {
		s.audit.Record(AuditEntry{UserID: &userID, Action: AuditMerge, Details: anonymousID.String(), Success: true, Meta: meta})
		return result, nil
	}

	fields := []zap.Field{
		zap.String("anonymous_id", anonymousID.String()),
		zap.String("user_id", userID.String()),
		zap.Error(err),
	}
	s.audit.Record(AuditEntry{UserID: &userID, Action: AuditMerge, Details: err.Error(), Meta: meta})

	if errors.Is(err, ErrAnonymousAlreadyLinked) || errors.Is(err, ErrAnonymousNotFound) {
		s.logger.Warn("Anonymous merge skipped", fields...)
		return nil, nil
	}

	s.logger.Error("Anonymous merge failed", fields...)
	return nil, fmt.Errorf("failed to merge anonymous session: %w", err)
}

// RefreshToken перевыпускает токен с актуальной ролью пользователя
func (s *AuthService) RefreshToken(ctx context.Context, token string) (*RefreshTokenResponse, error) {
	payload, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return nil, utils.ErrInvalidToken
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	signed, err := s.tokens.Sign(utils.SessionPayload{
		UserID:      user.ID.String(),
		Role:        string(user.Role),
		AnonymousID: payload.AnonymousID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.touchUser(ctx, user.ID); err != nil {
		return nil, err
	}

	s.audit.Record(AuditEntry{UserID: &user.ID, Action: AuditTokenRefresh, Success: true})

	return &RefreshTokenResponse{
		Token:  signed,
		UserID: user.ID,
		Role:   user.Role,
	}, nil
}

// GetCurrentUser профиль текущего пользователя, обновляет lastActivityAt
func (s *AuthService) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*UserProfile, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.touchUser(ctx, user.ID); err != nil {
		return nil, err
	}

	return &UserProfile{
		PublicUser:    NewPublicUser(user),
		PhoneVerified: user.PhoneVerified,
		EmailVerified: user.EmailVerified,
	}, nil
}

// TokenTTL срок жизни сессионного cookie
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

func (s *AuthService) findUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func (s *AuthService) findOrCreateUser(ctx context.Context, phone string) (*models.User, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	err := db.Where("phone = ?", phone).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	now := s.now()
	user = models.User{
		BaseModel: models.BaseModel{CreatedAt: now, UpdatedAt: now},
		Phone:     phone,
		Role:      models.RoleCustomer,
	}
	if err := db.Create(&user).Error; err != nil {
		// пользователя мог создать параллельный запрос
		var existing models.User
		if findErr := db.Where("phone = ?", phone).First(&existing).Error; findErr == nil {
			return &existing, nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User created", zap.String("user_id", user.ID.String()), zap.String("phone", utils.MaskPhone(phone)))
	return &user, nil
}

func (s *AuthService) touchUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_activity_at", s.now()).Error; err != nil {
		return fmt.Errorf("failed to update user activity: %w", err)
	}
	return nil
}

func (s *AuthService) checkRateLimit(ctx context.Context, action, identifier string) error {
	key := fmt.Sprintf("rate_limit:%s:%s", action, identifier)

	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return err
	}

	if count == 1 {
		s.redis.Expire(ctx, key, s.config.Security.SendCodeWindow)
	}

	if count > int64(s.config.Security.SendCodeLimit) {
		return ErrTooManyAttempts
	}

	return nil
}
