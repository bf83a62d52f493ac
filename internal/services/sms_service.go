package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/AndrewYakovlev/aso-store/internal/config"
	"github.com/AndrewYakovlev/aso-store/pkg/locale"
	"github.com/AndrewYakovlev/aso-store/pkg/utils"
)

// smsRuResponse ответ sms.ru/sms/send при json=1
type smsRuResponse struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	StatusText string `json:"status_text"`
	SMS        map[string]struct {
		Status     string `json:"status"`
		StatusCode int    `json:"status_code"`
		StatusText string `json:"status_text"`
		SMSID      string `json:"sms_id"`
	} `json:"sms"`
}

type SMSService struct {
	config     config.SMSConfig
	codeTTL    int
	production bool
	client     *resty.Client
	logger     *zap.Logger
}

func NewSMSService(cfg *config.Config, logger *zap.Logger) *SMSService {
	client := resty.New().
		SetBaseURL(cfg.SMS.BaseURL).
		SetTimeout(cfg.SMS.Timeout)

	return &SMSService{
		config:     cfg.SMS,
		codeTTL:    int(cfg.Security.CodeTTL.Minutes()),
		production: cfg.IsProduction(),
		client:     client,
		logger:     logger,
	}
}

// SendOTP отправляет код подтверждения. Вне продакшена код только логируется.
func (s *SMSService) SendOTP(ctx context.Context, phone, code string) error {
	message := locale.Getf("otp_sms", code, s.codeTTL)

	if !s.production {
		s.logger.Info("SMS delivery skipped outside production",
			zap.String("phone", utils.MaskPhone(phone)),
			zap.String("code", code),
		)
		return nil
	}

	switch s.config.Provider {
	case "sms_ru":
		return s.sendSMSRu(ctx, phone, message)
	default:
		return fmt.Errorf("unsupported SMS provider: %s", s.config.Provider)
	}
}

func (s *SMSService) sendSMSRu(ctx context.Context, phone, message string) error {
	if s.config.APIKey == "" {
		return fmt.Errorf("SMS API key not configured")
	}

	cleanPhone := strings.TrimPrefix(phone, "+")

	form := map[string]string{
		"api_id": s.config.APIKey,
		"to":     cleanPhone,
		"msg":    message,
		"json":   "1",
	}
	if s.config.FromName != "" {
		form["from"] = s.config.FromName
	}

	var result smsRuResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&result).
		Post("/sms/send")
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("SMS provider returned HTTP %d", resp.StatusCode())
	}

	if result.Status != "OK" {
		return fmt.Errorf("SMS sending failed with status: %s (code: %d, %s)",
			result.Status, result.StatusCode, result.StatusText)
	}
	if sms, ok := result.SMS[cleanPhone]; ok && sms.Status != "OK" {
		return fmt.Errorf("SMS rejected for recipient: %s (code: %d)", sms.StatusText, sms.StatusCode)
	}

	s.logger.Info("SMS sent", zap.String("phone", utils.MaskPhone(phone)))
	return nil
}
