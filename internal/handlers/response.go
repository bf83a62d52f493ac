package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/AndrewYakovlev/aso-store/internal/models"
	"github.com/AndrewYakovlev/aso-store/internal/services"
	"github.com/AndrewYakovlev/aso-store/pkg/locale"
	"github.com/AndrewYakovlev/aso-store/pkg/utils"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// в details поле называется так же, как в JSON
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
		return utils.IsValidPhone(fl.Field().String())
	})
	mustRegister(v, "role", func(fl validator.FieldLevel) bool {
		return models.Role(fl.Field().String()).Valid()
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("handlers: register validation %q: %v", tag, err))
	}
}

// FieldError описание ошибки одного поля запроса
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationError тело запроса не прошло валидацию
type ValidationError struct {
	Details []FieldError
}

func (e *ValidationError) Error() string {
	return "validation error"
}

func newValidationError(errs validator.ValidationErrors) *ValidationError {
	details := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		details = append(details, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: fieldMessage(fe),
		})
	}
	return &ValidationError{Details: details}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return locale.Get("field_required")
	case "phone":
		return locale.Get("phone_invalid")
	case "role":
		return locale.Get("role_invalid")
	case "uuid":
		return locale.Get("field_uuid")
	case "len":
		if fe.Field() == "code" {
			return locale.Get("code_invalid")
		}
		return locale.Get("field_len")
	default:
		return locale.Get("field_invalid")
	}
}

// parseBody разбирает JSON тела и проверяет его тегами validate
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			return newValidationError(errs)
		}
		return err
	}
	return nil
}

func success(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// requestMeta копирует значения: строки fiber ссылаются на буфер запроса,
// а метаданные уходят в фоновые задачи аудита
func requestMeta(c *fiber.Ctx) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: fiberutils.CopyString(c.IP()),
		UserAgent: fiberutils.CopyString(c.Get(fiber.HeaderUserAgent)),
	}
}

// NewErrorHandler единая точка преобразования ошибок в HTTP-ответ.
// Неизвестные ошибки логируются и отдаются как непрозрачный 500.
func NewErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "Validation error",
				"details": verr.Details,
			})
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		status, message := classify(err)
		if status >= fiber.StatusInternalServerError {
			logger.Error("Request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}
		return c.Status(status).JSON(fiber.Map{"error": message})
	}
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrInvalidPhone):
		return fiber.StatusBadRequest, locale.Get("phone_invalid")
	case errors.Is(err, services.ErrInvalidCode):
		return fiber.StatusBadRequest, "Invalid or expired code"
	case errors.Is(err, services.ErrInvalidRole):
		return fiber.StatusBadRequest, "Invalid role"
	case errors.Is(err, utils.ErrInvalidToken):
		return fiber.StatusUnauthorized, "Invalid token"
	case errors.Is(err, services.ErrForbidden):
		return fiber.StatusForbidden, "Forbidden"
	case errors.Is(err, services.ErrUserNotFound):
		return fiber.StatusNotFound, "User not found"
	case errors.Is(err, services.ErrProductNotFound):
		return fiber.StatusNotFound, "Product not found"
	case errors.Is(err, services.ErrTooManyAttempts):
		return fiber.StatusTooManyRequests, locale.Get("too_many_requests")
	case errors.Is(err, services.ErrSMSDelivery):
		return fiber.StatusInternalServerError, "Failed to send SMS"
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}
