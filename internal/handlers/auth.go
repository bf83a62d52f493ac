package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/AndrewYakovlev/aso-store/internal/config"
	"github.com/AndrewYakovlev/aso-store/internal/middleware"
	"github.com/AndrewYakovlev/aso-store/internal/services"
	"github.com/AndrewYakovlev/aso-store/pkg/utils"
)

// AuthHandler эндпоинты входа по телефону и анонимных сессий
type AuthHandler struct {
	auth      *services.AuthService
	anonymous *services.AnonymousService
	session   config.SessionConfig
	secure    bool
}

func NewAuthHandler(auth *services.AuthService, anonymous *services.AnonymousService, session config.SessionConfig, secure bool) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		anonymous: anonymous,
		session:   session,
		secure:    secure,
	}
}

type sendOTPRequest struct {
	Phone string `json:"phone" validate:"required,phone"`
}

type verifyOTPRequest struct {
	UserID      string `json:"userId" validate:"required,uuid"`
	Code        string `json:"code" validate:"required,len=6"`
	AnonymousID string `json:"anonymousId" validate:"omitempty,uuid"`
}

// Anonymous возвращает анонимную сессию из cookie или создает новую
func (h *AuthHandler) Anonymous(c *fiber.Ctx) error {
	anon, err := h.anonymous.GetOrCreate(c.UserContext(), c.Cookies(h.session.AnonCookie), requestMeta(c))
	if err != nil {
		return err
	}

	h.setCookie(c, h.session.AnonCookie, anon.Token, h.session.AnonTTL)

	return success(c, fiber.Map{
		"id":        anon.ID,
		"sessionId": anon.SessionID,
	})
}

func (h *AuthHandler) SendOTP(c *fiber.Ctx) error {
	var req sendOTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	resp, err := h.auth.SendOTP(c.UserContext(), services.SendOTPRequest{
		Phone: req.Phone,
		Meta:  requestMeta(c),
	})
	if err != nil {
		return err
	}

	return success(c, resp)
}

func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	in := services.VerifyOTPRequest{
		UserID: uuid.MustParse(req.UserID),
		Code:   req.Code,
		Meta:   requestMeta(c),
	}
	if req.AnonymousID != "" {
		anonID := uuid.MustParse(req.AnonymousID)
		in.AnonymousID = &anonID
	}

	resp, err := h.auth.VerifyOTP(c.UserContext(), in)
	if err != nil {
		return err
	}

	h.setCookie(c, h.session.AuthCookie, resp.Token, h.auth.TokenTTL())

	data := fiber.Map{"user": resp.User}
	if resp.Merge != nil {
		data["merge"] = resp.Merge
	}
	return success(c, data)
}

// Refresh перевыпускает сессионный cookie с актуальной ролью
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	token := c.Cookies(h.session.AuthCookie)
	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "No token provided")
	}

	resp, err := h.auth.RefreshToken(c.UserContext(), token)
	switch {
	case errors.Is(err, utils.ErrInvalidToken):
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	case errors.Is(err, services.ErrUserNotFound):
		return fiber.NewError(fiber.StatusUnauthorized, "User not found")
	case err != nil:
		return err
	}

	h.setCookie(c, h.session.AuthCookie, resp.Token, h.auth.TokenTTL())

	return success(c, fiber.Map{
		"userId": resp.UserID,
		"role":   resp.Role,
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
	}

	profile, err := h.auth.GetCurrentUser(c.UserContext(), id.UserID)
	if err != nil {
		return err
	}

	return success(c, fiber.Map{"user": profile})
}

func (h *AuthHandler) setCookie(c *fiber.Ctx, name, value string, ttl time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HTTPOnly: true,
		Secure:   h.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
