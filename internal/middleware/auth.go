package middleware

import (
	"context"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AndrewYakovlev/aso-store/internal/models"
	"github.com/AndrewYakovlev/aso-store/pkg/utils"
)

// Заголовки, которые клиент не должен передавать сам
var forwardedIdentityHeaders = []string{"x-user-id", "x-user-role", "x-anonymous-id"}

const localsIdentity = "identity"

// Identity проверенная личность текущего запроса
type Identity struct {
	UserID      uuid.UUID
	Role        models.Role
	AnonymousID *uuid.UUID
}

type identityKey struct{}

func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// CurrentIdentity личность из fiber-контекста
func CurrentIdentity(c *fiber.Ctx) (*Identity, bool) {
	if id, ok := c.Locals(localsIdentity).(*Identity); ok && id != nil {
		return id, true
	}
	return IdentityFromContext(c.UserContext())
}

// SessionConfig конфигурация для проверки сессии
type SessionConfig struct {
	CookieName     string
	PublicPaths    []string
	ProtectedPaths []string
	StaffPaths     []string
}

func DefaultSessionConfig(cookieName string) SessionConfig {
	return SessionConfig{
		CookieName: cookieName,
		PublicPaths: []string{
			"/api/v1/auth/anonymous",
			"/api/v1/auth/send-otp",
			"/api/v1/auth/verify-otp",
			"/api/v1/auth/refresh",
		},
		ProtectedPaths: []string{
			"/profile",
			"/panel",
			"/api/v1/admin",
			"/api/v1/auth/me",
		},
		StaffPaths: []string{
			"/panel",
			"/api/v1/admin",
		},
	}
}

// SessionMiddleware проверяет сессионный cookie и кладет личность в контекст запроса
type SessionMiddleware struct {
	config SessionConfig
	tokens *utils.TokenCodec
	logger *zap.Logger
}

func NewSessionMiddleware(config SessionConfig, tokens *utils.TokenCodec, logger *zap.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		config: config,
		tokens: tokens,
		logger: logger,
	}
}

func (m *SessionMiddleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, h := range forwardedIdentityHeaders {
			c.Request().Header.Del(h)
		}

		path := c.Path()
		if matchesAny(path, m.config.PublicPaths) {
			return c.Next()
		}

		token := c.Cookies(m.config.CookieName)

		if !matchesAny(path, m.config.ProtectedPaths) {
			// на открытых путях личность необязательна
			if token != "" {
				if id, err := m.identify(token); err == nil {
					m.inject(c, id)
				}
			}
			return c.Next()
		}

		if token == "" {
			m.logger.Debug("No token for protected path", zap.String("path", path))
			return unauthorized(c, path)
		}

		id, err := m.identify(token)
		if err != nil {
			m.logger.Info("Invalid token for protected path", zap.String("path", path), zap.Error(err))
			return unauthorized(c, path)
		}

		if matchesAny(path, m.config.StaffPaths) && !id.Role.IsStaff() {
			m.logger.Info("Access denied for role",
				zap.String("path", path),
				zap.String("user_id", id.UserID.String()),
				zap.String("role", string(id.Role)),
			)
			return forbidden(c, path)
		}

		m.inject(c, id)
		return c.Next()
	}
}

func (m *SessionMiddleware) identify(token string) (*Identity, error) {
	payload, err := m.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return nil, utils.ErrInvalidToken
	}

	id := &Identity{UserID: userID, Role: models.Role(payload.Role)}
	if payload.AnonymousID != "" {
		if anonID, err := uuid.Parse(payload.AnonymousID); err == nil {
			id.AnonymousID = &anonID
		}
	}
	return id, nil
}

func (m *SessionMiddleware) inject(c *fiber.Ctx, id *Identity) {
	c.Locals(localsIdentity, id)
	c.SetUserContext(ContextWithIdentity(c.UserContext(), id))
}

// RequireIdentity отвечает 401, если личность не установлена
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := CurrentIdentity(c); !ok {
			return unauthorized(c, c.Path())
		}
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, path string) error {
	if isAPIPath(path) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}
	return c.Redirect("/?redirect="+url.QueryEscape(path), fiber.StatusFound)
}

func forbidden(c *fiber.Ctx, path string) error {
	if isAPIPath(path) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	return c.Redirect("/", fiber.StatusFound)
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// matchesAny сравнивает по границе сегмента: /panel совпадает с /panel/users, но не с /panelx
func matchesAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
