package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/AndrewYakovlev/aso-store/internal/middleware"
	"github.com/AndrewYakovlev/aso-store/internal/models"
	"github.com/AndrewYakovlev/aso-store/internal/services"
)

// AdminHandler эндпоинты панели управления пользователями.
// Доступ персонала проверяет SessionMiddleware.
type AdminHandler struct {
	users *services.UserService
}

func NewAdminHandler(users *services.UserService) *AdminHandler {
	return &AdminHandler{users: users}
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	filter := services.UserFilter{
		Search: c.Query("search"),
		Role:   models.Role(c.Query("role")),
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return services.ErrInvalidRole
	}

	users, err := h.users.ListUsers(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return success(c, users)
}

func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return services.ErrUserNotFound
	}

	details, err := h.users.GetUserDetails(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return success(c, details)
}

// UpdateRole меняет роль, доступно только ADMIN
func (h *AdminHandler) UpdateRole(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentIdentity(c)
	if !ok || actor.Role != models.RoleAdmin {
		return services.ErrForbidden
	}

	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return services.ErrUserNotFound
	}

	var req updateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return services.ErrInvalidRole
	}

	user, err := h.users.UpdateRole(c.UserContext(), actor.UserID, actor.Role, userID, models.Role(req.Role))
	if err != nil {
		return err
	}
	return success(c, user)
}

func (h *AdminHandler) ListAnonymousSessions(c *fiber.Ctx) error {
	sessions, err := h.users.ListAnonymousSessions(c.UserContext(), services.AnonymousSessionFilter{
		HasActivity: c.Query("hasActivity") == "true",
		Limit:       c.QueryInt("limit", 0),
	})
	if err != nil {
		return err
	}
	return success(c, sessions)
}
