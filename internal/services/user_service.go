package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/AndrewYakovlev/aso-store/internal/models"
)

const (
	usersListLimit          = 100
	defaultSessionsLimit    = 100
	maxSessionsLimit        = 500
	userDetailsFavoritesMax = 20
)

// UserService операции админки над пользователями и анонимными сессиями
type UserService struct {
	db     *gorm.DB
	audit  *AuditService
	logger *zap.Logger
}

func NewUserService(db *gorm.DB, audit *AuditService, logger *zap.Logger) *UserService {
	return &UserService{db: db, audit: audit, logger: logger}
}

func (s *UserService) ListUsers(ctx context.Context, filter UserFilter) ([]UserSummary, error) {
	q := s.db.WithContext(ctx).Model(&models.User{})

	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where(
			"phone LIKE ? OR LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?",
			"%"+search+"%", like, like, like,
		)
	}
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}

	var users []models.User
	if err := q.Order("created_at DESC").Limit(usersListLimit).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	summaries := make([]UserSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, NewUserSummary(&users[i]))
	}
	return summaries, nil
}

// GetUserDetails пользователь с последней корзиной, избранным и анонимными сессиями
func (s *UserService) GetUserDetails(ctx context.Context, userID uuid.UUID) (*UserDetails, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	err := db.
		Preload("Carts", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("updated_at DESC").Limit(1)
		}).
		Preload("Carts.Items").
		Preload("Favorites", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at DESC").Limit(userDetailsFavoritesMax)
		}).
		Preload("AnonymousSessions").
		First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	details := &UserDetails{User: &user}
	counts := []struct {
		model interface{}
		dest  *int64
	}{
		{&models.Cart{}, &details.Count.Carts},
		{&models.Favorite{}, &details.Count.Favorites},
		{&models.Chat{}, &details.Count.Chats},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Where("user_id = ?", userID).Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count user data: %w", err)
		}
	}

	return details, nil
}

// UpdateRole меняет роль пользователя, доступно только администратору
func (s *UserService) UpdateRole(ctx context.Context, actorID uuid.UUID, actorRole models.Role, userID uuid.UUID, role models.Role) (*UserSummary, error) {
	if actorRole != models.RoleAdmin {
		return nil, ErrForbidden
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	db := s.db.WithContext(ctx)
	res := db.Model(&models.User{}).Where("id = ?", userID).Update("role", role)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update role: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	s.audit.Record(AuditEntry{
		UserID:  &actorID,
		Action:  AuditRoleChanged,
		Details: fmt.Sprintf("user=%s role=%s", userID, role),
		Success: true,
	})

	summary := NewUserSummary(&user)
	return &summary, nil
}

type activityCount struct {
	ID uuid.UUID
	N  int64
}

// ListAnonymousSessions анонимные сессии по убыванию активности
func (s *UserService) ListAnonymousSessions(ctx context.Context, filter AnonymousSessionFilter) ([]AnonymousSessionSummary, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSessionsLimit
	}
	if limit > maxSessionsLimit {
		limit = maxSessionsLimit
	}

	db := s.db.WithContext(ctx)
	q := db.Preload("LinkedUser")
	if filter.HasActivity {
		q = q.Where(
			"EXISTS (SELECT 1 FROM cart_items JOIN carts ON carts.id = cart_items.cart_id WHERE carts.anonymous_id = anonymous_users.id)" +
				" OR EXISTS (SELECT 1 FROM favorites WHERE favorites.anonymous_id = anonymous_users.id)" +
				" OR EXISTS (SELECT 1 FROM chats WHERE chats.anonymous_id = anonymous_users.id)",
		)
	}

	var sessions []models.AnonymousUser
	if err := q.Order("last_activity DESC").Limit(limit).Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list anonymous sessions: %w", err)
	}
	if len(sessions) == 0 {
		return []AnonymousSessionSummary{}, nil
	}

	ids := make([]uuid.UUID, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID)
	}

	cartItems, err := s.countBy(db.Table("cart_items").
		Select("carts.anonymous_id AS id, COUNT(*) AS n").
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.anonymous_id IN ?", ids).
		Group("carts.anonymous_id"))
	if err != nil {
		return nil, err
	}
	favorites, err := s.countBy(db.Table("favorites").
		Select("anonymous_id AS id, COUNT(*) AS n").
		Where("anonymous_id IN ?", ids).
		Group("anonymous_id"))
	if err != nil {
		return nil, err
	}
	chats, err := s.countBy(db.Table("chats").
		Select("anonymous_id AS id, COUNT(*) AS n").
		Where("anonymous_id IN ?", ids).
		Group("anonymous_id"))
	if err != nil {
		return nil, err
	}

	result := make([]AnonymousSessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summary := AnonymousSessionSummary{
			ID:           session.ID,
			SessionID:    session.SessionID,
			CreatedAt:    session.CreatedAt,
			LastActivity: session.LastActivity,
			Activity: SessionActivity{
				CartItems:        cartItems[session.ID],
				FavoriteProducts: favorites[session.ID],
				Chats:            chats[session.ID],
			},
		}
		if session.LinkedUser != nil {
			summary.LinkedUser = &LinkedUserSummary{
				ID:        session.LinkedUser.ID,
				Phone:     session.LinkedUser.Phone,
				FirstName: session.LinkedUser.FirstName,
				LastName:  session.LinkedUser.LastName,
			}
		}
		result = append(result, summary)
	}
	return result, nil
}

func (s *UserService) countBy(q *gorm.DB) (map[uuid.UUID]int64, error) {
	var rows []activityCount
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count session activity: %w", err)
	}
	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.ID] = row.N
	}
	return counts, nil
}
