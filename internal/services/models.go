package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/AndrewYakovlev/aso-store/internal/models"
)

// RequestMeta данные о клиенте для аудита и анонимных сессий
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type SendOTPRequest struct {
	Phone string
	Meta  RequestMeta
}

type SendOTPResponse struct {
	UserID    uuid.UUID `json:"userId"`
	IsNewUser bool      `json:"isNewUser"`
}

type VerifyOTPRequest struct {
	UserID      uuid.UUID
	Code        string
	AnonymousID *uuid.UUID
	Meta        RequestMeta
}

type VerifyOTPResponse struct {
	Token string
	User  PublicUser
	Merge *MergeResult
}

type RefreshTokenResponse struct {
	Token  string
	UserID uuid.UUID   `json:"userId"`
	Role   models.Role `json:"role"`
}

// PublicUser поля профиля, которые отдаются клиенту после входа
type PublicUser struct {
	ID        uuid.UUID   `json:"id"`
	Phone     string      `json:"phone"`
	Email     *string     `json:"email"`
	FirstName *string     `json:"firstName"`
	LastName  *string     `json:"lastName"`
	Role      models.Role `json:"role"`
}

func NewPublicUser(u *models.User) PublicUser {
	return PublicUser{
		ID:        u.ID,
		Phone:     u.Phone,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
	}
}

// UserProfile ответ /auth/me
type UserProfile struct {
	PublicUser
	PhoneVerified bool `json:"phoneVerified"`
	EmailVerified bool `json:"emailVerified"`
}

// MergeResult что было перенесено из анонимной сессии
type MergeResult struct {
	CartItemsMerged int   `json:"cartItemsMerged"`
	CartItemsCopied int   `json:"cartItemsCopied"`
	FavoritesAdded  int64 `json:"favoritesAdded"`
	ViewsMoved      int64 `json:"viewsMoved"`
	SearchesMoved   int64 `json:"searchesMoved"`
	ChatsMoved      int64 `json:"chatsMoved"`
}

type UserFilter struct {
	Search string
	Role   models.Role
}

// UserSummary строка списка пользователей в админке
type UserSummary struct {
	ID             uuid.UUID   `json:"id"`
	Phone          string      `json:"phone"`
	Email          *string     `json:"email"`
	FirstName      *string     `json:"firstName"`
	LastName       *string     `json:"lastName"`
	Role           models.Role `json:"role"`
	PhoneVerified  bool        `json:"phoneVerified"`
	EmailVerified  bool        `json:"emailVerified"`
	CreatedAt      time.Time   `json:"createdAt"`
	LastActivityAt *time.Time  `json:"lastActivityAt"`
}

func NewUserSummary(u *models.User) UserSummary {
	return UserSummary{
		ID:             u.ID,
		Phone:          u.Phone,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Role:           u.Role,
		PhoneVerified:  u.PhoneVerified,
		EmailVerified:  u.EmailVerified,
		CreatedAt:      u.CreatedAt,
		LastActivityAt: u.LastActivityAt,
	}
}

type UserCounts struct {
	Carts     int64 `json:"carts"`
	Favorites int64 `json:"favorites"`
	Chats     int64 `json:"chats"`
}

type UserDetails struct {
	*models.User
	Count UserCounts `json:"_count"`
}

type AnonymousSessionFilter struct {
	HasActivity bool
	Limit       int
}

type SessionActivity struct {
	CartItems        int64 `json:"cartItems"`
	FavoriteProducts int64 `json:"favoriteProducts"`
	Chats            int64 `json:"chats"`
}

type LinkedUserSummary struct {
	ID        uuid.UUID `json:"id"`
	Phone     string    `json:"phone"`
	FirstName *string   `json:"firstName"`
	LastName  *string   `json:"lastName"`
}

type AnonymousSessionSummary struct {
	ID           uuid.UUID          `json:"id"`
	SessionID    string             `json:"sessionId"`
	CreatedAt    time.Time          `json:"createdAt"`
	LastActivity time.Time          `json:"lastActivity"`
	LinkedUser   *LinkedUserSummary `json:"linkedUser"`
	Activity     SessionActivity    `json:"activity"`
}

// ProductViewEvent просмотр карточки товара для телеметрии
type ProductViewEvent struct {
	ProductID      uuid.UUID
	UserID         *uuid.UUID
	AnonymousToken string
	Referrer       string
}

type SearchResult struct {
	Products []models.Product `json:"products"`
}
