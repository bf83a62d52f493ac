package models

import "github.com/google/uuid"

// Cart принадлежит либо пользователю, либо анонимной личности
type Cart struct {
	BaseModel
	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"userId"`
	AnonymousID *uuid.UUID `gorm:"type:uuid;index" json:"anonymousId"`
	Items       []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

type CartItem struct {
	BaseModel
	CartID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"cartId"`
	ProductID     *uuid.UUID `gorm:"type:uuid;index" json:"productId"`
	ChatProductID *uuid.UUID `gorm:"type:uuid" json:"chatProductId"`
	Quantity      int        `gorm:"not null" json:"quantity"`
	Price         float64    `gorm:"type:decimal(12,2);not null" json:"price"`
}

type Favorite struct {
	BaseModel
	UserID      *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_favorites_user_product" json:"userId"`
	AnonymousID *uuid.UUID `gorm:"type:uuid;index" json:"anonymousId"`
	ProductID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_favorites_user_product" json:"productId"`
}

type ViewHistory struct {
	BaseModel
	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"userId"`
	AnonymousID *uuid.UUID `gorm:"type:uuid;index" json:"anonymousId"`
	ProductID   uuid.UUID  `gorm:"type:uuid;not null" json:"productId"`
}

type SearchHistory struct {
	BaseModel
	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"userId"`
	AnonymousID *uuid.UUID `gorm:"type:uuid;index" json:"anonymousId"`
	Query       string     `gorm:"not null" json:"query"`
}

type Chat struct {
	BaseModel
	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"userId"`
	AnonymousID *uuid.UUID `gorm:"type:uuid;index" json:"anonymousId"`
	Status      string     `gorm:"size:32;not null;default:'ACTIVE'" json:"status"`
}
