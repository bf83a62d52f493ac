package models

import (
	"time"

	"github.com/google/uuid"
)

// Product только для чтения в этом сервисе
type Product struct {
	BaseModel
	Name     string  `gorm:"not null" json:"name"`
	Slug     string  `gorm:"uniqueIndex;not null" json:"slug"`
	SKU      string  `gorm:"index;not null" json:"sku"`
	Price    float64 `gorm:"type:decimal(12,2);not null" json:"price"`
	Stock    int     `gorm:"not null;default:0" json:"stock"`
	IsActive bool    `gorm:"not null;index" json:"isActive"`
}

// ProductView запись о просмотре карточки товара
type ProductView struct {
	BaseModel
	ProductID uuid.UUID  `gorm:"type:uuid;not null;index" json:"productId"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"userId"`
	SessionID *string    `gorm:"size:64" json:"sessionId"`
	Source    string     `gorm:"size:32" json:"source"`
	Referrer  *string    `json:"referrer"`
}

// SearchQuery агрегированная статистика поисковых запросов
type SearchQuery struct {
	BaseModel
	Query      string    `gorm:"uniqueIndex;not null" json:"query"`
	Count      int       `gorm:"not null;default:1" json:"count"`
	LastUsedAt time.Time `gorm:"not null" json:"lastUsedAt"`
}
