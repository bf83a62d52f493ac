package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel общие колонки всех таблиц
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate генерирует UUID для новых записей
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// All перечисляет модели для AutoMigrate в порядке зависимостей
func All() []interface{} {
	return []interface{}{
		&User{},
		&AnonymousUser{},
		&OTPCode{},
		&Product{},
		&Cart{},
		&CartItem{},
		&Favorite{},
		&ViewHistory{},
		&SearchHistory{},
		&Chat{},
		&ProductView{},
		&SearchQuery{},
		&UserAuditLog{},
	}
}
