package models

import (
	"time"

	"github.com/google/uuid"
)

// OTPCode одноразовый код, хранится только хеш
type OTPCode struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	CodeHash  string    `gorm:"not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`
	Attempts  int       `gorm:"not null;default:0" json:"attempts"`
}
