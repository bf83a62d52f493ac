package models

import (
	"time"

	"github.com/google/uuid"
)

// AnonymousUser посетитель без входа, узнаваемый по cookie
type AnonymousUser struct {
	BaseModel
	Token        string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	SessionID    string     `gorm:"uniqueIndex;size:32;not null" json:"sessionId"`
	LinkedUserID *uuid.UUID `gorm:"type:uuid;index" json:"linkedUserId"`
	LinkedUser   *User      `gorm:"foreignKey:LinkedUserID" json:"linkedUser,omitempty"`
	LastActivity time.Time  `gorm:"index;not null" json:"lastActivity"`
	IPAddress    string     `gorm:"size:64" json:"ipAddress,omitempty"`
	UserAgent    string     `json:"userAgent,omitempty"`
}

// IsLinked анонимная личность уже слита с аккаунтом
func (a *AnonymousUser) IsLinked() bool {
	return a.LinkedUserID != nil
}
