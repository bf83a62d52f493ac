package models

import "github.com/google/uuid"

// UserAuditLog событие безопасности, записывается асинхронно
type UserAuditLog struct {
	BaseModel
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"userId"`
	Action    string     `gorm:"size:64;not null;index" json:"action"`
	Details   string     `json:"details"`
	IPAddress string     `gorm:"size:64" json:"ipAddress"`
	UserAgent string     `json:"userAgent"`
	Success   bool       `gorm:"not null" json:"success"`
}
