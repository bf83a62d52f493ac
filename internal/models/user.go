package models

import "time"

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

// Valid проверяет, что роль из допустимого набора
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// IsStaff менеджер или администратор
func (r Role) IsStaff() bool {
	return r == RoleManager || r == RoleAdmin
}

// User покупатель или сотрудник, идентифицированный по телефону
type User struct {
	BaseModel
	Phone          string     `gorm:"uniqueIndex;size:16;not null" json:"phone"`
	Email          *string    `gorm:"uniqueIndex" json:"email"`
	FirstName      *string    `json:"firstName"`
	LastName       *string    `json:"lastName"`
	Role           Role       `gorm:"type:varchar(16);not null;default:'CUSTOMER';index" json:"role"`
	PhoneVerified  bool       `gorm:"not null" json:"phoneVerified"`
	EmailVerified  bool       `gorm:"not null" json:"emailVerified"`
	LastLoginAt    *time.Time `json:"lastLoginAt"`
	LastActivityAt *time.Time `json:"lastActivityAt"`

	Carts             []Cart          `gorm:"foreignKey:UserID" json:"carts,omitempty"`
	Favorites         []Favorite      `gorm:"foreignKey:UserID" json:"favorites,omitempty"`
	AnonymousSessions []AnonymousUser `gorm:"foreignKey:LinkedUserID" json:"anonymousSessions,omitempty"`
}
