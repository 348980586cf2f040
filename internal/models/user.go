package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User role constants
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User status constants
const (
	StatusActive   = "ACTIVE"
	StatusDisabled = "DISABLED"
)

// User represents an application user with credentials, role, and account status
type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex:idx_users_email_not_deleted,where:deleted_at IS NULL;not null"`
	Name         string `gorm:"not null;default:''"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null;default:'USER'"`   // enum: RoleUser or RoleAdmin
	Status       string `gorm:"not null;default:'ACTIVE'"` // enum: StatusActive or StatusDisabled
	AvatarFileID *uint
	Settings     datatypes.JSON `gorm:"type:jsonb"`
	LastLoginAt  *time.Time

	// Associations
	CreatedTodos  []Todo `gorm:"foreignKey:CreatedByID"`
	AssignedTodos []Todo `gorm:"foreignKey:AssignedToID"`
}

// IsActive reports whether the account may be used as an assignment target.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// IsAdmin reports whether the user may access the admin management endpoints.
// The admin role does not grant any implicit access to other users' todos.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserSummary is the denormalized identity shape embedded in todo responses
// so list/get callers never need a second round-trip.
type UserSummary struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	AvatarFileID *uint  `json:"avatar_file_id,omitempty"`
}

// Summary returns the embeddable identity view of the user.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		AvatarFileID: u.AvatarFileID,
	}
}
