package models

import (
	"time"

	"gorm.io/gorm"
)

// Todo status constants
const (
	TodoStatusPending    = "PENDING"
	TodoStatusInProgress = "IN_PROGRESS"
	TodoStatusCompleted  = "COMPLETED"
)

// ValidTodoStatus reports whether s is one of the three todo status values.
func ValidTodoStatus(s string) bool {
	switch s {
	case TodoStatusPending, TodoStatusInProgress, TodoStatusCompleted:
		return true
	}
	return false
}

// Todo represents a task item with a creator, an assignee, and a display order.
// Creator and assignee are two independent references to users; either side
// may read and update the todo, only the creator may delete it.
type Todo struct {
	gorm.Model
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	Status      string `gorm:"not null;default:'PENDING';index"`
	DueDate     *time.Time
	Order       int `gorm:"column:sort_order;not null;default:0"`

	CreatedByID  uint `gorm:"not null;index"`
	CreatedBy    User `gorm:"foreignKey:CreatedByID"`
	AssignedToID uint `gorm:"not null;index"`
	AssignedTo   User `gorm:"foreignKey:AssignedToID"`

	Files []File `gorm:"constraint:OnDelete:CASCADE;"`
}
