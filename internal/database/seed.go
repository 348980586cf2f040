package database

import (
	"log"
	"time"

	"github.com/taskhub/taskhub/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SeedDevData populates the database with development test data.
// Idempotent: skips if data already exists.
func SeedDevData(db *gorm.DB) error {
	// Check if seed data already exists
	var existingUser models.User
	result := db.Where("email = ?", "admin@taskhub.local").First(&existingUser)
	if result.Error == nil {
		log.Println("Seed data already exists, skipping")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("devpassword"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.User{
		Email:        "admin@taskhub.local",
		Name:         "Dev Admin",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		Status:       models.StatusActive,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	user := models.User{
		Email:        "dev@taskhub.local",
		Name:         "Dev User",
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		Status:       models.StatusActive,
		Settings:     datatypes.JSON([]byte(`{"theme":"light","todos_per_page":25}`)),
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}

	due := time.Now().Add(48 * time.Hour)
	todos := []models.Todo{
		{
			Title:        "Review onboarding checklist",
			Description:  "Walk through the new-hire checklist and flag stale entries.",
			Status:       models.TodoStatusPending,
			Order:        1,
			CreatedByID:  admin.ID,
			AssignedToID: user.ID,
			DueDate:      &due,
		},
		{
			Title:        "Prepare sprint notes",
			Status:       models.TodoStatusInProgress,
			Order:        2,
			CreatedByID:  user.ID,
			AssignedToID: user.ID,
		},
	}
	if err := db.Create(&todos).Error; err != nil {
		return err
	}

	log.Println("Seeded dev data: 2 users, 2 todos")
	return nil
}
