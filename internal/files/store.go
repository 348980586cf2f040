package files

import (
	"context"

	"github.com/taskhub/taskhub/internal/models"
	"gorm.io/gorm"
)

// Store is the persistence boundary for attachment metadata. Access control
// stays with the caller; every query here is unscoped except ListForUser,
// whose join mirrors the access predicate so the aggregate view never leaks
// other users' attachments.
type Store interface {
	// Get returns the file with its parent todo resolved, or
	// gorm.ErrRecordNotFound.
	Get(ctx context.Context, id uint) (*models.File, error)

	// GetTodo resolves the parent todo for upload/list access checks.
	GetTodo(ctx context.Context, id uint) (*models.Todo, error)

	// ListForTodo returns the attachments of one todo.
	ListForTodo(ctx context.Context, todoID uint) ([]models.File, error)

	// ListForUser aggregates attachments across every todo the user can
	// access (creator or assignee).
	ListForUser(ctx context.Context, userID uint) ([]models.File, error)

	// CreateBatch persists the metadata records in one transaction.
	CreateBatch(ctx context.Context, recs []models.File) error

	// Delete removes one metadata record.
	Delete(ctx context.Context, id uint) error
}

// GormStore is the database-backed Store.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Get(ctx context.Context, id uint) (*models.File, error) {
	var file models.File
	if err := s.DB.WithContext(ctx).Preload("Todo").First(&file, id).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

func (s *GormStore) GetTodo(ctx context.Context, id uint) (*models.Todo, error) {
	var todo models.Todo
	if err := s.DB.WithContext(ctx).First(&todo, id).Error; err != nil {
		return nil, err
	}
	return &todo, nil
}

func (s *GormStore) ListForTodo(ctx context.Context, todoID uint) ([]models.File, error) {
	var recs []models.File
	err := s.DB.WithContext(ctx).
		Where("todo_id = ?", todoID).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *GormStore) ListForUser(ctx context.Context, userID uint) ([]models.File, error) {
	var recs []models.File
	err := s.DB.WithContext(ctx).
		Joins("JOIN todos ON todos.id = files.todo_id AND todos.deleted_at IS NULL").
		Where("todos.created_by_id = ? OR todos.assigned_to_id = ?", userID, userID).
		Order("files.created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *GormStore) CreateBatch(ctx context.Context, recs []models.File) error {
	if len(recs) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&recs).Error
	})
}

func (s *GormStore) Delete(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Delete(&models.File{}, id).Error
}
