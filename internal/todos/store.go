package todos

import (
	"context"
	"strings"

	"github.com/taskhub/taskhub/internal/models"
	"gorm.io/gorm"
)

// List scope constants
const (
	ScopeAll      = "all"
	ScopeCreated  = "created"
	ScopeAssigned = "assigned"
)

// ListFilters narrows the todo list query.
type ListFilters struct {
	Scope  string // ScopeAll, ScopeCreated, or ScopeAssigned
	Status string // optional exact status match
	Search string // optional case-insensitive substring over title/description
}

// OrderUpdate assigns a new display order to one todo.
type OrderUpdate struct {
	ID    uint `json:"id" binding:"required"`
	Order int  `json:"order"`
}

// Store is the persistence boundary for todos. Identity is always passed in
// explicitly; the store itself performs no authorization.
type Store interface {
	// List returns the todos visible to the user under the given filters,
	// with creator/assignee/file relations populated. Scope "all" is the
	// union of created and assigned: a user who is both sees the todo once.
	List(ctx context.Context, userID uint, f ListFilters) ([]models.Todo, error)

	// Get returns one todo with relations populated, or gorm.ErrRecordNotFound.
	Get(ctx context.Context, id uint) (*models.Todo, error)

	// GetBatch returns the todos for the given ids, without relations.
	// Missing ids are simply absent from the result.
	GetBatch(ctx context.Context, ids []uint) ([]models.Todo, error)

	// Create persists the todo and its attached file records in one
	// transaction.
	Create(ctx context.Context, todo *models.Todo, files []models.File) error

	// Update applies the given column patch to the todo.
	Update(ctx context.Context, id uint, fields map[string]interface{}) error

	// Reorder applies all order updates in a single transaction so
	// concurrent readers never observe a partially-reordered set.
	Reorder(ctx context.Context, updates []OrderUpdate) error

	// Delete removes the todo and its file records in one transaction and
	// returns the removed file records so the caller can clean up blobs.
	Delete(ctx context.Context, todo *models.Todo) ([]models.File, error)

	// FindUser resolves a user id, for assignee validation.
	FindUser(ctx context.Context, id uint) (*models.User, error)
}

// GormStore is the database-backed Store.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) List(ctx context.Context, userID uint, f ListFilters) ([]models.Todo, error) {
	q := s.DB.WithContext(ctx).Model(&models.Todo{}).
		Preload("CreatedBy").
		Preload("AssignedTo").
		Preload("Files")

	switch f.Scope {
	case ScopeCreated:
		q = q.Where("created_by_id = ?", userID)
	case ScopeAssigned:
		q = q.Where("assigned_to_id = ?", userID)
	default:
		q = q.Where("created_by_id = ? OR assigned_to_id = ?", userID, userID)
	}

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Search != "" {
		pattern := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var result []models.Todo
	// Ties on equal/unset order break by newest first.
	if err := q.Order("sort_order ASC, created_at DESC").Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (s *GormStore) Get(ctx context.Context, id uint) (*models.Todo, error) {
	var todo models.Todo
	err := s.DB.WithContext(ctx).
		Preload("CreatedBy").
		Preload("AssignedTo").
		Preload("Files").
		First(&todo, id).Error
	if err != nil {
		return nil, err
	}
	return &todo, nil
}

func (s *GormStore) GetBatch(ctx context.Context, ids []uint) ([]models.Todo, error) {
	var result []models.Todo
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (s *GormStore) Create(ctx context.Context, todo *models.Todo, files []models.File) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(todo).Error; err != nil {
			return err
		}
		for i := range files {
			files[i].TodoID = &todo.ID
		}
		if len(files) > 0 {
			if err := tx.Create(&files).Error; err != nil {
				return err
			}
			todo.Files = files
		}
		return nil
	})
}

func (s *GormStore) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	return s.DB.WithContext(ctx).Model(&models.Todo{}).Where("id = ?", id).Updates(fields).Error
}

func (s *GormStore) Reorder(ctx context.Context, updates []OrderUpdate) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			if err := tx.Model(&models.Todo{}).Where("id = ?", u.ID).
				Update("sort_order", u.Order).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) Delete(ctx context.Context, todo *models.Todo) ([]models.File, error) {
	var files []models.File
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("todo_id = ?", todo.ID).Find(&files).Error; err != nil {
			return err
		}
		if len(files) > 0 {
			if err := tx.Where("todo_id = ?", todo.ID).Delete(&models.File{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(todo).Error
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (s *GormStore) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
