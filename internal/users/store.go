package users

import (
	"context"
	"time"

	"github.com/taskhub/taskhub/internal/models"
	"gorm.io/gorm"
)

// AccountRow is the admin listing shape: the account plus its todo workload.
type AccountRow struct {
	User          models.User
	CreatedCount  int64
	AssignedCount int64
}

// Store is the persistence boundary for account management.
type Store interface {
	Find(ctx context.Context, id uint) (*models.User, error)

	// UpdateProfile patches only the given columns.
	UpdateProfile(ctx context.Context, id uint, fields map[string]interface{}) error

	UpdatePassword(ctx context.Context, id uint, passwordHash string) error

	// SetAvatar persists the new avatar record and points the user at it in
	// one transaction. The previous avatar record, if any, is deleted and
	// returned so the caller can remove its blob.
	SetAvatar(ctx context.Context, userID uint, rec *models.File) (*models.File, error)

	List(ctx context.Context) ([]AccountRow, error)

	UpdateStatus(ctx context.Context, id uint, status string) error

	// DeleteCascade removes the user together with every todo they created
	// or were assigned, plus those todos' attachments and the user's avatar.
	// Returns the attachment records so the caller can remove the blobs.
	DeleteCascade(ctx context.Context, user *models.User) ([]models.File, error)
}

// GormStore is the database-backed Store.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Find(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *GormStore) UpdateProfile(ctx context.Context, id uint, fields map[string]interface{}) error {
	return s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields).Error
}

func (s *GormStore) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	return s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("password_hash", passwordHash).Error
}

func (s *GormStore) SetAvatar(ctx context.Context, userID uint, rec *models.File) (*models.File, error) {
	var old *models.File
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}
		if user.AvatarFileID != nil {
			var prev models.File
			if err := tx.First(&prev, *user.AvatarFileID).Error; err == nil {
				old = &prev
			}
		}
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).
			Update("avatar_file_id", rec.ID).Error; err != nil {
			return err
		}
		if old != nil {
			if err := tx.Delete(&models.File{}, old.ID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return old, nil
}

func (s *GormStore) List(ctx context.Context) ([]AccountRow, error) {
	var accounts []models.User
	if err := s.DB.WithContext(ctx).Order("created_at ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}

	// Two grouped counts instead of a pair of queries per account, so the
	// listing stays at three round-trips however many users exist.
	created, err := s.countTodosBy(ctx, "created_by_id")
	if err != nil {
		return nil, err
	}
	assigned, err := s.countTodosBy(ctx, "assigned_to_id")
	if err != nil {
		return nil, err
	}

	rows := make([]AccountRow, 0, len(accounts))
	for _, u := range accounts {
		rows = append(rows, AccountRow{
			User:          u,
			CreatedCount:  created[u.ID],
			AssignedCount: assigned[u.ID],
		})
	}
	return rows, nil
}

func (s *GormStore) countTodosBy(ctx context.Context, column string) (map[uint]int64, error) {
	var rows []struct {
		OwnerID uint
		N       int64
	}
	err := s.DB.WithContext(ctx).Model(&models.Todo{}).
		Select(column + " AS owner_id, COUNT(*) AS n").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.OwnerID] = r.N
	}
	return counts, nil
}

func (s *GormStore) UpdateStatus(ctx context.Context, id uint, status string) error {
	return s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("status", status).Error
}

func (s *GormStore) DeleteCascade(ctx context.Context, user *models.User) ([]models.File, error) {
	var orphaned []models.File
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var todos []models.Todo
		err := tx.Where("created_by_id = ? OR assigned_to_id = ?", user.ID, user.ID).
			Find(&todos).Error
		if err != nil {
			return err
		}

		if len(todos) > 0 {
			ids := make([]uint, 0, len(todos))
			for _, td := range todos {
				ids = append(ids, td.ID)
			}
			if err := tx.Where("todo_id IN ?", ids).Find(&orphaned).Error; err != nil {
				return err
			}
			if err := tx.Where("todo_id IN ?", ids).Delete(&models.File{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Todo{}, ids).Error; err != nil {
				return err
			}
		}

		if user.AvatarFileID != nil {
			var avatar models.File
			if err := tx.First(&avatar, *user.AvatarFileID).Error; err == nil {
				orphaned = append(orphaned, avatar)
				if err := tx.Delete(&models.File{}, avatar.ID).Error; err != nil {
					return err
				}
			}
		}

		return tx.Delete(&models.User{}, user.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return orphaned, nil
}

// touchedAt normalizes the optional last-login timestamp for responses.
func touchedAt(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
