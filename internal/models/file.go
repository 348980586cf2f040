package models

import (
	"gorm.io/gorm"
)

// File represents metadata for an uploaded attachment. The bytes live in the
// blob store under StoredName, a generated collision-resistant name. The
// user-supplied name is kept only for display, never used as a path.
//
// TodoID is nil for files that are not attachments (user avatars).
type File struct {
	gorm.Model
	StoredName   string `gorm:"uniqueIndex;not null"`
	OriginalName string `gorm:"not null"`
	StoragePath  string `gorm:"not null"`
	Size         int64  `gorm:"not null"`
	ContentType  string `gorm:"not null"`

	TodoID *uint `gorm:"index"`
	Todo   *Todo

	UploadedByID uint `gorm:"not null;index"`
}

// FileSummary is the attachment shape embedded in todo responses.
type FileSummary struct {
	ID           uint   `json:"id"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type"`
}

// Summary returns the embeddable view of the file.
func (f *File) Summary() FileSummary {
	return FileSummary{
		ID:           f.ID,
		OriginalName: f.OriginalName,
		Size:         f.Size,
		ContentType:  f.ContentType,
	}
}
