package files

import (
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/taskhub/taskhub/internal/apperr"
	"github.com/taskhub/taskhub/internal/models"
)

// allowedExtensions is the upload allow-list. Anything else is rejected
// batch-wide with ErrUnsupportedFileType.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".csv":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".zip":  true,
}

// imageExtensions is the stricter allow-list for avatar uploads.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// StoredName generates the collision-resistant on-storage name for an
// upload. Only the (lowercased) extension of the user-supplied name
// survives; the rest is a fresh UUID, so uploads can never collide or
// traverse paths.
func StoredName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	return uuid.New().String() + ext
}

// contentType resolves the media type to record for an upload, preferring
// the declared header and falling back to the extension.
func contentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// validateHeader checks one upload against the size cap and allow-list.
func validateHeader(fh *multipart.FileHeader, maxSize int64, allowed map[string]bool) error {
	if fh.Size > maxSize {
		return fmt.Errorf("%q exceeds the %d byte limit: %w", fh.Filename, maxSize, apperr.ErrFileTooLarge)
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(fh.Filename)))
	if !allowed[ext] {
		return fmt.Errorf("%q: %w", fh.Filename, apperr.ErrUnsupportedFileType)
	}
	return nil
}

// ValidateBatch checks every upload in the batch before any blob is written.
// If any member fails, the whole batch is rejected.
func ValidateBatch(fhs []*multipart.FileHeader, maxSize int64, maxBatch int) error {
	if len(fhs) > maxBatch {
		return apperr.Validation("files", fmt.Sprintf("at most %d files per upload", maxBatch))
	}
	for _, fh := range fhs {
		if err := validateHeader(fh, maxSize, allowedExtensions); err != nil {
			return err
		}
	}
	return nil
}

// ValidateImage checks a single avatar upload.
func ValidateImage(fh *multipart.FileHeader, maxSize int64) error {
	return validateHeader(fh, maxSize, imageExtensions)
}

// SaveBatch writes the already-validated uploads to storage and returns
// their metadata records (without a parent todo set). If any write fails,
// blobs written so far are removed so the batch stays all-or-nothing.
func SaveBatch(storage Storage, fhs []*multipart.FileHeader, uploadedByID uint) ([]models.File, error) {
	saved := make([]models.File, 0, len(fhs))
	for _, fh := range fhs {
		rec, err := saveOne(storage, fh, uploadedByID)
		if err != nil {
			for _, s := range saved {
				_ = storage.Remove(s.StoredName)
			}
			return nil, err
		}
		saved = append(saved, *rec)
	}
	return saved, nil
}

func saveOne(storage Storage, fh *multipart.FileHeader, uploadedByID uint) (*models.File, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %q: %w", fh.Filename, err)
	}
	defer src.Close()

	name := StoredName(fh.Filename)
	path, size, err := storage.Save(name, src)
	if err != nil {
		return nil, err
	}

	return &models.File{
		StoredName:   name,
		OriginalName: filepath.Base(fh.Filename),
		StoragePath:  path,
		Size:         size,
		ContentType:  contentType(fh),
		UploadedByID: uploadedByID,
	}, nil
}

// RemoveBlobs removes storage objects best-effort. Failures are logged, not
// returned: a dangling blob must never block a user-facing delete.
func RemoveBlobs(storage Storage, logger *slog.Logger, recs []models.File) {
	for _, rec := range recs {
		if err := storage.Remove(rec.StoredName); err != nil {
			logger.Warn("failed to remove storage object",
				"stored_name", rec.StoredName,
				"file_id", rec.ID,
				"error", err.Error(),
			)
		}
	}
}
