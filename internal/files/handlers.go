package files

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/access"
	"github.com/taskhub/taskhub/internal/apperr"
	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/models"
	"gorm.io/gorm"
)

// Handler serves attachment upload, listing, download and deletion.
type Handler struct {
	store         Store
	storage       Storage
	logger        *slog.Logger
	maxUploadSize int64
	maxBatchSize  int
}

func NewHandler(store Store, storage Storage, logger *slog.Logger, maxUploadSize int64, maxBatchSize int) *Handler {
	return &Handler{
		store:         store,
		storage:       storage,
		logger:        logger,
		maxUploadSize: maxUploadSize,
		maxBatchSize:  maxBatchSize,
	}
}

// Upload handles POST /api/todos/:id/files. The batch is all-or-nothing:
// validation covers every member before any blob is written, and a metadata
// failure removes the blobs written in this request.
func (h *Handler) Upload(c *gin.Context) {
	user := auth.CurrentUser(c)
	todo, err := h.fetchTodo(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if !access.CanAccess(user, todo) {
		apperr.Respond(c, apperr.ErrNotFoundOrForbidden)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		apperr.Respond(c, apperr.Validation("files", "multipart form required"))
		return
	}
	fhs := form.File["files"]
	if len(fhs) == 0 {
		apperr.Respond(c, apperr.Validation("files", "at least one file is required"))
		return
	}

	if err := ValidateBatch(fhs, h.maxUploadSize, h.maxBatchSize); err != nil {
		apperr.Respond(c, err)
		return
	}

	recs, err := SaveBatch(h.storage, fhs, user.ID)
	if err != nil {
		h.logger.Error("attachment upload failed", "todo_id", todo.ID, "error", err.Error())
		apperr.Respond(c, err)
		return
	}
	for i := range recs {
		id := todo.ID
		recs[i].TodoID = &id
	}

	if err := h.store.CreateBatch(c.Request.Context(), recs); err != nil {
		RemoveBlobs(h.storage, h.logger, recs)
		h.logger.Error("attachment metadata write failed", "todo_id", todo.ID, "error", err.Error())
		apperr.Respond(c, err)
		return
	}

	summaries := make([]models.FileSummary, 0, len(recs))
	for _, rec := range recs {
		summaries = append(summaries, rec.Summary())
	}
	c.JSON(http.StatusCreated, gin.H{"files": summaries})
}

// ListForTodo handles GET /api/todos/:id/files.
func (h *Handler) ListForTodo(c *gin.Context) {
	user := auth.CurrentUser(c)
	todo, err := h.fetchTodo(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if !access.CanAccess(user, todo) {
		apperr.Respond(c, apperr.ErrNotFoundOrForbidden)
		return
	}

	recs, err := h.store.ListForTodo(c.Request.Context(), todo.ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	summaries := make([]models.FileSummary, 0, len(recs))
	for _, rec := range recs {
		summaries = append(summaries, rec.Summary())
	}
	c.JSON(http.StatusOK, gin.H{"files": summaries})
}

// ListForUser handles GET /api/files: every attachment on a todo the caller
// can access, most recent first.
func (h *Handler) ListForUser(c *gin.Context) {
	user := auth.CurrentUser(c)
	recs, err := h.store.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	summaries := make([]models.FileSummary, 0, len(recs))
	for _, rec := range recs {
		summaries = append(summaries, rec.Summary())
	}
	c.JSON(http.StatusOK, gin.H{"files": summaries})
}

// Download handles GET /api/files/:id/download. A metadata record whose blob
// is gone is reported to the caller as a plain not-found; the divergence is
// logged so an operator can reconcile.
func (h *Handler) Download(c *gin.Context) {
	user := auth.CurrentUser(c)
	file, err := h.fetchAccessible(c, user)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	ok, err := h.storage.Exists(file.StoredName)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if !ok {
		h.logger.Error("storage object missing for metadata record",
			"file_id", file.ID,
			"stored_name", file.StoredName,
		)
		apperr.Respond(c, apperr.ErrStorageInconsistency)
		return
	}

	src, err := h.storage.Open(file.StoredName)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	defer src.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.OriginalName))
	c.DataFromReader(http.StatusOK, file.Size, file.ContentType, src, nil)
}

// Delete handles DELETE /api/files/:id. Any user with access to the parent
// todo may delete an attachment. A blob removal failure is logged but does
// not block removing the metadata record.
func (h *Handler) Delete(c *gin.Context) {
	user := auth.CurrentUser(c)
	file, err := h.fetchAccessible(c, user)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	if err := h.storage.Remove(file.StoredName); err != nil {
		h.logger.Warn("failed to remove storage object",
			"file_id", file.ID,
			"stored_name", file.StoredName,
			"error", err.Error(),
		)
	}
	if err := h.store.Delete(c.Request.Context(), file.ID); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) fetchTodo(c *gin.Context) (*models.Todo, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, apperr.ErrNotFoundOrForbidden
	}
	todo, err := h.store.GetTodo(c.Request.Context(), uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, err
	}
	return todo, nil
}

func (h *Handler) fetchAccessible(c *gin.Context, user *models.User) (*models.File, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, apperr.ErrNotFoundOrForbidden
	}
	file, err := h.store.Get(c.Request.Context(), uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, err
	}
	if !access.CanAccessFile(user, file) {
		return nil, apperr.ErrNotFoundOrForbidden
	}
	return file, nil
}
