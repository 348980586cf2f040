package todos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/access"
	"github.com/taskhub/taskhub/internal/apperr"
	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/files"
	"github.com/taskhub/taskhub/internal/models"
	"gorm.io/gorm"
)

// Handler provides the todo endpoints.
type Handler struct {
	store         Store
	storage       files.Storage
	logger        *slog.Logger
	maxUploadSize int64
	maxBatchSize  int
}

// NewHandler creates the todo Handler.
func NewHandler(store Store, storage files.Storage, logger *slog.Logger, maxUploadSize int64, maxBatchSize int) *Handler {
	return &Handler{
		store:         store,
		storage:       storage,
		logger:        logger,
		maxUploadSize: maxUploadSize,
		maxBatchSize:  maxBatchSize,
	}
}

type todoResponse struct {
	ID          uint                 `json:"id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Status      string               `json:"status"`
	DueDate     *time.Time           `json:"due_date,omitempty"`
	Order       int                  `json:"order"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	CreatedBy   models.UserSummary   `json:"created_by"`
	AssignedTo  models.UserSummary   `json:"assigned_to"`
	Files       []models.FileSummary `json:"files"`
}

func toResponse(t *models.Todo) todoResponse {
	fileSummaries := make([]models.FileSummary, 0, len(t.Files))
	for i := range t.Files {
		fileSummaries = append(fileSummaries, t.Files[i].Summary())
	}
	return todoResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		DueDate:     t.DueDate,
		Order:       t.Order,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		CreatedBy:   t.CreatedBy.Summary(),
		AssignedTo:  t.AssignedTo.Summary(),
		Files:       fileSummaries,
	}
}

// List returns the todos visible to the caller. Query parameters: scope
// (all|created|assigned, default all), status, search.
func (h *Handler) List(c *gin.Context) {
	user := auth.CurrentUser(c)

	f := ListFilters{
		Scope:  c.DefaultQuery("scope", ScopeAll),
		Status: c.Query("status"),
		Search: c.Query("search"),
	}
	switch f.Scope {
	case ScopeAll, ScopeCreated, ScopeAssigned:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be all, created, or assigned"})
		return
	}
	if f.Status != "" && !models.ValidTodoStatus(f.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}

	result, err := h.store.List(c.Request.Context(), user.ID, f)
	if err != nil {
		h.logger.Error("list todos failed", "user_id", user.ID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list todos failed"})
		return
	}

	out := make([]todoResponse, 0, len(result))
	for i := range result {
		out = append(out, toResponse(&result[i]))
	}
	c.JSON(http.StatusOK, gin.H{"todos": out})
}

// Get returns one todo. Not-found and forbidden are merged into a single 404
// so callers cannot probe for ids they lack access to.
func (h *Handler) Get(c *gin.Context) {
	todo := h.fetchAccessible(c)
	if todo == nil {
		return
	}
	c.JSON(http.StatusOK, toResponse(todo))
}

type createRequest struct {
	Title        string     `json:"title" form:"title" binding:"required"`
	Description  string     `json:"description" form:"description"`
	AssignedToID uint       `json:"assigned_to_id" form:"assigned_to_id" binding:"required"`
	DueDate      *time.Time `json:"due_date" form:"due_date" time_format:"2006-01-02T15:04:05Z07:00"`
}

// Create persists a new todo with the caller as creator. With a multipart
// body, up to maxBatchSize attachments under the "files" field are stored
// atomically with the todo: if any attachment fails validation or the insert
// fails, nothing is persisted.
func (h *Handler) Create(c *gin.Context) {
	user := auth.CurrentUser(c)

	var req createRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		apperr.Respond(c, apperr.Validation("title", "must not be empty"))
		return
	}

	if _, err := h.validAssignee(c.Request.Context(), req.AssignedToID); err != nil {
		apperr.Respond(c, err)
		return
	}

	var uploads []models.File
	if form, err := c.MultipartForm(); err == nil && form != nil {
		fhs := form.File["files"]
		if len(fhs) > 0 {
			if err := files.ValidateBatch(fhs, h.maxUploadSize, h.maxBatchSize); err != nil {
				apperr.Respond(c, err)
				return
			}
			uploads, err = files.SaveBatch(h.storage, fhs, user.ID)
			if err != nil {
				h.logger.Error("save attachments failed", "user_id", user.ID, "error", err.Error())
				apperr.Respond(c, err)
				return
			}
		}
	}

	todo := &models.Todo{
		Title:        title,
		Description:  req.Description,
		Status:       models.TodoStatusPending,
		DueDate:      req.DueDate,
		CreatedByID:  user.ID,
		AssignedToID: req.AssignedToID,
	}
	if err := h.store.Create(c.Request.Context(), todo, uploads); err != nil {
		// The metadata transaction rolled back; compensate the blob writes.
		files.RemoveBlobs(h.storage, h.logger, uploads)
		h.logger.Error("create todo failed", "user_id", user.ID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create todo failed"})
		return
	}

	created, err := h.store.Get(c.Request.Context(), todo.ID)
	if err != nil {
		h.logger.Error("reload created todo failed", "todo_id", todo.ID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create todo failed"})
		return
	}

	h.logger.Info("todo created", "todo_id", todo.ID, "user_id", user.ID, "files", len(uploads))
	c.JSON(http.StatusCreated, toResponse(created))
}

type updateRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Status       *string    `json:"status"`
	DueDate      *time.Time `json:"due_date"`
	Order        *int       `json:"order"`
	AssignedToID *uint      `json:"assigned_to_id"`
}

// Update applies an optional-field patch. Creator and assignee may both
// update; supplying assigned_to_id re-validates the target is ACTIVE.
func (h *Handler) Update(c *gin.Context) {
	todo := h.fetchAccessible(c)
	if todo == nil {
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			apperr.Respond(c, apperr.Validation("title", "must not be empty"))
			return
		}
		fields["title"] = title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Status != nil {
		if !models.ValidTodoStatus(*req.Status) {
			apperr.Respond(c, apperr.Validation("status", "must be PENDING, IN_PROGRESS, or COMPLETED"))
			return
		}
		fields["status"] = *req.Status
	}
	if req.DueDate != nil {
		fields["due_date"] = *req.DueDate
	}
	if req.Order != nil {
		fields["sort_order"] = *req.Order
	}
	if req.AssignedToID != nil {
		if _, err := h.validAssignee(c.Request.Context(), *req.AssignedToID); err != nil {
			apperr.Respond(c, err)
			return
		}
		fields["assigned_to_id"] = *req.AssignedToID
	}

	if len(fields) > 0 {
		if err := h.store.Update(c.Request.Context(), todo.ID, fields); err != nil {
			h.logger.Error("update todo failed", "todo_id", todo.ID, "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update todo failed"})
			return
		}
	}

	updated, err := h.store.Get(c.Request.Context(), todo.ID)
	if err != nil {
		h.logger.Error("reload updated todo failed", "todo_id", todo.ID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update todo failed"})
		return
	}
	c.JSON(http.StatusOK, toResponse(updated))
}

type reorderRequest struct {
	Updates []OrderUpdate `json:"updates" binding:"required,min=1,dive"`
}

// Reorder applies a batch of display-order updates. Every id must be
// accessible to the caller; if any is not, the whole batch is rejected and
// no row changes. The updates themselves run in one transaction.
func (h *Handler) Reorder(c *gin.Context) {
	user := auth.CurrentUser(c)

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ids := make([]uint, 0, len(req.Updates))
	for _, u := range req.Updates {
		ids = append(ids, u.ID)
	}

	batch, err := h.store.GetBatch(c.Request.Context(), ids)
	if err != nil {
		h.logger.Error("load reorder batch failed", "user_id", user.ID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reorder failed"})
		return
	}
	byID := make(map[uint]*models.Todo, len(batch))
	for i := range batch {
		byID[batch[i].ID] = &batch[i]
	}
	for _, u := range req.Updates {
		todo, ok := byID[u.ID]
		if !ok || !access.CanAccess(user, todo) {
			// All-or-nothing precondition: one inaccessible id fails the
			// whole batch before anything is written.
			apperr.Respond(c, apperr.ErrAccessDenied)
			return
		}
	}

	if err := h.store.Reorder(c.Request.Context(), req.Updates); err != nil {
		h.logger.Error("reorder failed", "user_id", user.ID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reorder failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": len(req.Updates)})
}

// Delete removes a todo. Creator-only: an assignee gets 403, anyone else
// gets the merged 404. Attachment rows go in the same transaction; blob
// removal failures are logged, never fatal.
func (h *Handler) Delete(c *gin.Context) {
	user := auth.CurrentUser(c)

	todo, err := h.fetch(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if !access.CanAccess(user, todo) {
		apperr.Respond(c, apperr.ErrNotFoundOrForbidden)
		return
	}
	if !access.CanDelete(user, todo) {
		apperr.Respond(c, apperr.ErrAccessDenied)
		return
	}

	removed, err := h.store.Delete(c.Request.Context(), todo)
	if err != nil {
		h.logger.Error("delete todo failed", "todo_id", todo.ID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete todo failed"})
		return
	}
	files.RemoveBlobs(h.storage, h.logger, removed)

	h.logger.Info("todo deleted", "todo_id", todo.ID, "user_id", user.ID, "files", len(removed))
	c.Status(http.StatusNoContent)
}

// fetch loads the todo from the :id parameter, mapping bad ids and missing
// rows to the merged not-found error.
func (h *Handler) fetch(c *gin.Context) (*models.Todo, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return nil, apperr.ErrNotFoundOrForbidden
	}
	todo, err := h.store.Get(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFoundOrForbidden
		}
		return nil, err
	}
	return todo, nil
}

// fetchAccessible loads the todo and enforces CanAccess, responding with the
// merged 404 otherwise. Returns nil once a response has been written.
func (h *Handler) fetchAccessible(c *gin.Context) *models.Todo {
	user := auth.CurrentUser(c)
	todo, err := h.fetch(c)
	if err != nil {
		apperr.Respond(c, err)
		return nil
	}
	if !access.CanAccess(user, todo) {
		apperr.Respond(c, apperr.ErrNotFoundOrForbidden)
		return nil
	}
	return todo
}

// validAssignee resolves the assignment target and requires it to be ACTIVE
// at this moment. A target disabled later does not retroactively invalidate
// the todo.
func (h *Handler) validAssignee(ctx context.Context, id uint) (*models.User, error) {
	target, err := h.store.FindUser(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrInvalidAssignee
		}
		return nil, fmt.Errorf("resolve assignee: %w", err)
	}
	if !target.IsActive() {
		return nil, apperr.ErrInvalidAssignee
	}
	return target, nil
}

