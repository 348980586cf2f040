package users

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/apperr"
	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/files"
	"github.com/taskhub/taskhub/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Handler serves the profile endpoints and the admin account management
// endpoints.
type Handler struct {
	store         Store
	storage       files.Storage
	logger        *slog.Logger
	maxUploadSize int64
}

func NewHandler(store Store, storage files.Storage, logger *slog.Logger, maxUploadSize int64) *Handler {
	return &Handler{store: store, storage: storage, logger: logger, maxUploadSize: maxUploadSize}
}

type profileResponse struct {
	ID           uint            `json:"id"`
	Email        string          `json:"email"`
	Name         string          `json:"name"`
	Role         string          `json:"role"`
	Status       string          `json:"status"`
	AvatarFileID *uint           `json:"avatar_file_id,omitempty"`
	Settings     json.RawMessage `json:"settings,omitempty"`
	LastLoginAt  *time.Time      `json:"last_login_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func toProfile(u *models.User) profileResponse {
	return profileResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		Status:       u.Status,
		AvatarFileID: u.AvatarFileID,
		Settings:     json.RawMessage(u.Settings),
		LastLoginAt:  touchedAt(u.LastLoginAt),
		CreatedAt:    u.CreatedAt,
	}
}

// Me handles GET /api/me.
func (h *Handler) Me(c *gin.Context) {
	user := auth.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{"user": toProfile(user)})
}

type updateMeRequest struct {
	Name     *string         `json:"name"`
	Settings json.RawMessage `json:"settings"`
}

// UpdateMe handles PUT /api/me. Only the fields present in the request are
// patched.
func (h *Handler) UpdateMe(c *gin.Context) {
	user := auth.CurrentUser(c)

	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("body", err.Error()))
		return
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			apperr.Respond(c, apperr.Validation("name", "must not be blank"))
			return
		}
		fields["name"] = name
	}
	if len(req.Settings) > 0 {
		if !json.Valid(req.Settings) {
			apperr.Respond(c, apperr.Validation("settings", "must be valid JSON"))
			return
		}
		fields["settings"] = []byte(req.Settings)
	}
	if len(fields) == 0 {
		c.JSON(http.StatusOK, gin.H{"user": toProfile(user)})
		return
	}

	if err := h.store.UpdateProfile(c.Request.Context(), user.ID, fields); err != nil {
		apperr.Respond(c, err)
		return
	}
	updated, err := h.store.Find(c.Request.Context(), user.ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toProfile(updated)})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// ChangePassword handles PUT /api/me/password.
func (h *Handler) ChangePassword(c *gin.Context) {
	user := auth.CurrentUser(c)

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("body", err.Error()))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		apperr.Respond(c, apperr.Validation("current_password", "does not match"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if err := h.store.UpdatePassword(c.Request.Context(), user.ID, string(hash)); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// UploadAvatar handles POST /api/me/avatar. A new avatar replaces the
// previous one; the old blob is removed best-effort after the swap commits.
func (h *Handler) UploadAvatar(c *gin.Context) {
	user := auth.CurrentUser(c)

	fh, err := c.FormFile("avatar")
	if err != nil {
		apperr.Respond(c, apperr.Validation("avatar", "an image file is required"))
		return
	}
	if err := files.ValidateImage(fh, h.maxUploadSize); err != nil {
		apperr.Respond(c, err)
		return
	}

	recs, err := files.SaveBatch(h.storage, []*multipart.FileHeader{fh}, user.ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	rec := recs[0]

	old, err := h.store.SetAvatar(c.Request.Context(), user.ID, &rec)
	if err != nil {
		files.RemoveBlobs(h.storage, h.logger, recs)
		apperr.Respond(c, err)
		return
	}
	if old != nil {
		files.RemoveBlobs(h.storage, h.logger, []models.File{*old})
	}

	c.JSON(http.StatusOK, gin.H{"avatar_file_id": rec.ID})
}

// ListAccounts handles GET /api/admin/users.
func (h *Handler) ListAccounts(c *gin.Context) {
	rows, err := h.store.List(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	type accountResponse struct {
		profileResponse
		CreatedTodos  int64 `json:"created_todos"`
		AssignedTodos int64 `json:"assigned_todos"`
	}
	out := make([]accountResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, accountResponse{
			profileResponse: toProfile(&row.User),
			CreatedTodos:    row.CreatedCount,
			AssignedTodos:   row.AssignedCount,
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateAccountStatus handles PUT /api/admin/users/:id/status.
func (h *Handler) UpdateAccountStatus(c *gin.Context) {
	target, err := h.fetchTarget(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("status", "is required"))
		return
	}
	if req.Status != models.StatusActive && req.Status != models.StatusDisabled {
		apperr.Respond(c, apperr.Validation("status", "must be ACTIVE or DISABLED"))
		return
	}

	if err := h.store.UpdateStatus(c.Request.Context(), target.ID, req.Status); err != nil {
		apperr.Respond(c, err)
		return
	}
	updated, err := h.store.Find(c.Request.Context(), target.ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toProfile(updated)})
}

// DeleteAccount handles DELETE /api/admin/users/:id. The cascade removes the
// user's todos (created or assigned), their attachments, and the avatar.
func (h *Handler) DeleteAccount(c *gin.Context) {
	caller := auth.CurrentUser(c)
	target, err := h.fetchTarget(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if target.ID == caller.ID {
		apperr.Respond(c, apperr.Validation("id", "cannot delete your own account"))
		return
	}

	orphaned, err := h.store.DeleteCascade(c.Request.Context(), target)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	files.RemoveBlobs(h.storage, h.logger, orphaned)

	h.logger.Info("account deleted",
		"target_id", target.ID,
		"admin_id", caller.ID,
		"attachments_removed", len(orphaned),
	)
	c.Status(http.StatusNoContent)
}

func (h *Handler) fetchTarget(c *gin.Context) (*models.User, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, apperr.ErrNotFoundOrForbidden
	}
	user, err := h.store.Find(c.Request.Context(), uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
