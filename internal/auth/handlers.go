package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Handler provides the registration and login endpoints.
type Handler struct {
	db      *gorm.DB
	issuer  *TokenIssuer
	revoked *RevocationList
	logger  *slog.Logger
}

// NewHandler creates the auth Handler. revoked may be nil when Redis is not
// configured; logout then degrades to a client-side token discard.
func NewHandler(db *gorm.DB, issuer *TokenIssuer, revoked *RevocationList, logger *slog.Logger) *Handler {
	return &Handler{db: db, issuer: issuer, revoked: revoked, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token string             `json:"token"`
	User  models.UserSummary `json:"user"`
}

// Register creates a new user account.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	user := models.User{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		Status:       models.StatusActive,
	}
	// The partial unique index on email is the only duplicate check: a
	// pre-insert lookup would race with a concurrent registration.
	if err := h.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
			return
		}
		h.logger.Error("create user failed", "email", email, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	h.logger.Info("user registered", "email", email, "user_id", user.ID)
	c.JSON(http.StatusCreated, gin.H{"user": user.Summary()})
}

// Login verifies credentials and returns a bearer token. A disabled account
// may still log in: disabling only removes the account as a valid assignment
// target, it does not lock the user out of their own todos.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	var user models.User
	if err := h.db.Where("email = ?", email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.issuer.Issue(&user)
	if err != nil {
		h.logger.Error("sign token failed", "email", email, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	now := time.Now()
	if err := h.db.Model(&user).Update("last_login_at", now).Error; err != nil {
		h.logger.Warn("update last login failed", "email", email, "error", err.Error())
	}

	h.logger.Info("user logged in", "email", email, "role", user.Role)
	c.JSON(http.StatusOK, tokenResponse{Token: token, User: user.Summary()})
}

// Logout revokes the caller's token when a revocation list is configured.
// Without one the endpoint still succeeds and the client discards the token.
func (h *Handler) Logout(c *gin.Context) {
	claims := CurrentClaims(c)
	if claims != nil && claims.ExpiresAt != nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if err := h.revoked.Revoke(c.Request.Context(), claims.ID, ttl); err != nil {
			h.logger.Warn("token revocation failed", "error", err.Error())
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
