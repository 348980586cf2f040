package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/models"
	"gorm.io/gorm"
)

// Context keys set by RequireAuth for downstream handlers.
const (
	ctxUserKey   = "current_user"
	ctxClaimsKey = "token_claims"
)

// UserLoader resolves a caller identity to its current database row. The
// middleware re-fetches on every request so access checks never act on a
// stale role or status.
type UserLoader interface {
	FindUser(ctx context.Context, id uint) (*models.User, error)
}

// GormUserLoader is the database-backed UserLoader.
type GormUserLoader struct {
	DB *gorm.DB
}

func (l GormUserLoader) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := l.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// RequireAuth is a middleware that validates the bearer token and resolves
// the caller's user record. The caller's own status is deliberately not
// checked here: a later-disabled account keeps access to its own todos, and
// only assignment targets are status-validated.
func RequireAuth(issuer *TokenIssuer, users UserLoader, revoked *RevocationList, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		claims, err := issuer.Parse(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		isRevoked, err := revoked.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			logger.Warn("revocation check failed", "error", err.Error())
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "authorization unavailable"})
			return
		}
		if isRevoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
			return
		}

		user, err := users.FindUser(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
				return
			}
			logger.Error("user lookup failed", "user_id", userID, "error", err.Error())
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
			return
		}

		c.Set(ctxUserKey, user)
		c.Set(ctxClaimsKey, claims)
		c.Next()
	}
}

// RequireAdmin gates the user-management endpoints. It must run after
// RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the caller resolved by RequireAuth, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// CurrentClaims returns the token claims stored by RequireAuth, or nil.
func CurrentClaims(c *gin.Context) *Claims {
	v, ok := c.Get(ctxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}

// SetCurrentUser injects a caller identity directly, bypassing token
// validation. Test helper.
func SetCurrentUser(c *gin.Context, user *models.User) {
	c.Set(ctxUserKey, user)
}
