// Package server assembles the HTTP surface: middleware, route groups, and
// the handler wiring.
package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/files"
	"github.com/taskhub/taskhub/internal/health"
	"github.com/taskhub/taskhub/internal/todos"
	"github.com/taskhub/taskhub/internal/users"
	"gorm.io/gorm"
)

// Deps carries the shared collaborators the route handlers are built from.
type Deps struct {
	DB      *gorm.DB
	Config  *config.Config
	Logger  *slog.Logger
	Issuer  *auth.TokenIssuer
	Revoked *auth.RevocationList
	Storage files.Storage
}

// New builds the gin engine with every route registered.
func New(d Deps) *gin.Engine {
	if d.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(d.Logger))

	authHandler := auth.NewHandler(d.DB, d.Issuer, d.Revoked, d.Logger)
	todoHandler := todos.NewHandler(
		todos.NewGormStore(d.DB), d.Storage, d.Logger,
		d.Config.MaxUploadSize, d.Config.MaxBatchSize,
	)
	fileHandler := files.NewHandler(
		files.NewGormStore(d.DB), d.Storage, d.Logger,
		d.Config.MaxUploadSize, d.Config.MaxBatchSize,
	)
	userHandler := users.NewHandler(
		users.NewGormStore(d.DB), d.Storage, d.Logger, d.Config.MaxUploadSize,
	)

	r.GET("/health", gin.WrapF(health.Handler))

	public := r.Group("/auth")
	{
		public.POST("/register", authHandler.Register)
		public.POST("/login", authHandler.Login)
	}

	requireAuth := auth.RequireAuth(d.Issuer, auth.GormUserLoader{DB: d.DB}, d.Revoked, d.Logger)

	r.POST("/auth/logout", requireAuth, authHandler.Logout)

	api := r.Group("/api", requireAuth)
	{
		api.GET("/me", userHandler.Me)
		api.PUT("/me", userHandler.UpdateMe)
		api.PUT("/me/password", userHandler.ChangePassword)
		api.POST("/me/avatar", userHandler.UploadAvatar)

		api.GET("/todos", todoHandler.List)
		api.POST("/todos", todoHandler.Create)
		api.PUT("/todos/reorder", todoHandler.Reorder)
		api.GET("/todos/:id", todoHandler.Get)
		api.PUT("/todos/:id", todoHandler.Update)
		api.DELETE("/todos/:id", todoHandler.Delete)

		api.POST("/todos/:id/files", fileHandler.Upload)
		api.GET("/todos/:id/files", fileHandler.ListForTodo)
		api.GET("/files", fileHandler.ListForUser)
		api.GET("/files/:id/download", fileHandler.Download)
		api.DELETE("/files/:id", fileHandler.Delete)

		admin := api.Group("/admin", auth.RequireAdmin())
		{
			admin.GET("/users", userHandler.ListAccounts)
			admin.PUT("/users/:id/status", userHandler.UpdateAccountStatus)
			admin.DELETE("/users/:id", userHandler.DeleteAccount)
		}
	}

	return r
}
