package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/database"
	"github.com/taskhub/taskhub/internal/files"
	"github.com/taskhub/taskhub/internal/logging"
	"github.com/taskhub/taskhub/internal/server"
)

func main() {
	cfg := config.Load()
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := database.Init(cfg.DatabaseURL, cfg.Env == "development")
	if err != nil {
		logger.Error("database init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		logger.Error("migrations failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.SeedDevData {
		if err := database.SeedDevData(db); err != nil {
			logger.Error("dev seed failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Revocation stays nil without Redis; logout then degrades to a no-op
	// and tokens remain valid until expiry.
	var revoked *auth.RevocationList
	if cfg.RedisURL != "" {
		revoked, err = auth.NewRevocationList(cfg.RedisURL)
		if err != nil {
			logger.Error("redis init failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer revoked.Close()
	}

	storage, err := files.NewDiskStorage(cfg.UploadDir)
	if err != nil {
		logger.Error("storage init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	router := server.New(server.Deps{
		DB:      db,
		Config:  cfg,
		Logger:  logger,
		Issuer:  auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Revoked: revoked,
		Storage: storage,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", slog.String("addr", httpServer.Addr), slog.String("env", cfg.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", slog.String("error", err.Error()))
	}
}
