package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/taskhub/taskhub/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openAuthDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func registerRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(db, NewTokenIssuer("test-secret", time.Hour), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	return r
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	db := openAuthDB(t)
	r := registerRouter(t, db)

	payload := map[string]string{
		"email":    "dup@example.com",
		"name":     "First",
		"password": "password-one",
	}
	if w := postJSON(r, "/auth/register", payload); w.Code != http.StatusCreated {
		t.Fatalf("first registration: expected 201, got %d (%s)", w.Code, w.Body.String())
	}

	// The unique index, not a pre-insert lookup, rejects the duplicate, so
	// a concurrent loser gets the same 409 instead of a 500.
	payload["name"] = "Second"
	w := postJSON(r, "/auth/register", payload)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate registration: expected 409, got %d (%s)", w.Code, w.Body.String())
	}

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 1 {
		t.Errorf("expected a single user row, got %d", count)
	}
}

func TestRegister_EmailNormalizedBeforeInsert(t *testing.T) {
	db := openAuthDB(t)
	r := registerRouter(t, db)

	if w := postJSON(r, "/auth/register", map[string]string{
		"email": "Case@Example.com", "name": "A", "password": "password-one",
	}); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	w := postJSON(r, "/auth/register", map[string]string{
		"email": "case@example.com", "name": "B", "password": "password-two",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a case-variant duplicate, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestLogin_DisabledAccountStillLogsIn(t *testing.T) {
	db := openAuthDB(t)
	r := registerRouter(t, db)

	if w := postJSON(r, "/auth/register", map[string]string{
		"email": "disabled@example.com", "name": "D", "password": "password-one",
	}); w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", w.Code)
	}
	err := db.Model(&models.User{}).
		Where("email = ?", "disabled@example.com").
		Update("status", models.StatusDisabled).Error
	if err != nil {
		t.Fatalf("disable account: %v", err)
	}

	// Disabling removes the account as an assignment target only; the
	// owner keeps access to their own todos.
	w := postJSON(r, "/auth/login", map[string]string{
		"email": "disabled@example.com", "password": "password-one",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Errorf("expected a token in the response, got %q (%v)", w.Body.String(), err)
	}
}

func TestLogin_WrongPasswordUnauthorized(t *testing.T) {
	db := openAuthDB(t)
	r := registerRouter(t, db)

	if w := postJSON(r, "/auth/register", map[string]string{
		"email": "user@example.com", "name": "U", "password": "password-one",
	}); w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", w.Code)
	}

	w := postJSON(r, "/auth/login", map[string]string{
		"email": "user@example.com", "password": "not-the-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
