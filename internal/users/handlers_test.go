package users

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/files"
	"github.com/taskhub/taskhub/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type mockStore struct {
	findFunc          func(ctx context.Context, id uint) (*models.User, error)
	updateProfileFunc func(ctx context.Context, id uint, fields map[string]interface{}) error
	setAvatarFunc     func(ctx context.Context, userID uint, rec *models.File) (*models.File, error)
	listFunc          func(ctx context.Context) ([]AccountRow, error)
	updateStatusFunc  func(ctx context.Context, id uint, status string) error
	deleteCascadeFunc func(ctx context.Context, user *models.User) ([]models.File, error)

	passwordCalls     int
	lastPasswordHash  string
	cascadeCalls      int
	lastProfileFields map[string]interface{}
}

func (m *mockStore) Find(ctx context.Context, id uint) (*models.User, error) {
	return m.findFunc(ctx, id)
}

func (m *mockStore) UpdateProfile(ctx context.Context, id uint, fields map[string]interface{}) error {
	m.lastProfileFields = fields
	return m.updateProfileFunc(ctx, id, fields)
}

func (m *mockStore) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	m.passwordCalls++
	m.lastPasswordHash = passwordHash
	return nil
}

func (m *mockStore) SetAvatar(ctx context.Context, userID uint, rec *models.File) (*models.File, error) {
	return m.setAvatarFunc(ctx, userID, rec)
}

func (m *mockStore) List(ctx context.Context) ([]AccountRow, error) {
	return m.listFunc(ctx)
}

func (m *mockStore) UpdateStatus(ctx context.Context, id uint, status string) error {
	return m.updateStatusFunc(ctx, id, status)
}

func (m *mockStore) DeleteCascade(ctx context.Context, user *models.User) ([]models.File, error) {
	m.cascadeCalls++
	return m.deleteCascadeFunc(ctx, user)
}

func testUser(id uint, role string) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte("original-pass"), bcrypt.MinCost)
	return &models.User{
		Model:        gorm.Model{ID: id},
		Email:        "user@example.com",
		Name:         "Test User",
		PasswordHash: string(hash),
		Role:         role,
		Status:       models.StatusActive,
	}
}

func newTestHandler(t *testing.T, store Store) (*Handler, *files.DiskStorage) {
	t.Helper()
	storage, err := files.NewDiskStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStorage: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(store, storage, logger, 10<<20), storage
}

func routerAs(user *models.User, method, path string, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Handle(method, path, func(c *gin.Context) {
		auth.SetCurrentUser(c, user)
		handler(c)
	})
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChangePassword_WrongCurrentRejected(t *testing.T) {
	caller := testUser(1, models.RoleUser)
	store := &mockStore{}
	h, _ := newTestHandler(t, store)
	r := routerAs(caller, http.MethodPut, "/me/password", h.ChangePassword)

	w := doJSON(r, http.MethodPut, "/me/password", map[string]string{
		"current_password": "not-the-password",
		"new_password":     "a new password",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", w.Code, w.Body.String())
	}
	if store.passwordCalls != 0 {
		t.Error("password must not change when the current password is wrong")
	}
}

func TestChangePassword_Success(t *testing.T) {
	caller := testUser(1, models.RoleUser)
	store := &mockStore{}
	h, _ := newTestHandler(t, store)
	r := routerAs(caller, http.MethodPut, "/me/password", h.ChangePassword)

	w := doJSON(r, http.MethodPut, "/me/password", map[string]string{
		"current_password": "original-pass",
		"new_password":     "a new password",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if store.passwordCalls != 1 {
		t.Fatalf("expected one password update, got %d", store.passwordCalls)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(store.lastPasswordHash), []byte("a new password")); err != nil {
		t.Error("stored hash does not verify against the new password")
	}
}

func TestChangePassword_ShortNewPasswordRejected(t *testing.T) {
	caller := testUser(1, models.RoleUser)
	store := &mockStore{}
	h, _ := newTestHandler(t, store)
	r := routerAs(caller, http.MethodPut, "/me/password", h.ChangePassword)

	w := doJSON(r, http.MethodPut, "/me/password", map[string]string{
		"current_password": "original-pass",
		"new_password":     "short",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if store.passwordCalls != 0 {
		t.Error("expected no password update")
	}
}

func TestUpdateMe_PatchesOnlyProvidedFields(t *testing.T) {
	caller := testUser(1, models.RoleUser)
	store := &mockStore{
		updateProfileFunc: func(ctx context.Context, id uint, fields map[string]interface{}) error {
			return nil
		},
		findFunc: func(ctx context.Context, id uint) (*models.User, error) {
			u := testUser(id, models.RoleUser)
			u.Name = "Renamed"
			return u, nil
		},
	}
	h, _ := newTestHandler(t, store)
	r := routerAs(caller, http.MethodPut, "/me", h.UpdateMe)

	w := doJSON(r, http.MethodPut, "/me", map[string]interface{}{"name": "  Renamed  "})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if len(store.lastProfileFields) != 1 {
		t.Fatalf("expected only the name column to change, got %v", store.lastProfileFields)
	}
	if store.lastProfileFields["name"] != "Renamed" {
		t.Errorf("expected trimmed name, got %v", store.lastProfileFields["name"])
	}
}

func TestUpdateMe_BlankNameRejected(t *testing.T) {
	caller := testUser(1, models.RoleUser)
	store := &mockStore{
		updateProfileFunc: func(ctx context.Context, id uint, fields map[string]interface{}) error {
			return nil
		},
	}
	h, _ := newTestHandler(t, store)
	r := routerAs(caller, http.MethodPut, "/me", h.UpdateMe)

	w := doJSON(r, http.MethodPut, "/me", map[string]interface{}{"name": "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUploadAvatar_ReplacesPreviousBlob(t *testing.T) {
	caller := testUser(1, models.RoleUser)
	store := &mockStore{
		setAvatarFunc: func(ctx context.Context, userID uint, rec *models.File) (*models.File, error) {
			rec.ID = 7
			return &models.File{Model: gorm.Model{ID: 3}, StoredName: "old-avatar.png"}, nil
		},
	}
	h, storage := newTestHandler(t, store)
	if _, _, err := storage.Save("old-avatar.png", bytes.NewReader([]byte("old"))); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("avatar", "me.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write([]byte{0x89, 0x50, 0x4e, 0x47}); err != nil {
		t.Fatalf("write: %v", err)
	}
	mw.Close()

	r := routerAs(caller, http.MethodPost, "/me/avatar", h.UploadAvatar)
	req := httptest.NewRequest(http.MethodPost, "/me/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	ok, err := storage.Exists("old-avatar.png")
	if err != nil || ok {
		t.Errorf("expected old avatar blob removed, Exists = %v, %v", ok, err)
	}
}

func TestUploadAvatar_NonImageRejected(t *testing.T) {
	caller := testUser(1, models.RoleUser)
	store := &mockStore{}
	h, _ := newTestHandler(t, store)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("avatar", "resume.pdf")
	fw.Write([]byte("%PDF"))
	mw.Close()

	r := routerAs(caller, http.MethodPost, "/me/avatar", h.UploadAvatar)
	req := httptest.NewRequest(http.MethodPost, "/me/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestDeleteAccount_SelfDeleteRejected(t *testing.T) {
	admin := testUser(1, models.RoleAdmin)
	store := &mockStore{
		findFunc: func(ctx context.Context, id uint) (*models.User, error) {
			return testUser(id, models.RoleAdmin), nil
		},
		deleteCascadeFunc: func(ctx context.Context, user *models.User) ([]models.File, error) {
			return nil, nil
		},
	}
	h, _ := newTestHandler(t, store)
	r := routerAs(admin, http.MethodDelete, "/admin/users/:id", h.DeleteAccount)

	w := doJSON(r, http.MethodDelete, "/admin/users/1", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", w.Code, w.Body.String())
	}
	if store.cascadeCalls != 0 {
		t.Error("self-delete must not reach the cascade")
	}
}

func TestDeleteAccount_CascadeRemovesBlobs(t *testing.T) {
	admin := testUser(1, models.RoleAdmin)
	store := &mockStore{
		findFunc: func(ctx context.Context, id uint) (*models.User, error) {
			return testUser(id, models.RoleUser), nil
		},
		deleteCascadeFunc: func(ctx context.Context, user *models.User) ([]models.File, error) {
			return []models.File{{Model: gorm.Model{ID: 5}, StoredName: "doomed.txt"}}, nil
		},
	}
	h, storage := newTestHandler(t, store)
	if _, _, err := storage.Save("doomed.txt", bytes.NewReader([]byte("bye"))); err != nil {
		t.Fatalf("Save: %v", err)
	}

	r := routerAs(admin, http.MethodDelete, "/admin/users/:id", h.DeleteAccount)
	w := doJSON(r, http.MethodDelete, "/admin/users/2", nil)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d (%s)", w.Code, w.Body.String())
	}
	if store.cascadeCalls != 1 {
		t.Fatalf("expected one cascade, got %d", store.cascadeCalls)
	}
	ok, err := storage.Exists("doomed.txt")
	if err != nil || ok {
		t.Errorf("expected orphaned blob removed, Exists = %v, %v", ok, err)
	}
}

func TestUpdateAccountStatus_InvalidEnumRejected(t *testing.T) {
	admin := testUser(1, models.RoleAdmin)
	updateCalls := 0
	store := &mockStore{
		findFunc: func(ctx context.Context, id uint) (*models.User, error) {
			return testUser(id, models.RoleUser), nil
		},
		updateStatusFunc: func(ctx context.Context, id uint, status string) error {
			updateCalls++
			return nil
		},
	}
	h, _ := newTestHandler(t, store)
	r := routerAs(admin, http.MethodPut, "/admin/users/:id/status", h.UpdateAccountStatus)

	w := doJSON(r, http.MethodPut, "/admin/users/2/status", map[string]string{"status": "BANNED"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if updateCalls != 0 {
		t.Error("expected no status update")
	}
}

func TestUpdateAccountStatus_UnknownUser404(t *testing.T) {
	admin := testUser(1, models.RoleAdmin)
	store := &mockStore{
		findFunc: func(ctx context.Context, id uint) (*models.User, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	h, _ := newTestHandler(t, store)
	r := routerAs(admin, http.MethodPut, "/admin/users/:id/status", h.UpdateAccountStatus)

	w := doJSON(r, http.MethodPut, "/admin/users/99/status", map[string]string{"status": models.StatusActive})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
