package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zaqqye/applytrack/internal/config"
	"github.com/zaqqye/applytrack/internal/database"
	"github.com/zaqqye/applytrack/internal/store"
)

func newRouter(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "routes.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	r := gin.New()
	Register(r, Deps{DB: db, Cfg: cfg, Store: store.NewGorm(db), Log: zap.NewNop()})
	return r
}

func TestPublicRoutes(t *testing.T) {
	cfg := &config.Config{JWTSecret: "s", RefreshJWTSecret: "r", PasswordMinLength: "10"}
	r := newRouter(t, cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthz: status %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/config/public", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("config: status %d", w.Code)
	}
	var body struct {
		PasswordMinLength int `json:"password_min_length"`
		Statuses          []struct {
			Status string `json:"status"`
			Color  string `json:"color"`
		} `json:"statuses"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.PasswordMinLength != 10 {
		t.Errorf("password_min_length = %d, want 10", body.PasswordMinLength)
	}
	if len(body.Statuses) != 5 || body.Statuses[0].Status != "Applied" {
		t.Errorf("statuses = %+v", body.Statuses)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := newRouter(t, &config.Config{JWTSecret: "s", RefreshJWTSecret: "r"})
	for _, path := range []string{"/api/v1/applications", "/api/v1/dashboard", "/api/v1/auth/me", "/api/v1/ws/applications"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status %d, want 401", path, w.Code)
		}
	}
}
